// Package email implements source.Mailbox on top of a plain IMAP mailbox,
// sending over SMTP.
package email

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/google/uuid"

	"github.com/nhle/agentmail-skill/internal/model"
	"github.com/nhle/agentmail-skill/internal/source"
)

const (
	// threadWindow bounds how far back thread listings look.
	threadWindow = 30 * 24 * time.Hour

	// maxEnvelopes caps the number of envelopes fetched per listing.
	maxEnvelopes = 500
)

// imapBackend is the subset of IMAPClient used by Mailbox.
type imapBackend interface {
	FetchEnvelopes(ctx context.Context, since time.Time, limit int) ([]Envelope, error)
	FetchMessage(ctx context.Context, uid uint32) (*ParsedMessage, error)
	SetFlags(ctx context.Context, uid uint32, flags []imap.Flag, add bool) error
}

// Config holds the connection settings for a Mailbox.
type Config struct {
	IMAPHost string
	IMAPPort string
	TLS      bool
	Mailbox  string

	SMTPHost string
	SMTPPort string

	Username string
	Password PasswordFunc
}

// Mailbox implements source.Mailbox for a single IMAP mailbox.
// Message IDs are IMAP UIDs; thread IDs are derived from normalized
// subjects since plain IMAP has no thread identity.
type Mailbox struct {
	imap     imapBackend
	smtp     SMTPConfig
	username string
	password PasswordFunc
	logger   *slog.Logger

	now  func() time.Time
	send func(cfg SMTPConfig, from string, to []string, body []byte) error
}

// NewMailbox creates an IMAP/SMTP mailbox.
func NewMailbox(cfg Config, logger *slog.Logger) *Mailbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailbox{
		imap: NewIMAPClient(
			cfg.IMAPHost, cfg.IMAPPort, cfg.Username, cfg.Password, cfg.TLS, cfg.Mailbox,
		),
		smtp: SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
		},
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
		now:      time.Now,
		send:     sendMail,
	}
}

// Type returns the source type identifier for Email.
func (m *Mailbox) Type() source.SourceType {
	return source.SourceTypeEmail
}

// GetMessage fetches the message with the given UID.
func (m *Mailbox) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	uid, err := parseUID(messageID)
	if err != nil {
		return nil, err
	}

	parsed, err := m.imap.FetchMessage(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", messageID, err)
	}

	msg := toMessage(parsed)
	return &msg, nil
}

// ListThreads groups recent messages into threads, newest first. The
// cursor is the offset of the next page. The IMAP backend serves a single
// configured mailbox, so inboxID is not used to select one.
func (m *Mailbox) ListThreads(
	ctx context.Context,
	inboxID string,
	limit int,
	cursor string,
) (*model.ThreadPage, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = n
	}

	groups, err := m.recentThreads(ctx)
	if err != nil {
		return nil, err
	}

	page := &model.ThreadPage{Threads: []model.ThreadSummary{}}
	if offset >= len(groups) {
		return page, nil
	}
	end := min(offset+limit, len(groups))
	for _, g := range groups[offset:end] {
		page.Threads = append(page.Threads, g.summary())
	}
	if end < len(groups) {
		next := strconv.Itoa(end)
		page.Cursor = &next
	}

	m.logger.Debug("listed threads",
		"inbox_id", inboxID,
		"threads", len(page.Threads),
		"total", len(groups),
	)
	return page, nil
}

// GetThread returns the messages of a recent thread.
func (m *Mailbox) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	g, err := m.findThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	thread := &model.Thread{
		ID:       g.id,
		Subject:  g.latest().Subject,
		Messages: make([]model.MessageSummary, 0, len(g.envelopes)),
	}
	for _, env := range g.envelopes {
		thread.Messages = append(thread.Messages, model.MessageSummary{
			ID:      strconv.FormatUint(uint64(env.UID), 10),
			From:    env.From,
			To:      nonNil(env.To),
			Subject: env.Subject,
			Date:    formatDate(env.Date),
		})
	}
	return thread, nil
}

// SendMessage sends a new message over SMTP. The receipt's thread ID is
// the one the message will be listed under once delivered.
func (m *Mailbox) SendMessage(ctx context.Context, out source.OutgoingMessage) (*model.SendReceipt, error) {
	msg := outgoing{
		From:      m.username,
		To:        out.To,
		Subject:   out.Subject,
		Body:      out.BodyText,
		MessageID: newMessageID(m.username),
	}
	if err := m.deliver(msg); err != nil {
		return nil, err
	}
	return &model.SendReceipt{
		MessageID: msg.MessageID,
		ThreadID:  ThreadID(out.Subject),
	}, nil
}

// ReplyToThread replies to the sender of the latest message in the
// thread and flags that message \Answered.
func (m *Mailbox) ReplyToThread(ctx context.Context, threadID, bodyText string) (*model.SendReceipt, error) {
	g, err := m.findThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	last := g.latest()
	if last.FromAddr == "" {
		return nil, fmt.Errorf("thread %s: latest message has no sender", threadID)
	}

	msg := outgoing{
		From:      m.username,
		To:        []string{last.FromAddr},
		Subject:   replySubject(last.Subject),
		Body:      bodyText,
		MessageID: newMessageID(m.username),
	}
	if last.MessageID != "" {
		msg.InReplyTo = last.MessageID
		msg.References = []string{last.MessageID}
	}
	if err := m.deliver(msg); err != nil {
		return nil, err
	}

	if err := m.imap.SetFlags(ctx, last.UID, []imap.Flag{imap.FlagAnswered}, true); err != nil {
		m.logger.Warn("marking message answered", "uid", last.UID, "error", err)
	}

	return &model.SendReceipt{
		MessageID: msg.MessageID,
		ThreadID:  g.id,
	}, nil
}

func (m *Mailbox) deliver(msg outgoing) error {
	body, err := compose(msg, m.now())
	if err != nil {
		return err
	}
	rcpts, err := envelopeAddresses(msg.To)
	if err != nil {
		return err
	}
	smtpCfg := m.smtp
	if m.password != nil {
		password, err := m.password()
		if err != nil {
			return err
		}
		smtpCfg.Password = password
	}
	if err := m.send(smtpCfg, m.username, rcpts, body); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (m *Mailbox) recentThreads(ctx context.Context) ([]threadGroup, error) {
	envs, err := m.imap.FetchEnvelopes(ctx, m.now().Add(-threadWindow), maxEnvelopes)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	return groupThreads(envs), nil
}

func (m *Mailbox) findThread(ctx context.Context, threadID string) (*threadGroup, error) {
	groups, err := m.recentThreads(ctx)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].id == threadID {
			return &groups[i], nil
		}
	}
	return nil, &source.NotFoundError{Kind: "thread", ID: threadID}
}

// threadGroup is a thread's envelopes, oldest first.
type threadGroup struct {
	id        string
	envelopes []Envelope
}

func (g threadGroup) latest() Envelope {
	return g.envelopes[len(g.envelopes)-1]
}

func (g threadGroup) summary() model.ThreadSummary {
	seen := make(map[string]bool)
	participants := []string{}
	for _, env := range g.envelopes {
		for _, p := range append([]string{env.FromAddr}, env.To...) {
			key := strings.ToLower(p)
			if p == "" || seen[key] {
				continue
			}
			seen[key] = true
			participants = append(participants, p)
		}
	}

	last := g.latest()
	return model.ThreadSummary{
		ID:            g.id,
		Subject:       last.Subject,
		LastMessageAt: formatDate(last.Date),
		MessageCount:  len(g.envelopes),
		Participants:  participants,
	}
}

// groupThreads buckets envelopes by ThreadID and orders the threads by
// their latest message, newest first.
func groupThreads(envs []Envelope) []threadGroup {
	index := make(map[string]int)
	var groups []threadGroup
	for _, env := range envs {
		id := ThreadID(env.Subject)
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, threadGroup{id: id})
		}
		groups[i].envelopes = append(groups[i].envelopes, env)
	}

	for i := range groups {
		slices.SortStableFunc(groups[i].envelopes, func(a, b Envelope) int {
			if c := a.Date.Compare(b.Date); c != 0 {
				return c
			}
			return cmp.Compare(a.UID, b.UID)
		})
	}
	slices.SortStableFunc(groups, func(a, b threadGroup) int {
		if c := b.latest().Date.Compare(a.latest().Date); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	return groups
}

// threadNamespace scopes subject-derived thread IDs.
var threadNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("agentmail.imap.thread"))

// replyPrefix matches any run of reply and forward markers.
var replyPrefix = regexp.MustCompile(`(?i)^(?:\s*(?:re|fwd?|aw|wg)\s*(?:\[\d+\])?\s*:\s*)+`)

var spaceRun = regexp.MustCompile(`\s+`)

// NormalizeSubject strips reply/forward prefixes, folds case and
// collapses whitespace.
func NormalizeSubject(subject string) string {
	s := replyPrefix.ReplaceAllString(subject, "")
	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.ToLower(s)
}

// ThreadID derives a stable thread ID from a subject line.
func ThreadID(subject string) string {
	return uuid.NewSHA1(threadNamespace, []byte(NormalizeSubject(subject))).String()
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}

// toMessage maps a parsed IMAP message onto the mailbox message model.
func toMessage(p *ParsedMessage) model.Message {
	msg := model.Message{
		ID:       strconv.FormatUint(uint64(p.Envelope.UID), 10),
		ThreadID: ThreadID(p.Envelope.Subject),
		From:     p.Envelope.From,
		To:       nonNil(p.Envelope.To),
		Subject:  p.Envelope.Subject,
		Date:     formatDate(p.Envelope.Date),
		BodyText: p.TextBody,
		BodyHTML: p.HTMLBody,
	}

	if len(p.Attachments) > 0 {
		msg.Attachments = make(model.AttachmentList, 0, len(p.Attachments))
		for _, a := range p.Attachments {
			att := model.Attachment{Size: &a.Size}
			if a.Filename != "" {
				att.Filename = &a.Filename
			}
			if a.MIMEType != "" {
				att.ContentType = &a.MIMEType
			}
			msg.Attachments = append(msg.Attachments, att)
		}
	}
	return msg
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// parseUID converts a message ID to an IMAP UID.
func parseUID(messageID string) (uint32, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil || uid == 0 {
		return 0, &source.NotFoundError{Kind: "message", ID: messageID}
	}
	return uint32(uid), nil
}

var _ source.Mailbox = (*Mailbox)(nil)
