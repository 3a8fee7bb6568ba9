package agentmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/nhle/agentmail-skill/internal/model"
	"github.com/nhle/agentmail-skill/internal/source"
)

const (
	scanPageSize = 50
	scanMaxPages = 5
)

// Mailbox implements source.Mailbox for AgentMail.
type Mailbox struct {
	client  *Client
	inboxID string
	logger  *slog.Logger
}

// NewMailbox creates a Mailbox. inboxID is only used by the thread-scan
// fallback of GetMessage and may be empty.
func NewMailbox(client *Client, inboxID string, logger *slog.Logger) *Mailbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailbox{
		client:  client,
		inboxID: inboxID,
		logger:  logger,
	}
}

// Type returns the source type identifier for AgentMail.
func (m *Mailbox) Type() source.SourceType {
	return source.SourceTypeAgentMail
}

// ListThreads calls GET /v0/inboxes/{inbox}/threads.
func (m *Mailbox) ListThreads(
	ctx context.Context,
	inboxID string,
	limit int,
	cursor string,
) (*model.ThreadPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("cursor", cursor)

	var page model.ThreadPage
	path := "/v0/inboxes/" + url.PathEscape(inboxID) + "/threads"
	if err := m.client.Get(ctx, path, query, &page); err != nil {
		return nil, err
	}
	if page.Threads == nil {
		page.Threads = []model.ThreadSummary{}
	}
	return &page, nil
}

// GetThread calls GET /v0/threads/{thread}.
func (m *Mailbox) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	var thread model.Thread
	if err := m.client.Get(ctx, "/v0/threads/"+url.PathEscape(threadID), nil, &thread); err != nil {
		return nil, err
	}
	if thread.Messages == nil {
		thread.Messages = []model.MessageSummary{}
	}
	return &thread, nil
}

// GetMessage calls GET /v0/messages/{id}. Servers that do not expose
// that endpoint answer 404, 405 or 501; in that case, when an inbox is
// configured, the message is located by scanning the inbox's threads.
func (m *Mailbox) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	var msg model.Message
	err := m.client.Get(ctx, "/v0/messages/"+url.PathEscape(messageID), nil, &msg)
	if err == nil {
		return &msg, nil
	}
	if !source.IsUnsupported(err) || m.inboxID == "" {
		return nil, err
	}

	found, scanErr := m.scanForMessage(ctx, messageID)
	if scanErr != nil {
		m.logger.Debug("thread scan failed", "message_id", messageID, "error", scanErr)
		return nil, err
	}
	if found == nil {
		return nil, err
	}
	return found, nil
}

// scanForMessage pages through the configured inbox looking for the
// thread that contains messageID. It returns nil when none does.
func (m *Mailbox) scanForMessage(ctx context.Context, messageID string) (*model.Message, error) {
	cursor := ""
	for range scanMaxPages {
		page, err := m.ListThreads(ctx, m.inboxID, scanPageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("listing threads: %w", err)
		}

		for _, t := range page.Threads {
			var detail threadMessages
			if err := m.client.Get(ctx, "/v0/threads/"+url.PathEscape(t.ID), nil, &detail); err != nil {
				return nil, fmt.Errorf("getting thread %s: %w", t.ID, err)
			}
			for _, msg := range detail.Messages {
				if msg.ID != messageID {
					continue
				}
				return m.getThreadMessage(ctx, t.ID, messageID)
			}
		}

		if page.Cursor == nil || *page.Cursor == "" {
			return nil, nil
		}
		cursor = *page.Cursor
	}
	return nil, nil
}

func (m *Mailbox) getThreadMessage(ctx context.Context, threadID, messageID string) (*model.Message, error) {
	var msg model.Message
	path := "/v0/threads/" + url.PathEscape(threadID) + "/messages/" + url.PathEscape(messageID)
	if err := m.client.Get(ctx, path, nil, &msg); err != nil {
		return nil, fmt.Errorf("getting message %s in thread %s: %w", messageID, threadID, err)
	}
	if msg.ThreadID == "" {
		msg.ThreadID = threadID
	}
	return &msg, nil
}

// SendMessage calls POST /v0/inboxes/{inbox}/messages.
func (m *Mailbox) SendMessage(ctx context.Context, out source.OutgoingMessage) (*model.SendReceipt, error) {
	var receipt model.SendReceipt
	path := "/v0/inboxes/" + url.PathEscape(out.InboxID) + "/messages"
	body := sendRequest{To: out.To, Subject: out.Subject, BodyText: out.BodyText}
	if err := m.client.Post(ctx, path, body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ReplyToThread calls POST /v0/threads/{thread}/replies.
func (m *Mailbox) ReplyToThread(ctx context.Context, threadID, bodyText string) (*model.SendReceipt, error) {
	var receipt model.SendReceipt
	path := "/v0/threads/" + url.PathEscape(threadID) + "/replies"
	if err := m.client.Post(ctx, path, replyRequest{BodyText: bodyText}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

var _ source.Mailbox = (*Mailbox)(nil)
