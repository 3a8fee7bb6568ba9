// Package pipeline turns a fetched message into the views handed to the
// agent: a sanitized, banner-wrapped message and the list of candidate
// verification codes.
package pipeline

import (
	"github.com/nhle/agentmail-skill/internal/model"
	"github.com/nhle/agentmail-skill/internal/otp"
	"github.com/nhle/agentmail-skill/internal/safety"
	"github.com/nhle/agentmail-skill/internal/sanitize"
)

const (
	// MaxSubjectLength is the character limit applied to subjects.
	MaxSubjectLength = 200

	emptyBody = "(empty body)"
)

// SafeMessage is a message with its body reduced to plain text and its
// attachments reduced to metadata. It never carries raw HTML.
type SafeMessage struct {
	ID          string                  `json:"id"`
	ThreadID    string                  `json:"thread_id"`
	From        string                  `json:"from"`
	To          []string                `json:"to"`
	Subject     string                  `json:"subject"`
	Date        string                  `json:"date"`
	BodyText    string                  `json:"body_text"`
	Attachments []safety.AttachmentMeta `json:"attachments"`
}

// CodesView is the result of scanning a message for verification codes.
type CodesView struct {
	Codes []otp.ExtractedCode `json:"codes"`
}

// PlainText resolves the plain-text body of msg. BodyText takes priority
// over BodyHTML; the sanitized HTML is used only when BodyText is empty.
func PlainText(msg *model.Message) string {
	if msg == nil {
		return ""
	}
	if msg.BodyText != "" {
		return msg.BodyText
	}
	return sanitize.HTML(msg.BodyHTML)
}

// MessageView builds the sanitized message view for msg.
func MessageView(msg *model.Message) safety.Envelope[SafeMessage] {
	if msg == nil {
		msg = &model.Message{}
	}

	body := PlainText(msg)
	if body == "" {
		body = emptyBody
	}

	to := msg.To
	if to == nil {
		to = []string{}
	}

	return safety.WrapUntrusted(SafeMessage{
		ID:          msg.ID,
		ThreadID:    msg.ThreadID,
		From:        msg.From,
		To:          to,
		Subject:     sanitize.Truncate(msg.Subject, MaxSubjectLength),
		Date:        msg.Date,
		BodyText:    body,
		Attachments: safety.RedactAttachments(msg.Attachments),
	})
}

// Codes extracts candidate verification codes from msg. The result is not
// wrapped; Keyword values are still email-derived.
func Codes(msg *model.Message) CodesView {
	return CodesView{Codes: otp.Extract(PlainText(msg))}
}
