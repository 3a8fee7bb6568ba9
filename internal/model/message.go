package model

import (
	"bytes"
	"encoding/json"
	"math"
)

// Message is a single fetched email as produced by a mailbox backend.
// Exactly one of BodyText and BodyHTML is authoritative: BodyText wins
// whenever it is non-empty.
type Message struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"thread_id"`
	From     string   `json:"from"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Date     string   `json:"date"`

	// BodyText is the plain-text part, assumed pre-sanitized by the origin.
	BodyText string `json:"body_text,omitempty"`

	// BodyHTML is the raw HTML part. It must never leave the process
	// without passing through the sanitizer.
	BodyHTML string `json:"body_html,omitempty"`

	Attachments AttachmentList `json:"attachments,omitempty"`
}

// Attachment is an untrusted attachment descriptor. Absent fields are nil
// so callers can tell "missing" from "empty".
type Attachment struct {
	Filename    *string `json:"filename,omitempty"`
	ContentType *string `json:"content_type,omitempty"`
	Size        *int64  `json:"size,omitempty"`
}

// AttachmentList decodes leniently: a JSON value that is not an array
// decodes to an empty list, and an element that is not an object decodes
// to an empty Attachment. Fields other than filename, content_type and
// size are discarded, including any inline content.
type AttachmentList []Attachment

// UnmarshalJSON implements json.Unmarshaler.
func (l *AttachmentList) UnmarshalJSON(data []byte) error {
	*l = nil

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil
	}

	list := make(AttachmentList, 0, len(raw))
	for _, item := range raw {
		list = append(list, decodeAttachment(item))
	}
	*l = list
	return nil
}

func decodeAttachment(data json.RawMessage) Attachment {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Attachment{}
	}

	var a Attachment
	if s, ok := fields["filename"].(string); ok {
		a.Filename = &s
	}
	if s, ok := fields["content_type"].(string); ok {
		a.ContentType = &s
	}
	if f, ok := fields["size"].(float64); ok && isWholeInt64(f) {
		n := int64(f)
		a.Size = &n
	}
	return a
}

// isWholeInt64 reports whether f converts to int64 without losing
// anything. Fractional or out-of-range sizes are dropped, not rounded.
func isWholeInt64(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}

// ThreadSummary is one entry of a thread listing.
type ThreadSummary struct {
	ID            string   `json:"id"`
	Subject       string   `json:"subject"`
	LastMessageAt string   `json:"last_message_at"`
	MessageCount  int      `json:"message_count"`
	Participants  []string `json:"participants"`
}

// ThreadPage is a page of thread summaries. Cursor is nil on the last page.
type ThreadPage struct {
	Threads []ThreadSummary `json:"threads"`
	Cursor  *string         `json:"cursor"`
}

// MessageSummary describes a message inside a thread without its body.
type MessageSummary struct {
	ID      string   `json:"id"`
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Date    string   `json:"date"`
	Snippet string   `json:"snippet"`
}

// Thread is a conversation with its message summaries.
type Thread struct {
	ID       string           `json:"id"`
	Subject  string           `json:"subject"`
	Messages []MessageSummary `json:"messages"`
}

// SendReceipt identifies a message accepted for delivery.
type SendReceipt struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}
