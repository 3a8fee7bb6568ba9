package tools

import (
	"context"
	"encoding/json"

	"github.com/nhle/agentmail-skill/internal/pipeline"
	"github.com/nhle/agentmail-skill/internal/safety"
	"github.com/nhle/agentmail-skill/internal/source"
)

type handlers struct {
	mailbox source.Mailbox
}

func (h *handlers) listThreads(ctx context.Context, raw json.RawMessage) (any, error) {
	var in listThreadsInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	page, err := h.mailbox.ListThreads(ctx, in.InboxID, in.limit(), in.Cursor)
	if err != nil {
		return nil, err
	}
	return safety.WrapUntrusted(page), nil
}

func (h *handlers) getThread(ctx context.Context, raw json.RawMessage) (any, error) {
	var in threadInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	thread, err := h.mailbox.GetThread(ctx, in.ThreadID)
	if err != nil {
		return nil, err
	}
	return safety.WrapUntrusted(thread), nil
}

func (h *handlers) getMessage(ctx context.Context, raw json.RawMessage) (any, error) {
	var in messageInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	msg, err := h.mailbox.GetMessage(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	return pipeline.MessageView(msg), nil
}

func (h *handlers) extractCodes(ctx context.Context, raw json.RawMessage) (any, error) {
	var in messageInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	msg, err := h.mailbox.GetMessage(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	return pipeline.Codes(msg), nil
}

func (h *handlers) sendEmail(ctx context.Context, raw json.RawMessage) (any, error) {
	var in sendEmailInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	return h.mailbox.SendMessage(ctx, source.OutgoingMessage{
		InboxID:  in.InboxID,
		To:       in.To,
		Subject:  in.subject(),
		BodyText: *in.BodyText,
	})
}

func (h *handlers) replyEmail(ctx context.Context, raw json.RawMessage) (any, error) {
	var in replyEmailInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	return h.mailbox.ReplyToThread(ctx, in.ThreadID, *in.BodyText)
}
