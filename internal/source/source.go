// Package source defines the mailbox collaborators that feed the content
// pipeline, and the errors they report.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/agentmail-skill/internal/model"
)

// SourceType identifies the kind of mailbox backend.
type SourceType string

const (
	SourceTypeAgentMail SourceType = "agentmail"
	SourceTypeEmail     SourceType = "email"
)

// AuthError indicates that authentication has failed for a backend.
// It is returned when an IMAP or SMTP login is rejected.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// NotFoundError indicates that the requested message or thread does not
// exist in the backend.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// APIError is a non-2xx response from the AgentMail HTTP API. Its message
// is surfaced to the agent verbatim.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AgentMail API error: %d %s — %s", e.StatusCode, e.Status, e.Body)
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError or an APIError with status 401.
func IsAuthError(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	return hasStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports whether err (or any error in its chain) is a
// NotFoundError or an APIError with status 404.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, codes ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.StatusCode == code {
			return true
		}
	}
	return false
}

// IsUnsupported reports whether err is an APIError whose status means the
// endpoint is missing or not implemented (404, 405 or 501).
func IsUnsupported(err error) bool {
	return hasStatus(err,
		http.StatusNotFound,
		http.StatusMethodNotAllowed,
		http.StatusNotImplemented,
	)
}

// MessageSource is the only collaborator the content pipeline depends on.
type MessageSource interface {
	// GetMessage fetches a single message, including its body and
	// attachment descriptors.
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
}

// OutgoingMessage is a new message starting a thread.
type OutgoingMessage struct {
	InboxID  string
	To       []string
	Subject  string
	BodyText string
}

// Mailbox is the full collaborator behind the agent tools.
type Mailbox interface {
	MessageSource

	// Type returns the backend identifier.
	Type() SourceType

	// ListThreads returns a page of threads, newest first. An empty
	// cursor requests the first page.
	ListThreads(ctx context.Context, inboxID string, limit int, cursor string) (*model.ThreadPage, error)

	// GetThread returns a thread with its message summaries.
	GetThread(ctx context.Context, threadID string) (*model.Thread, error)

	// SendMessage sends a new message, starting a thread.
	SendMessage(ctx context.Context, msg OutgoingMessage) (*model.SendReceipt, error)

	// ReplyToThread sends a plain-text reply to the latest message of a
	// thread.
	ReplyToThread(ctx context.Context, threadID, bodyText string) (*model.SendReceipt, error)
}
