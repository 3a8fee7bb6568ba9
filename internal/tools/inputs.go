package tools

const (
	defaultThreadLimit = 20
	defaultSubject     = "(no subject)"
)

type listThreadsInput struct {
	InboxID string `json:"inbox_id" validate:"required"`
	Limit   *int   `json:"limit" validate:"omitempty,min=1,max=50"`
	Cursor  string `json:"cursor"`
}

func (in listThreadsInput) limit() int {
	if in.Limit == nil {
		return defaultThreadLimit
	}
	return *in.Limit
}

type threadInput struct {
	ThreadID string `json:"thread_id" validate:"required"`
}

type messageInput struct {
	MessageID string `json:"message_id" validate:"required"`
}

type sendEmailInput struct {
	InboxID  string   `json:"inbox_id" validate:"required"`
	To       []string `json:"to" validate:"required,min=1,dive,email,max=254"`
	Subject  *string  `json:"subject" validate:"omitempty,max=200"`
	BodyText *string  `json:"body_text" validate:"required,max=20000"`
}

func (in sendEmailInput) subject() string {
	if in.Subject == nil {
		return defaultSubject
	}
	return *in.Subject
}

type replyEmailInput struct {
	ThreadID string  `json:"thread_id" validate:"required"`
	BodyText *string `json:"body_text" validate:"required,max=20000"`
}
