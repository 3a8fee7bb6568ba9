package agentmail

// sendRequest is the body of POST /v0/inboxes/{inbox}/messages.
type sendRequest struct {
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	BodyText string   `json:"body_text"`
}

// replyRequest is the body of POST /v0/threads/{thread}/replies.
type replyRequest struct {
	BodyText string `json:"body_text"`
}

// threadMessages is the subset of a thread detail needed to locate a
// message during the thread scan.
type threadMessages struct {
	ID       string `json:"id"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}
