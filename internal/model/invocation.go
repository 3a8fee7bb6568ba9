package model

import "time"

// Invocation records one tool call for the local audit log. It never
// carries email content: only the tool name, the outcome and a redacted
// error message.
type Invocation struct {
	// ID is the unique identifier for this record.
	ID string `json:"id"`

	// Tool is the name the agent called.
	Tool string `json:"tool"`

	// OK mirrors the ok field of the returned result.
	OK bool `json:"ok"`

	// Error is the redacted error message when OK is false.
	Error string `json:"error,omitempty"`

	// Duration is how long the call took.
	Duration time.Duration `json:"duration"`

	// CreatedAt is when the call started.
	CreatedAt time.Time `json:"created_at"`
}

// ToolStats aggregates the audit log for a single tool.
type ToolStats struct {
	Tool     string    `json:"tool"`
	Calls    int       `json:"calls"`
	Failures int       `json:"failures"`
	LastCall time.Time `json:"last_call"`
}
