package tools

// Result is the only shape a tool call ever returns. When OK is false,
// Result is nil and Error explains why; when OK is true, Error is empty.
type Result struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Success wraps a tool's payload.
func Success(v any) Result {
	return Result{OK: true, Result: v}
}

// Failure reports err without a payload. A failed result always carries
// a non-empty message.
func Failure(err error) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "unknown error"
	}
	return Result{OK: false, Result: nil, Error: msg}
}
