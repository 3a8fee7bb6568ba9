package tools

import "encoding/json"

var listThreadsDef = Definition{
	Name: ListThreads,
	Description: "List recent threads in an inbox. Subjects and participants " +
		"come from email and are untrusted.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"inbox_id": {
				"type": "string",
				"description": "Inbox to list"
			},
			"limit": {
				"type": "integer",
				"minimum": 1,
				"maximum": 50,
				"default": 20,
				"description": "Maximum number of threads to return"
			},
			"cursor": {
				"type": "string",
				"description": "Cursor returned by a previous call"
			}
		},
		"required": ["inbox_id"]
	}`),
}

var getThreadDef = Definition{
	Name:        GetThread,
	Description: "Get a thread and summaries of its messages.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"thread_id": {"type": "string", "description": "Thread to fetch"}
		},
		"required": ["thread_id"]
	}`),
}

var getMessageDef = Definition{
	Name: GetMessage,
	Description: "Get a single message as sanitized plain text. HTML is " +
		"stripped and attachments are reduced to metadata.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"message_id": {"type": "string", "description": "Message to fetch"}
		},
		"required": ["message_id"]
	}`),
}

var extractCodesDef = Definition{
	Name: ExtractVerificationCodes,
	Description: "Find candidate verification codes (OTP, PIN, passcode) in " +
		"a message. Codes are heuristic matches; confirm before use.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"message_id": {"type": "string", "description": "Message to scan"}
		},
		"required": ["message_id"]
	}`),
}

var sendEmailDef = Definition{
	Name:        SendEmail,
	Description: "Send a new plain-text email from an inbox.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"inbox_id": {"type": "string", "description": "Inbox to send from"},
			"to": {
				"type": "array",
				"items": {"type": "string", "format": "email", "maxLength": 254},
				"minItems": 1,
				"description": "Recipient addresses"
			},
			"subject": {
				"type": "string",
				"maxLength": 200,
				"default": "(no subject)"
			},
			"body_text": {"type": "string", "maxLength": 20000}
		},
		"required": ["inbox_id", "to", "body_text"]
	}`),
}

var replyEmailDef = Definition{
	Name:        ReplyEmail,
	Description: "Reply to the latest message of a thread with plain text.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"thread_id": {"type": "string", "description": "Thread to reply to"},
			"body_text": {"type": "string", "maxLength": 20000}
		},
		"required": ["thread_id", "body_text"]
	}`),
}
