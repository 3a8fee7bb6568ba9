package email

import "time"

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string

	// From is the display form of the sender ("Name <addr>" or "addr");
	// FromAddr is the bare address used for replies.
	From     string
	FromAddr string

	To    []string
	Date  time.Time
	Flags []string // \Seen, \Flagged, \Answered, \Deleted
	UID   uint32
}

// ParsedMessage holds the full parsed content of an email message.
type ParsedMessage struct {
	Envelope    Envelope
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment holds metadata about a message attachment. Content is
// counted while parsing and never retained.
type Attachment struct {
	Filename string
	Size     int64
	MIMEType string
}

// PasswordFunc returns the account password. It is called on every
// connection so a missing credential surfaces as a per-call error.
type PasswordFunc func() (string, error)

// SMTPConfig holds the SMTP server settings for outgoing mail.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}
