package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// implicitTLSPort is the submission port that expects TLS from the first
// byte; every other port uses STARTTLS.
const implicitTLSPort = "465"

// outgoing is a composed plain-text message ready for SMTP.
type outgoing struct {
	From       string
	To         []string
	Subject    string
	Body       string
	MessageID  string
	InReplyTo  string
	References []string
}

// sanitizeHeaderValue removes CR/LF from s to prevent header injection.
func sanitizeHeaderValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// newMessageID returns a fresh Message-ID (without angle brackets) in the
// domain of from.
func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return uuid.NewString() + "@" + sanitizeHeaderValue(domain)
}

// compose renders msg as an RFC 5322 message with a single text/plain
// part.
func compose(msg outgoing, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)

	from := sanitizeHeaderValue(msg.From)
	if addrs, err := mail.ParseAddressList(from); err == nil && len(addrs) > 0 {
		h.SetAddressList("From", addrs)
	} else {
		h.Set("From", from)
	}

	to := make([]*mail.Address, 0, len(msg.To))
	for _, raw := range msg.To {
		addr, err := mail.ParseAddress(sanitizeHeaderValue(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", raw, err)
		}
		to = append(to, addr)
	}
	h.SetAddressList("To", to)

	h.SetSubject(sanitizeHeaderValue(msg.Subject))
	if msg.MessageID != "" {
		h.SetMessageID(sanitizeHeaderValue(msg.MessageID))
	}
	if msg.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{sanitizeHeaderValue(msg.InReplyTo)})
	}
	if len(msg.References) > 0 {
		refs := make([]string, 0, len(msg.References))
		for _, r := range msg.References {
			refs = append(refs, sanitizeHeaderValue(r))
		}
		h.SetMsgIDList("References", refs)
	}
	h.Set("Content-Type", "text/plain; charset=utf-8")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("building message: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}

// envelopeAddresses returns the bare addresses of recipients for RCPT TO.
func envelopeAddresses(recipients []string) ([]string, error) {
	out := make([]string, 0, len(recipients))
	for _, raw := range recipients {
		addr, err := mail.ParseAddress(sanitizeHeaderValue(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", raw, err)
		}
		out = append(out, addr.Address)
	}
	return out, nil
}

// sendMail delivers a composed message. Port 465 uses implicit TLS;
// every other port uses STARTTLS.
func sendMail(cfg SMTPConfig, from string, to []string, body []byte) error {
	addr := net.JoinHostPort(cfg.Host, cfg.Port)

	var client *smtp.Client
	var err error
	if cfg.Port == implicitTLSPort {
		client, err = dialSMTPWithTLS(addr, cfg)
	} else {
		client, err = dialSMTPWithStartTLS(addr, cfg)
	}
	if err != nil {
		return err
	}
	defer client.Close()

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendMailViaSMTPClient(client, from, to, body)
}

// dialSMTPWithTLS opens an implicit TLS connection.
func dialSMTPWithTLS(addr string, cfg SMTPConfig) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return nil, fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}
	return client, nil
}

// dialSMTPWithStartTLS opens a plain connection and upgrades it.
func dialSMTPWithStartTLS(addr string, cfg SMTPConfig) (*smtp.Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
	}
	return client, nil
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(
	client *smtp.Client, from string, to []string, body []byte,
) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
