package gmail

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

// EmailMessage is an outgoing message assembled from individual fields.
type EmailMessage struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	IsHTML  bool
}

// Validate checks the fields required to send the message.
func (m *EmailMessage) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidMessage)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.Body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// RFC2822 renders the message headers and body.
func (m *EmailMessage) RFC2822() string {
	var b strings.Builder

	writeHeader(&b, "To", strings.Join(m.To, ", "))
	if len(m.Cc) > 0 {
		writeHeader(&b, "Cc", strings.Join(m.Cc, ", "))
	}
	if len(m.Bcc) > 0 {
		writeHeader(&b, "Bcc", strings.Join(m.Bcc, ", "))
	}
	writeHeader(&b, "Subject", encodeRFC2047(m.Subject))

	if m.IsHTML {
		writeHeader(&b, "Content-Type", `text/html; charset="UTF-8"`)
	} else {
		writeHeader(&b, "Content-Type", `text/plain; charset="UTF-8"`)
	}
	writeHeader(&b, "MIME-Version", "1.0")
	b.WriteString("\r\n")
	b.WriteString(m.Body)

	return b.String()
}

// Raw validates the message and returns it base64url encoded, ready for
// the raw field of messages.send.
func (m *EmailMessage) Raw() (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString([]byte(m.RFC2822())), nil
}

func writeHeader(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// encodeRFC2047 encodes non-ASCII header values (for example umlauts in a
// subject) as RFC 2047 encoded words.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// SplitAddresses splits a comma separated recipient list, dropping blanks.
func SplitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
