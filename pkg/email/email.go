// Package email implements the outbound message transport for notification
// delivery. Sends are best-effort: the dispatcher treats transport failures
// as a delivery outcome, never as a request failure.
package email

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// Sender pushes a single message to an address. Implementations must honour
// the context deadline; a hung SMTP conversation is a Failed delivery, not an
// indefinite wait.
type Sender interface {
	Send(ctx context.Context, address, subject, htmlBody string) error
}

// ValidAddress reports whether address parses as a single RFC 5322 address.
// Malformed addresses are skipped before any transport attempt.
func ValidAddress(address string) bool {
	if address == "" {
		return false
	}
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

// SMTPSender sends mail through a plain SMTP relay.
type SMTPSender struct {
	addr    string // host:port of the relay
	from    string
	timeout time.Duration
}

func NewSMTPSender(addr, from string, timeout time.Duration) *SMTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPSender{addr: addr, from: from, timeout: timeout}
}

// Send delivers one HTML message. net/smtp has no context support, so the
// send runs in a goroutine and the caller's deadline is enforced here.
func (s *SMTPSender) Send(ctx context.Context, address, subject, htmlBody string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := buildMessage(s.from, address, subject, htmlBody)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr, nil, s.from, []string{address}, msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", address, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", address, err)
		}
		return nil
	}
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
