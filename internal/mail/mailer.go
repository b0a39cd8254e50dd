package mail

import (
	"context"
	"fmt"
	"log"

	gomail "github.com/wneessen/go-mail"
)

// Mailer delivers a single HTML email. Delivery failure is significant to
// callers: the auth service cancels a pending password reset when the
// notification cannot be sent.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// NewSMTPMailer creates a mailer against the given SMTP relay. Username may
// be empty for relays that do not require authentication.
func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(username),
			gomail.WithPassword(password),
		)
	}
	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: from}, nil
}

// Send delivers the message, dialing per call.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer writes mail to the process log instead of sending it. Used in
// development when no SMTP host is configured.
type LogMailer struct{}

// Send logs the message and reports success.
func (LogMailer) Send(_ context.Context, to, subject, html string) error {
	log.Printf("mail (not sent) to=%s subject=%q body=%s", to, subject, html)
	return nil
}
