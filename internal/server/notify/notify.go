// Package notify delivers user-facing notifications (the welcome e-mail).
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/dmitrijs2005/usersvc/internal/logging"
)

// Sink sends a plain-text message to a single recipient.
type Sink interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig configures an SMTPSink. Empty User disables authentication.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSink sends mail through an SMTP relay, one connection per message.
type SMTPSink struct {
	from   string
	sender mailSender
}

func NewSMTPSink(cfg SMTPConfig) (*SMTPSink, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPSink{from: from, sender: client}, nil
}

func (s *SMTPSink) Send(ctx context.Context, to, subject, body string) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("from address %q: %w", s.from, err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("to address %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	if err := s.sender.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogSink only logs the message. It stands in for SMTP in development when no
// relay is configured.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(log logging.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(ctx context.Context, to, subject, _ string) error {
	s.log.Info(ctx, "mail_not_sent_no_relay", "to", to, "subject", subject)
	return nil
}
