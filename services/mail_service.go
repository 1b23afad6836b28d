package services

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"say-hi/contract"
)

// SMTPConfig carries the mail service's credentials.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through a plain SMTP submission endpoint.
type SMTPMailer struct {
	client *gomail.Client
	from   string
	log    *slog.Logger
}

func NewSMTPMailer(cfg SMTPConfig, log *slog.Logger) (*SMTPMailer, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From, log: log}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	m.log.Info("Mail sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// MailService is the MAIL_QUEUE worker: it only knows how to hand a
// request to the mailer.
type MailService struct {
	mailer contract.IMailer
	log    *slog.Logger
}

func NewMailService(mailer contract.IMailer, log *slog.Logger) *MailService {
	return &MailService{mailer: mailer, log: log}
}

func (s *MailService) Send(ctx context.Context, req mailRequest) error {
	return s.mailer.Send(ctx, req.To, req.Subject, req.Body)
}
