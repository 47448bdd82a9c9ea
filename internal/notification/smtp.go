package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"

	"github.com/domodwyer/mailyak/v3"
)

// implicitTLSPort is the SMTPS port; other ports use STARTTLS when offered.
const implicitTLSPort = 465

// SMTPConfig describes the outbound relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPNotifier delivers messages through an SMTP relay.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPNotifier builds a notifier for the given relay.
func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

// Send delivers message, giving up when ctx is done. A send that outlives ctx
// keeps running in the background until the relay answers.
func (n *SMTPNotifier) Send(ctx context.Context, message Message) error {
	mail, err := n.newMail()
	if err != nil {
		return err
	}
	mail.To(message.Destination)
	mail.From(n.cfg.From)
	if n.cfg.FromName != "" {
		mail.FromName(n.cfg.FromName)
	}
	mail.Subject(message.Subject)
	if message.HTML != "" {
		mail.HTML().Set(message.HTML)
	}
	if message.Body != "" {
		mail.Plain().Set(message.Body)
	}

	done := make(chan error, 1)
	go func() {
		done <- mail.Send()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send %s mail: %w", message.Kind, err)
		}
	}

	n.logger.Info("mail sent", "kind", message.Kind, "destination", message.Destination)
	return nil
}

func (n *SMTPNotifier) newMail() (*mailyak.MailYak, error) {
	addr := n.cfg.Host + ":" + strconv.Itoa(n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if n.cfg.Port == implicitTLSPort {
		mail, err := mailyak.NewWithTLS(addr, auth, &tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12})
		if err != nil {
			return nil, fmt.Errorf("configure smtp tls: %w", err)
		}
		return mail, nil
	}
	return mailyak.New(addr, auth), nil
}
