package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/example/storefront/pkg/config"
	"go.uber.org/zap"
)

// SMTPSender delivers notifications as plain-text email.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPSender creates a sender that relays through the configured SMTP host.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
		auth: auth,
	}
}

// Send mails the message to its recipient.
func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes notifications to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs messages.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message instead of delivering it.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("Notification",
		zap.Uint("order_id", msg.OrderID),
		zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
