package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig describes the relay used by [SMTPNotifier].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends codes as plain-text mail.
type SMTPNotifier struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewSMTP validates cfg and returns a notifier. PLAIN auth is used when a
// username is configured.
func NewSMTP(cfg SMTPConfig) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp from address is required")
	}

	n := &SMTPNotifier{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
		send: smtp.SendMail,
		now:  time.Now,
	}
	if cfg.Username != "" {
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return n, nil
}

// DeliverCode sends one message. net/smtp has no context support, so ctx is
// only checked before dialing.
func (n *SMTPNotifier) DeliverCode(ctx context.Context, address, code string, purpose Purpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(address, "\r\n") {
		return errors.New("smtp: invalid recipient")
	}

	msg := n.message(address, code, purpose)
	if err := n.send(n.addr, n.auth, n.from, []string{address}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) message(to, code string, purpose Purpose) []byte {
	var b strings.Builder
	b.WriteString("From: " + n.from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject(purpose) + "\r\n")
	b.WriteString("Date: " + n.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Your code is: " + code + "\r\n")
	return []byte(b.String())
}
