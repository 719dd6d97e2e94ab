package email

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

type Service interface {
	SendEmergency(ctx context.Context, n *model.Notification) error
}

type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// Sender abstracts the SMTP dialer so tests can capture messages.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	cfg    Config
	sender Sender
}

// NewService returns nil when no SMTP host or recipients are configured.
func NewService(cfg Config) Service {
	if cfg.Host == "" || len(cfg.Recipients) == 0 {
		return nil
	}
	return NewServiceWithSender(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

func NewServiceWithSender(cfg Config, sender Sender) Service {
	return &smtpService{cfg: cfg, sender: sender}
}

func (s *smtpService) SendEmergency(ctx context.Context, n *model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.Recipients...)
	m.SetHeader("Subject", fmt.Sprintf("Emergency from %s", n.FromLabel))

	var body strings.Builder
	fmt.Fprintf(&body, "Emergency raised by %s at %s.\n", n.FromLabel, n.CreatedAt.Format("15:04:05"))
	if n.Message != "" {
		fmt.Fprintf(&body, "\n%s\n", n.Message)
	}
	m.SetBody("text/plain", body.String())

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send emergency email: %w", err)
	}
	return nil
}
