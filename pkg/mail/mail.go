// Package mail delivers transactional email. Delivery is best-effort: callers
// use Dispatch, which logs failures instead of returning them.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

// Message is a plain-text email.
type Message struct {
	Subject string
	Body    string
	From    string
	To      []string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when a relay is configured and a log sender
// otherwise. revealBody lets the log sender print bodies at debug level.
func NewSender(cfg config.MailConfig, revealBody bool, logg *logger.Logger) (Sender, error) {
	if cfg.Enabled() {
		return NewSMTPSender(cfg)
	}
	return NewLogSender(logg, revealBody), nil
}

// SMTPSender talks to an SMTP relay.
type SMTPSender struct {
	from    string
	deliver func(ctx context.Context, msg *gomail.Msg) error
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SendTimeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.SendTimeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: smtp client: %w", err)
	}
	return &SMTPSender{
		from: cfg.From,
		deliver: func(ctx context.Context, msg *gomail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	return s.deliver(ctx, m)
}

func (s *SMTPSender) build(msg Message) (*gomail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("mail: at least one recipient is required")
	}
	from := msg.From
	if from == "" {
		from = s.from
	}
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("mail: sender %q: %w", from, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("mail: recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

// LogSender writes message metadata to the structured log; used in dev.
// Bodies carry login codes, so they are only logged at debug and only when
// revealBody is set.
type LogSender struct {
	logg       *logger.Logger
	revealBody bool
}

func NewLogSender(logg *logger.Logger, revealBody bool) *LogSender {
	return &LogSender{logg: logg, revealBody: revealBody}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"to":         strings.Join(msg.To, ","),
		"subject":    msg.Subject,
		"body_bytes": len(msg.Body),
	})
	s.logg.Info(ctx, "mail sent to log")
	if s.revealBody {
		s.logg.Debug(s.logg.WithField(ctx, "body", msg.Body), "mail body")
	}
	return nil
}

// Dispatch sends msg and swallows the error after logging it at warn.
func Dispatch(ctx context.Context, sender Sender, logg *logger.Logger, msg Message) {
	if sender == nil {
		return
	}
	if err := sender.Send(ctx, msg); err != nil && logg != nil {
		warnCtx := logg.WithFields(ctx, map[string]any{
			"to":      strings.Join(msg.To, ","),
			"subject": msg.Subject,
			"error":   err.Error(),
		})
		logg.Warn(warnCtx, "mail delivery failed")
	}
}
