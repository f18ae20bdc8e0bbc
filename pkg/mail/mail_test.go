package mail

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

type failingSender struct{ calls int }

func (f *failingSender) Send(context.Context, Message) error {
	f.calls++
	return errors.New("relay down")
}

type blockingSender struct {
	mu       sync.Mutex
	release  chan struct{}
	sent     []Message
	deadline bool
}

func (b *blockingSender) Send(ctx context.Context, msg Message) error {
	<-b.release
	_, hasDeadline := ctx.Deadline()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, msg)
	b.deadline = hasDeadline
	return ctx.Err()
}

func newTestSMTPSender(t *testing.T, cfg config.MailConfig) (*SMTPSender, *[]*gomail.Msg) {
	t.Helper()
	sender, err := NewSMTPSender(cfg)
	require.NoError(t, err)
	var delivered []*gomail.Msg
	sender.deliver = func(_ context.Context, msg *gomail.Msg) error {
		delivered = append(delivered, msg)
		return nil
	}
	return sender, &delivered
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	sender, delivered := newTestSMTPSender(t, config.MailConfig{Host: "smtp.local", Port: 2525, From: "no-reply@sokohub.local"})

	err := sender.Send(context.Background(), Message{Subject: "Your code", Body: "12345", To: []string{"buyer@example.com"}})
	require.NoError(t, err)
	require.Len(t, *delivered, 1)

	var raw bytes.Buffer
	_, err = (*delivered)[0].WriteTo(&raw)
	require.NoError(t, err)
	require.Contains(t, raw.String(), "no-reply@sokohub.local")
	require.Contains(t, raw.String(), "buyer@example.com")
	require.Contains(t, raw.String(), "Your code")
	require.Contains(t, raw.String(), "12345")
}

func TestSMTPSenderRejectsBadInput(t *testing.T) {
	sender, delivered := newTestSMTPSender(t, config.MailConfig{Host: "smtp.local", Port: 587, From: "no-reply@sokohub.local"})

	require.Error(t, sender.Send(context.Background(), Message{Subject: "x"}))
	require.Error(t, sender.Send(context.Background(), Message{Subject: "x", To: []string{"not an address"}}))
	require.Empty(t, *delivered)
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	sender, delivered := newTestSMTPSender(t, config.MailConfig{Host: "smtp.local", Port: 587, From: "no-reply@sokohub.local"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, sender.Send(ctx, Message{To: []string{"a@b.co"}}), context.Canceled)
	require.Empty(t, *delivered)
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	sender, err := NewSender(config.MailConfig{}, false, nil)
	require.NoError(t, err)
	_, ok := sender.(*LogSender)
	require.True(t, ok)

	sender, err = NewSender(config.MailConfig{Host: "smtp.local", Port: 587}, false, nil)
	require.NoError(t, err)
	_, ok = sender.(*SMTPSender)
	require.True(t, ok)
}

func TestLogSenderKeepsBodyOutOfInfoLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	require.NoError(t, NewLogSender(logg, true).Send(context.Background(), Message{Subject: "otp", Body: "code 48213", To: []string{"a@b.co"}}))

	require.Contains(t, buf.String(), "mail sent to log")
	require.NotContains(t, buf.String(), "48213")
}

func TestLogSenderRevealsBodyAtDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: buf})

	require.NoError(t, NewLogSender(logg, false).Send(context.Background(), Message{Body: "code 48213", To: []string{"a@b.co"}}))
	require.NotContains(t, buf.String(), "48213")

	buf.Reset()
	require.NoError(t, NewLogSender(logg, true).Send(context.Background(), Message{Body: "code 48213", To: []string{"a@b.co"}}))
	require.Contains(t, buf.String(), "48213")
}

func TestDispatchSwallowsErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	sender := &failingSender{}

	Dispatch(context.Background(), sender, logg, Message{Subject: "otp", To: []string{"a@b.c"}})

	require.Equal(t, 1, sender.calls)
	require.Contains(t, buf.String(), "mail delivery failed")
	require.Contains(t, buf.String(), "relay down")
}

func TestAsyncSenderDoesNotBlockCaller(t *testing.T) {
	next := &blockingSender{release: make(chan struct{})}
	async := NewAsyncSender(next, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, async.Send(ctx, Message{Subject: "otp", To: []string{"a@b.co"}}))
	cancel()

	close(next.release)
	require.NoError(t, async.Close())

	next.mu.Lock()
	defer next.mu.Unlock()
	require.Len(t, next.sent, 1)
	require.True(t, next.deadline)
}
