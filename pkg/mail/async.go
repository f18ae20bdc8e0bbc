package mail

import (
	"context"
	"sync"
	"time"

	"github.com/sokohub/sokohub-backend/pkg/logger"
)

const defaultSendTimeout = 15 * time.Second

// AsyncSender hands messages to next on a goroutine so request handlers do not
// wait on the relay. Each send gets its own deadline detached from the
// caller's cancellation. Close waits for in-flight sends.
type AsyncSender struct {
	next    Sender
	logg    *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncSender(next Sender, logg *logger.Logger, timeout time.Duration) *AsyncSender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &AsyncSender{next: next, logg: logg, timeout: timeout}
}

// Send always returns nil; delivery errors are logged.
func (a *AsyncSender) Send(ctx context.Context, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	detached := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(detached, a.timeout)
		defer cancel()
		Dispatch(sendCtx, a.next, a.logg, msg)
	}()
	return nil
}

func (a *AsyncSender) Close() error {
	a.wg.Wait()
	return nil
}
