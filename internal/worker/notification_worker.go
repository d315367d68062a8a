package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/notify"
)

// ErrNotificationQueueFull is returned when a notification is dropped.
var ErrNotificationQueueFull = errors.New("notification queue full")

type notification struct {
	ctx     context.Context
	userID  string
	message string
	kind    notify.Kind
}

// NotificationWorker queues notifications and delivers them to the sink
// on background goroutines so a slow sink never holds up the engine.
type NotificationWorker struct {
	sink    notify.Notifier
	queue   chan notification
	workers int
	timeout time.Duration
	logger  *zap.Logger

	wg sync.WaitGroup
}

// NewNotificationWorker builds the worker. Call Run to start delivery.
func NewNotificationWorker(sink notify.Notifier, size, workers int, timeout time.Duration, logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		sink:    sink,
		queue:   make(chan notification, size),
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// Notify implements notify.Notifier. It only enqueues; delivery errors are
// logged by the worker.
func (w *NotificationWorker) Notify(ctx context.Context, userID, message string, kind notify.Kind) error {
	n := notification{ctx: context.WithoutCancel(ctx), userID: userID, message: message, kind: kind}
	select {
	case w.queue <- n:
		return nil
	default:
		return ErrNotificationQueueFull
	}
}

// Run delivers queued notifications until ctx is cancelled, then drains
// whatever is still queued and returns.
func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started", zap.Int("workers", w.workers))
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx)
		}()
	}
	w.wg.Wait()
	w.logger.Info("notification worker stopped")
}

func (w *NotificationWorker) loop(ctx context.Context) {
	for {
		select {
		case n := <-w.queue:
			w.deliver(n)
		case <-ctx.Done():
			for {
				select {
				case n := <-w.queue:
					w.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (w *NotificationWorker) deliver(n notification) {
	ctx, cancel := context.WithTimeout(n.ctx, w.timeout)
	defer cancel()

	if err := w.sink.Notify(ctx, n.userID, n.message, n.kind); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("user_id", n.userID),
			zap.String("kind", string(n.kind)),
			zap.Error(err))
	}
}
