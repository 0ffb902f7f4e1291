package mirror

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker owns the publish path. Submit never blocks; a full queue drops the
// event. Publish failures are logged and dropped.
type Worker struct {
	pub     Publisher
	logger  *zap.Logger
	events  chan Event
	timeout time.Duration

	wg sync.WaitGroup
}

func NewWorker(pub Publisher, size int, logger *zap.Logger) *Worker {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		pub:     pub,
		logger:  logger,
		events:  make(chan Event, size),
		timeout: 10 * time.Second,
	}
}

func (w *Worker) Submit(evt Event) bool {
	select {
	case w.events <- evt:
		return true
	default:
		w.logger.Warn("mirror queue full, dropping event",
			zap.String("eventId", evt.ID),
			zap.String("type", evt.Type),
			zap.Int64("tableId", evt.TableID),
		)
		return false
	}
}

// Start runs the publish loop until ctx is cancelled. Wait blocks until the
// loop has exited.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-w.events:
				w.publish(ctx, evt)
			}
		}
	}()
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) publish(ctx context.Context, evt Event) {
	pubCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.pub.Publish(pubCtx, evt); err != nil {
		w.logger.Warn("mirror publish failed",
			zap.String("eventId", evt.ID),
			zap.String("type", evt.Type),
			zap.Int64("tableId", evt.TableID),
			zap.Int64("localOrderId", evt.LocalOrderID),
			zap.Error(err),
		)
		return
	}
	w.logger.Debug("mirror event published", zap.String("eventId", evt.ID), zap.String("type", evt.Type))
}
