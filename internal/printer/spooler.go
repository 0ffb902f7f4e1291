package printer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("print queue is full")

type JobKind string

const (
	KindKitchen  JobKind = "kitchen"
	KindSushiBar JobKind = "sushi_bar"
	KindReceipt  JobKind = "receipt"
)

type Job struct {
	ID      string
	Kind    JobKind
	TableID int64
	Text    string
}

// JobResult is reported once per job. Status is a short line for the terminal.
type JobResult struct {
	ID      string  `json:"id"`
	Kind    JobKind `json:"kind"`
	TableID int64   `json:"tableId"`
	Err     error   `json:"-"`
	Status  string  `json:"status"`
}

type Printer interface {
	Print(ctx context.Context, text string) error
}

// Spooler prints jobs one at a time on its own goroutine so callers never
// wait on the printer socket.
type Spooler struct {
	printer Printer
	logger  *zap.Logger
	jobs    chan Job
	timeout time.Duration

	mu       sync.RWMutex
	onResult []func(JobResult)

	stopOnce sync.Once
	done     chan struct{}
}

func NewSpooler(p Printer, size int, timeout time.Duration, logger *zap.Logger) *Spooler {
	if size <= 0 {
		size = 32
	}
	if timeout <= 0 {
		timeout = 2 * DefaultConnectTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spooler{
		printer: p,
		logger:  logger,
		jobs:    make(chan Job, size),
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

func (s *Spooler) OnResult(fn func(JobResult)) {
	s.mu.Lock()
	s.onResult = append(s.onResult, fn)
	s.mu.Unlock()
}

// Enqueue queues a job without blocking and returns its id.
func (s *Spooler) Enqueue(kind JobKind, tableID int64, text string) (string, error) {
	job := Job{ID: uuid.NewString(), Kind: kind, TableID: tableID, Text: text}
	select {
	case s.jobs <- job:
		return job.ID, nil
	default:
		s.logger.Warn("print queue full, dropping job",
			zap.String("jobId", job.ID),
			zap.String("kind", string(kind)),
			zap.Int64("tableId", tableID),
		)
		return "", ErrQueueFull
	}
}

// Run drains the queue until ctx is cancelled.
func (s *Spooler) Run(ctx context.Context) {
	defer s.stopOnce.Do(func() { close(s.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.process(ctx, job)
		}
	}
}

func (s *Spooler) Done() <-chan struct{} {
	return s.done
}

func (s *Spooler) process(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.printer.Print(jobCtx, job.Text)
	cancel()

	result := JobResult{ID: job.ID, Kind: job.Kind, TableID: job.TableID, Err: err, Status: StatusText(job.Kind, err)}
	if err != nil {
		s.logger.Warn("print job failed",
			zap.String("jobId", job.ID),
			zap.String("kind", string(job.Kind)),
			zap.Int64("tableId", job.TableID),
			zap.Error(err),
		)
	} else {
		s.logger.Info("print job done",
			zap.String("jobId", job.ID),
			zap.String("kind", string(job.Kind)),
			zap.Int64("tableId", job.TableID),
		)
	}

	s.mu.RLock()
	listeners := append([]func(JobResult){}, s.onResult...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(result)
	}
}

func StatusText(kind JobKind, err error) string {
	label := "Receipt"
	switch kind {
	case KindKitchen:
		label = "Kitchen ticket"
	case KindSushiBar:
		label = "Sushi bar ticket"
	}
	if err == nil {
		return label + " printed"
	}
	return label + " failed: " + err.Error()
}
