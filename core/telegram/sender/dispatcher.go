package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize int
	Workers   int
	// MaxDuration bounds a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func(context.Context) error
}

// Dispatcher runs fire-and-forget Telegram calls on a bounded worker pool.
// Jobs run once; failures are logged and counted, never retried.
type Dispatcher struct {
	opts Options
	mu   sync.RWMutex
	jobs chan job
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		stop: make(chan struct{}),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue schedules run for asynchronous execution. The job's context is
// detached from ctx cancellation but keeps its values for logging.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func(context.Context) error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}

	j := job{
		ctx:      context.WithoutCancel(ctx),
		action:   action,
		endpoint: endpoint,
		run:      run,
	}

	select {
	case d.jobs <- j:
		return nil
	default:
		logger.Warn(ctx, "tg.sender", "send.drop", append(sendLogAttrs(ctx, j),
			slog.String("status", "fail"),
			slog.String("err", ErrQueueFull.Error()),
		)...)
		return ErrQueueFull
	}
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		close(d.stop)
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	err := runSafe(ctx, j.run)
	if err != nil {
		d.errs.Add(1)
		logSendFailure(j.ctx, j, err, time.Since(start))
		return
	}
	logger.Debug(j.ctx, "tg.sender", "send.success",
		append(sendLogAttrs(j.ctx, j), slog.Duration("elapsed", time.Since(start)))...,
	)
}

func runSafe(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("telegram sender: job panicked")
		}
	}()
	return run(ctx)
}

func sendLogAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("method", j.action),
	}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	return attrs
}

func logSendFailure(ctx context.Context, j job, err error, elapsed time.Duration) {
	attrs := append(sendLogAttrs(ctx, j),
		slog.String("status", "fail"),
		slog.String("outcome", netutil.Outcome(err)),
		slog.String("err", logger.RedactError(err)),
		slog.String("err_kind", netutil.Kind(err)),
		slog.Duration("elapsed", elapsed),
	)
	logger.Warn(ctx, "tg.sender", "send.fail", attrs...)
}
