// Package sender delivers outbound Telegram calls off the update goroutine.
//
// Each chat is pinned to one worker so replies of a turn arrive in the order
// they were produced, even though the turn itself returns before delivery.
package sender

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/citybot/core/logger"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the chat's worker queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the capacity of each worker's queue.
	QueueSize int
	Workers   int
	// MaxRetries counts attempts after the first one.
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, waits included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Stats are cumulative job counters.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Retried uint64
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs sharing a key always run on the same worker, in enqueue order.
type Dispatcher struct {
	opts   Options
	queues []chan job
	rr     atomic.Uint32
	log    *slog.Logger

	mu       sync.RWMutex
	closed   bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	sent, failed, retried atomic.Uint64
}

// NewDispatcher starts the workers. Zero options select defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan job, opts.Workers),
		stop:   make(chan struct{}),
		log:    logger.Component("tg.sender"),
	}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		go d.worker(d.queues[i])
	}
	return d
}

// Enqueue schedules run for asynchronous execution. key is usually the chat
// ID; an empty key spreads jobs over all workers.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, key, action, endpoint string, run func() error) error {
	return d.enqueue(ctx, key, action, endpoint, run, false)
}

// EnqueueWait is Enqueue that waits for room in a full queue instead of
// returning ErrQueueFull. It gives up when ctx is done or the dispatcher closes.
func (d *Dispatcher) EnqueueWait(ctx context.Context, key, action, endpoint string, run func() error) error {
	return d.enqueue(ctx, key, action, endpoint, run, true)
}

func (d *Dispatcher) enqueue(ctx context.Context, key, action, endpoint string, run func() error, wait bool) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	queue := d.queues[d.shard(key)]
	j := job{ctx: ctx, action: action, endpoint: endpoint, run: run}
	if !wait {
		select {
		case queue <- j:
			return nil
		default:
			return ErrQueueFull
		}
	}
	select {
	case queue <- j:
		return nil
	case <-d.stop:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) shard(key string) int {
	n := uint32(len(d.queues))
	if key == "" {
		return int(d.rr.Add(1) % n)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % n)
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Stats returns a snapshot of the job counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load(), Retried: d.retried.Load()}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	// Release EnqueueWait callers so they drop the read lock.
	d.stopOnce.Do(func() { close(d.stop) })
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()

	st := d.Stats()
	d.log.LogAttrs(context.Background(), slog.LevelInfo, "",
		slog.String("event", "sender.stop"),
		slog.Uint64("sent", st.Sent),
		slog.Uint64("failed", st.Failed),
		slog.Uint64("retried", st.Retried),
	)
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.deliver(j)
	}
}

// deliver runs j until it succeeds, fails permanently, runs out of attempts
// or exceeds MaxDuration. The caller's cancellation is ignored: a reply that
// was produced is still delivered after the update handler returned.
func (d *Dispatcher) deliver(j job) {
	ctx := context.WithoutCancel(j.ctx)
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
loop:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			d.sent.Add(1)
			d.logResult(ctx, slog.LevelDebug, j, attempt, start, nil)
			return
		}
		wait, retry := retryDelay(err, d.opts.RetryBackoff, attempt)
		if !retry || attempt == attempts {
			break
		}
		d.retried.Add(1)
		logger.LogEvent(ctx, d.log, slog.LevelDebug, "send.retry",
			slog.String("status", "retry"),
			slog.String("action", j.action),
			slog.Int("attempts", attempt),
			slog.Int64("backoff_ms", wait.Milliseconds()),
			slog.String("err_code", classifyError(err)),
		)
		timer := time.NewTimer(wait)
		select {
		case <-deadline.Done():
			timer.Stop()
			err = deadline.Err()
			break loop
		case <-timer.C:
		}
	}
	d.failed.Add(1)
	d.logResult(ctx, slog.LevelError, j, attempts, start, err)
}

func (d *Dispatcher) logResult(ctx context.Context, level slog.Level, j job, attempts int, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("action", j.action),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", sanitizeErrorMessage(err)),
			slog.String("err_code", classifyError(err)),
		)
	}
	logger.LogEvent(ctx, d.log, level, "send.done", attrs...)
}
