package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const writeTimeout = 5 * time.Second

// Retryer hands a failed entry to a durable retry channel. The background
// queue retries best-effort; a write failure never reverses the access
// decision it describes.
type Retryer interface {
	EnqueueAuditRetry(ctx context.Context, entry Entry) error
}

// Dispatcher is the asynchronous Sink used in front of a Writer. Record never
// blocks the caller: entries go through a buffered channel and a single
// drainer goroutine. When the buffer is full the entry is dropped and
// counted, which is the documented degradation mode under sustained storage
// outage.
type Dispatcher struct {
	writer  Writer
	retryer Retryer
	logger  *slog.Logger

	ch        chan Entry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	onDrop  func()
	onRetry func()
}

// DispatcherConfig collects dispatcher dependencies.
type DispatcherConfig struct {
	Writer     Writer
	Retryer    Retryer
	Logger     *slog.Logger
	BufferSize int
	// OnDrop and OnRetry feed the observability counters.
	OnDrop  func()
	OnRetry func()
}

// NewDispatcher starts the drainer goroutine.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	d := &Dispatcher{
		writer:  cfg.Writer,
		retryer: cfg.Retryer,
		logger:  cfg.Logger,
		ch:      make(chan Entry, cfg.BufferSize),
		done:    make(chan struct{}),
		onDrop:  cfg.OnDrop,
		onRetry: cfg.OnRetry,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Record enqueues the entry without blocking. Safe for concurrent use.
func (d *Dispatcher) Record(ctx context.Context, entry Entry) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- entry:
	default:
		d.dropped.Add(1)
		if d.onDrop != nil {
			d.onDrop()
		}
		d.logger.Error("audit buffer full, entry dropped",
			slog.String("action", entry.Action),
			slog.String("outcome", entry.Outcome))
	}
}

// Dropped reports how many entries were lost to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close drains the buffer and stops the drainer.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case entry := <-d.ch:
			d.write(entry)
		case <-d.done:
			for {
				select {
				case entry := <-d.ch:
					d.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := d.writer.Insert(ctx, entry)
	if err == nil {
		return
	}
	d.logger.Error("audit write failed", slog.Any("error", err), slog.String("action", entry.Action))
	if d.retryer == nil {
		return
	}
	if d.onRetry != nil {
		d.onRetry()
	}
	if qerr := d.retryer.EnqueueAuditRetry(ctx, entry); qerr != nil {
		d.dropped.Add(1)
		if d.onDrop != nil {
			d.onDrop()
		}
		d.logger.Error("audit retry enqueue failed, entry dropped", slog.Any("error", qerr))
	}
}

var _ Sink = (*Dispatcher)(nil)
