package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hassbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hassbridge/internal/rpc"
)

// DefaultBufferSize is the record queue length. Records beyond it are dropped.
const DefaultBufferSize = 256

// sinkTimeout bounds a single sink write.
const sinkTimeout = 5 * time.Second

// Sink receives audit records.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Write delivers one record. Errors are logged and otherwise ignored.
	Write(ctx context.Context, rec *Record) error
}

// Recorder queues call records and writes them to sinks from one goroutine.
//
// Thread Safety:
//   - ObserveCall is safe for concurrent use and never blocks.
type Recorder struct {
	logger *logging.Logger
	sinks  []Sink
	ch     chan *Record

	done    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBufferSize overrides DefaultBufferSize.
func WithBufferSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.ch = make(chan *Record, n)
		}
	}
}

// NewRecorder starts a Recorder writing to sinks. Call Close to stop it.
func NewRecorder(logger *logging.Logger, sinks []Sink, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}

	r := &Recorder{
		logger: logger,
		sinks:  sinks,
		ch:     make(chan *Record, DefaultBufferSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.drain()

	return r
}

// ObserveCall implements rpc.Observer.
func (r *Recorder) ObserveCall(_ context.Context, call rpc.Call) {
	if r.closed.Load() || len(r.sinks) == 0 {
		return
	}

	rec := newRecord(call)

	select {
	case r.ch <- rec:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping record",
			"method", rec.Method,
			"outcome", string(rec.Outcome),
		)
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting records, writes everything already queued and waits
// for the drain goroutine to exit.
func (r *Recorder) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	close(r.done)
	r.wg.Wait()
	return nil
}

// drain writes records serially until Close, then empties the queue.
func (r *Recorder) drain() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.ch:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.ch:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *Record) {
	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := sink.Write(ctx, rec); err != nil {
			r.logger.Warn("audit sink write failed",
				"sink", sink.Name(),
				"method", rec.Method,
				"error", err,
			)
		}
		cancel()
	}
}
