// Package history records finished deployment runs off the hot path. The
// websocket handler hands a Record to a buffered channel and moves on; a
// single worker batches them into storage on a count threshold or a flush
// interval, drains everything on shutdown, and trips a circuit breaker when
// storage is down so a sick database can never stall playback.
package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Record is one finished scripted run as seen by the narrator service.
type Record struct {
	ID            string    `json:"id"`
	ConnID        string    `json:"conn_id"`
	ForceFailure  bool      `json:"force_failure"`
	FailureChance float64   `json:"failure_chance"`
	Success       bool      `json:"success"`
	TotalSteps    int       `json:"total_steps"`
	DurationMS    int64     `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// Storage persists record batches in one round trip.
type Storage interface {
	WriteBatch(ctx context.Context, records []Record) error
}

// Options tunes the recorder buffer.
type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
}

// Recorder is the asynchronous writer. A Recorder built with nil storage is
// disabled: Record becomes a no-op, so callers never need a nil check.
type Recorder struct {
	ch      chan Record
	storage Storage
	log     *zap.Logger
	opts    Options
	cb      *gobreaker.CircuitBreaker
	wg      sync.WaitGroup

	closed  int32
	dropped int64
}

// NewRecorder builds a recorder; call Start before Record and Close when
// shutting down.
func NewRecorder(storage Storage, logger *zap.Logger, opts Options) *Recorder {
	opts.withDefaults()
	return &Recorder{
		ch:      make(chan Record, opts.BufferSize),
		storage: storage,
		log:     logger.Named("history"),
		opts:    opts,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "history-storage",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
	}
}

// Start launches the batch worker. Disabled recorders start nothing.
func (r *Recorder) Start() {
	if r.storage == nil {
		r.log.Info("history recording disabled: no storage configured")
		return
	}
	r.wg.Add(1)
	go r.worker()
}

// Record enqueues one run. Never blocks: a full buffer drops the record and
// counts it, because playback latency matters more than a complete ledger.
func (r *Recorder) Record(rec Record) {
	if r.storage == nil || atomic.LoadInt32(&r.closed) == 1 {
		return
	}
	select {
	case r.ch <- rec:
	default:
		n := atomic.AddInt64(&r.dropped, 1)
		r.log.Warn("history buffer full, record dropped", zap.Int64("dropped_total", n))
	}
}

// Dropped reports how many records were lost to a full buffer.
func (r *Recorder) Dropped() int64 {
	return atomic.LoadInt64(&r.dropped)
}

// Close stops intake, drains the buffer into storage, and waits for the
// final flush.
func (r *Recorder) Close() {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return
	}
	if r.storage == nil {
		return
	}
	close(r.ch)
	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]Record, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		r.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (r *Recorder) flush(batch []Record) {
	records := make([]Record, len(batch))
	copy(records, batch)

	_, err := r.cb.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return nil, r.storage.WriteBatch(ctx, records)
	})
	if err != nil {
		r.log.Error("history flush failed, batch lost",
			zap.Int("records", len(records)), zap.Error(err))
		return
	}
	r.log.Debug("history batch flushed", zap.Int("records", len(records)))
}
