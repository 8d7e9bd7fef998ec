// Package usage decouples ledger writes from the request-serving path.
// Recording is best-effort: a full queue drops the record and a failed
// write is logged and swallowed, never surfaced to the request.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

const (
	defaultQueueSize = 1024
	writeTimeout     = 5 * time.Second
	dropLogEvery     = 100 // warn once per N dropped records
)

// Recorder feeds usage records to the store through a bounded channel and a
// single background worker.
type Recorder struct {
	store   *store.Store
	logger  *slog.Logger
	queue   chan *model.UsageRecord
	dropped atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRecorder(st *store.Store, logger *slog.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		store:  st,
		logger: logger,
		queue:  make(chan *model.UsageRecord, queueSize),
	}
}

// Start launches the background writer. Non-blocking.
func (r *Recorder) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case rec := <-r.queue:
				r.write(rec)
			case <-ctx.Done():
				r.drain()
				return
			}
		}
	}()
}

// Record enqueues one ledger row. If the queue is full the record is dropped
// so memory stays bounded and the caller never blocks.
func (r *Recorder) Record(rec *model.UsageRecord) {
	select {
	case r.queue <- rec:
	default:
		n := r.dropped.Add(1)
		if n%dropLogEvery == 1 {
			r.logger.Warn("usage queue full, dropping records", "dropped_total", n)
		}
	}
}

// Dropped returns how many records have been discarded since start.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Shutdown stops the worker after flushing whatever is still queued.
func (r *Recorder) Shutdown() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Recorder) write(rec *model.UsageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.InsertUsageRecord(ctx, rec); err != nil {
		r.logger.Warn("usage record write failed", "endpoint", rec.Endpoint, "error", err)
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		default:
			return
		}
	}
}
