package audit

import (
	"context"
	"sync"
	"time"

	"aegisid.org/internal/identity"
	"aegisid.org/internal/obs"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// Recorder persists audit records best-effort through a bounded asynchronous
// queue. Enqueueing never blocks the caller: when the queue is full the
// record is dropped and counted. Persistence failures are logged and
// discarded; nothing ever propagates back to the request that triggered the
// record. A crash between handler success and the queued write loses the
// entry: delivery is best-effort, not at-least-once.
type Recorder struct {
	store identity.AuditStore

	queue        chan identity.AuditRecord
	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

var _ identity.AuditSink = (*Recorder)(nil)

// RecorderOption configures Recorder behavior.
type RecorderOption func(*Recorder)

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan identity.AuditRecord, n)
		}
	}
}

// WithWriteTimeout bounds each persistence attempt.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRecorder constructs a Recorder and starts its writer goroutine.
func NewRecorder(store identity.AuditStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:        store,
		queue:        make(chan identity.AuditRecord, defaultQueueSize),
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues the record for asynchronous persistence. The inbound
// request context is deliberately ignored: a dispatched audit write is not
// aborted by the request's own cancellation.
func (r *Recorder) Record(_ context.Context, rec identity.AuditRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.queue <- rec:
	default:
		obs.AuditDropped()
		obs.LogJSON("warn", "audit_record_dropped", map[string]any{
			"action": rec.Action,
			"entity": rec.Entity,
		})
	}
}

// Close stops accepting records and drains the queue, bounded by ctx.
func (r *Recorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-r.done:
			// Drain whatever was enqueued before shutdown.
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec identity.AuditRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if err := r.store.Append(ctx, &rec); err != nil {
		obs.AuditWriteFailed()
		obs.Error("audit_write_failed", err, map[string]any{
			"action": rec.Action,
			"entity": rec.Entity,
		})
	}
}
