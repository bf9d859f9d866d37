package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wenwu/saas-platform/esim-storefront/internal/metrics"
	"github.com/wenwu/saas-platform/esim-storefront/internal/repository"
)

// kvEntry is one record write; a nil value deletes the key
type kvEntry struct {
	key   string
	value []byte
}

type writeJob struct {
	entries []kvEntry
	pending *Pending
}

// writer applies jobs one at a time in the order they were queued, so the
// mirror never regresses to an older snapshot.
type writer struct {
	kv      repository.KVStore
	jobs    chan writeJob
	stopped chan struct{}
	queued  atomic.Int64
	timeout time.Duration

	log     zerolog.Logger
	metrics *metrics.Metrics
	events  *broadcaster
}

func newWriter(kv repository.KVStore, size int, timeout time.Duration, log zerolog.Logger, m *metrics.Metrics, events *broadcaster) *writer {
	w := &writer{
		kv:      kv,
		jobs:    make(chan writeJob, size),
		stopped: make(chan struct{}),
		timeout: timeout,
		log:     log,
		metrics: m,
		events:  events,
	}
	go w.run()
	return w
}

// enqueue blocks while the queue is full
func (w *writer) enqueue(entries ...kvEntry) *Pending {
	p := newPending()
	w.metrics.SetPendingWrites(int(w.queued.Add(1)))
	w.jobs <- writeJob{entries: entries, pending: p}
	return p
}

// stop lets queued jobs drain; no enqueue may happen afterwards
func (w *writer) stop() {
	close(w.jobs)
}

func (w *writer) run() {
	defer close(w.stopped)
	for job := range w.jobs {
		job.pending.resolve(w.apply(job.entries))
		w.metrics.SetPendingWrites(int(w.queued.Add(-1)))
	}
}

func (w *writer) apply(entries []kvEntry) error {
	var firstErr error
	keys := make([]string, 0, len(entries))

	for _, e := range entries {
		keys = append(keys, e.key)
		err := w.write(e)
		w.metrics.RecordStoreWrite(e.key, err)
		if err != nil {
			w.log.Error().Err(err).Str("key", e.key).Msg("[Store] persist failed, in-memory state kept")
			if firstErr == nil {
				firstErr = fmt.Errorf("persist %s: %w", e.key, err)
			}
		}
	}

	if firstErr != nil {
		w.events.publish(Event{Type: EventPersistFailed, Keys: keys, Error: firstErr.Error()})
	} else {
		w.events.publish(Event{Type: EventPersisted, Keys: keys})
	}
	return firstErr
}

func (w *writer) write(e kvEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if e.value == nil {
		return w.kv.Delete(ctx, e.key)
	}
	return w.kv.Set(ctx, e.key, e.value)
}
