// Package uploader delivers serialized records to the WNS endpoint
// through a bounded queue, a single worker with bounded retries, and a
// rate-limited HTTP client.
package uploader

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/record"
)

// ErrQueueFull is returned when a record cannot be enqueued within the
// producer's blocking timeout.
var ErrQueueFull = errors.New("delivery queue full")

// Queue is the bounded FIFO between the record producer and the delivery
// worker. It is the only backpressure mechanism: on overflow the producer
// drops the record after a short blocking wait instead of growing the
// backlog.
type Queue struct {
	ch      chan *record.Record
	timeout time.Duration
	log     zerolog.Logger
}

// NewQueue creates a queue with the given capacity and producer-side
// blocking timeout.
func NewQueue(capacity int, timeout time.Duration, log zerolog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 5
	}
	return &Queue{
		ch:      make(chan *record.Record, capacity),
		timeout: timeout,
		log:     log,
	}
}

// Enqueue offers a record to the worker. It blocks at most the configured
// timeout; a full queue past that point drops the record with an error
// log, since it usually means the worker has stalled.
func (q *Queue) Enqueue(rec *record.Record) error {
	if q.timeout <= 0 {
		select {
		case q.ch <- rec:
			return nil
		default:
		}
	} else {
		timer := time.NewTimer(q.timeout)
		defer timer.Stop()
		select {
		case q.ch <- rec:
			return nil
		case <-timer.C:
		}
	}

	q.log.Error().
		Time("record", rec.Time).
		Int("capacity", cap(q.ch)).
		Msg("delivery queue full, dropping record")
	return ErrQueueFull
}

// Records exposes the consumer side of the queue.
func (q *Queue) Records() <-chan *record.Record {
	return q.ch
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	return len(q.ch)
}
