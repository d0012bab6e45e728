package uploader

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/enrich"
	"github.com/smukkama/wns-uploader/internal/record"
	"github.com/smukkama/wns-uploader/internal/wire"
)

// Sender performs a single upload attempt.
type Sender interface {
	Send(ctx context.Context, url string) error
}

// WorkerConfig bounds the worker's delivery behavior.
type WorkerConfig struct {
	Station       string
	MaxTries      int
	RetryWait     time.Duration
	PostInterval  time.Duration // minimum time between posts; 0 posts every record
	MaxBacklogAge time.Duration // records older than this are dropped unsent; 0 disables
	SkipUpload    bool          // dry run: serialize but never send
	LogURL        bool          // log the full URL including the API key
}

// Worker is the single consumer of the delivery queue. Per record it
// enriches, serializes and sends with a bounded retry budget; a record
// that exhausts its budget is dropped, never requeued, and never affects
// the next record.
type Worker struct {
	cfg        WorkerConfig
	queue      *Queue
	enricher   *enrich.Enricher
	serializer *wire.Serializer
	sender     Sender
	status     *StatusStore // optional

	lastPost time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewWorker wires the delivery worker. status may be nil.
func NewWorker(cfg WorkerConfig, queue *Queue, enricher *enrich.Enricher, serializer *wire.Serializer, sender Sender, status *StatusStore, log zerolog.Logger) *Worker {
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 3
	}
	return &Worker{
		cfg:        cfg,
		queue:      queue,
		enricher:   enricher,
		serializer: serializer,
		sender:     sender,
		status:     status,
		stopCh:     make(chan struct{}),
		log:        log,
	}
}

// Start begins consuming the queue.
func (w *Worker) Start() {
	if w.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if st, err := w.status.Get(ctx, w.cfg.Station); err != nil {
			w.log.Warn().Err(err).Msg("could not load upload status")
		} else {
			w.lastPost = st.LastPost
		}
	}

	w.wg.Add(1)
	go w.run()
}

// Stop shuts the worker down, letting an in-flight record finish or
// abandon its retry wait.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case rec := <-w.queue.Records():
			w.process(context.Background(), rec)
		}
	}
}

func (w *Worker) process(ctx context.Context, rec *record.Record) {
	id := uuid.New().String()
	log := w.log.With().Str("delivery", id).Time("record", rec.Time).Logger()
	now := time.Now()

	if w.cfg.MaxBacklogAge > 0 && rec.Age(now) > w.cfg.MaxBacklogAge {
		log.Warn().Dur("age", rec.Age(now)).Msg("record too stale, dropping")
		w.updateStatus(func(st *UploadStatus) { st.Dropped++ })
		return
	}

	if w.cfg.PostInterval > 0 && now.Sub(w.lastPost) < w.cfg.PostInterval {
		log.Debug().Msg("post interval not reached, skipping record")
		w.updateStatus(func(st *UploadStatus) { st.Dropped++ })
		return
	}

	enriched := w.enricher.Enrich(ctx, rec)
	url := w.serializer.FormatURL(enriched)
	if w.cfg.LogURL {
		log.Info().Str("url", url).Msg("upload url")
	}

	if w.cfg.SkipUpload {
		log.Info().Msg("skip_upload set, record serialized but not sent")
		w.markPosted(now)
		return
	}

	var lastErr error
	for try := 1; try <= w.cfg.MaxTries; try++ {
		if err := w.sender.Send(ctx, url); err != nil {
			lastErr = err
			log.Warn().Int("try", try).Int("max_tries", w.cfg.MaxTries).Err(err).Msg("upload attempt failed")
			if try < w.cfg.MaxTries && !w.wait(w.cfg.RetryWait) {
				log.Warn().Msg("shutting down, abandoning record")
				return
			}
			continue
		}
		log.Info().Int("try", try).Msg("record uploaded")
		w.markPosted(time.Now())
		return
	}

	log.Error().Err(lastErr).Int("tries", w.cfg.MaxTries).Msg("retry budget exhausted, dropping record")
	w.updateStatus(func(st *UploadStatus) { st.Failed++ })
}

// wait sleeps for d unless the worker is stopping. It reports whether the
// wait completed.
func (w *Worker) wait(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.stopCh:
		return false
	}
}

func (w *Worker) markPosted(t time.Time) {
	w.lastPost = t
	w.updateStatus(func(st *UploadStatus) {
		st.LastPost = t
		st.LastSuccess = t
		st.Posted++
	})
}

// updateStatus is best effort: status-store failures are logged and
// otherwise ignored.
func (w *Worker) updateStatus(mutate func(*UploadStatus)) {
	if w.status == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := w.status.Get(ctx, w.cfg.Station)
	if err != nil {
		w.log.Warn().Err(err).Msg("could not read upload status")
		return
	}
	mutate(st)
	if err := w.status.Set(ctx, w.cfg.Station, st); err != nil {
		w.log.Warn().Err(err).Msg("could not write upload status")
	}
}
