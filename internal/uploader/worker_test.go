package uploader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/enrich"
	"github.com/smukkama/wns-uploader/internal/record"
	"github.com/smukkama/wns-uploader/internal/wire"
)

// emptyArchive satisfies the enricher against a database with no rows.
type emptyArchive struct{}

func (emptyArchive) AggregateRange(context.Context, string, time.Time, time.Time, record.Operator) (*float64, error) {
	return nil, nil
}
func (emptyArchive) FirstTimestamp(context.Context, time.Time, time.Time) (*time.Time, error) {
	return nil, nil
}
func (emptyArchive) LastTimestamp(context.Context, time.Time, time.Time) (*time.Time, error) {
	return nil, nil
}
func (emptyArchive) ValueAt(context.Context, string, time.Time) (*float64, error) {
	return nil, nil
}
func (emptyArchive) RadiationEnergy(context.Context, time.Time, time.Time) (*float64, error) {
	return nil, nil
}

// fakeSender counts upload attempts and fails the first failures calls.
type fakeSender struct {
	mu       sync.Mutex
	failures int
	urls     []string
}

func (f *fakeSender) Send(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func testWorker(cfg WorkerConfig, sender Sender) *Worker {
	table := wire.DefaultTable()
	e := enrich.New(emptyArchive{}, table, nil, time.UTC, zerolog.Nop())
	s := &wire.Serializer{
		Station: "TST01", APIKey: "secret",
		BaseURL: "http://example.invalid/upload", Software: "WNSUP_0.4",
		Table: table, Log: zerolog.Nop(),
	}
	q := NewQueue(5, 0, zerolog.Nop())
	return NewWorker(cfg, q, e, s, sender, nil, zerolog.Nop())
}

func TestWorkerDeliversRecord(t *testing.T) {
	sender := &fakeSender{}
	w := testWorker(WorkerConfig{Station: "TST01", MaxTries: 3}, sender)

	w.process(context.Background(), testRecord(time.Now()))

	if sender.calls() != 1 {
		t.Fatalf("expected one upload attempt, got %d", sender.calls())
	}
	if !strings.HasPrefix(sender.urls[0], "http://example.invalid/upload?var=TST01;secret;") {
		t.Errorf("upload url = %q", sender.urls[0])
	}
	if w.lastPost.IsZero() {
		t.Error("last post time not recorded")
	}
}

func TestWorkerRetryBudgetExhausted(t *testing.T) {
	sender := &fakeSender{failures: 100}
	w := testWorker(WorkerConfig{Station: "TST01", MaxTries: 3}, sender)

	w.process(context.Background(), testRecord(time.Now()))

	if sender.calls() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", sender.calls())
	}
	if !w.lastPost.IsZero() {
		t.Error("failed record must not count as a post")
	}
}

func TestWorkerRetryThenSuccess(t *testing.T) {
	sender := &fakeSender{failures: 1}
	w := testWorker(WorkerConfig{Station: "TST01", MaxTries: 3}, sender)

	w.process(context.Background(), testRecord(time.Now()))

	if sender.calls() != 2 {
		t.Fatalf("expected 2 attempts, got %d", sender.calls())
	}
	if w.lastPost.IsZero() {
		t.Error("last post time not recorded")
	}
}

func TestWorkerDropsStaleRecord(t *testing.T) {
	sender := &fakeSender{}
	w := testWorker(WorkerConfig{Station: "TST01", MaxBacklogAge: time.Hour}, sender)

	w.process(context.Background(), testRecord(time.Now().Add(-2*time.Hour)))

	if sender.calls() != 0 {
		t.Errorf("stale record was sent %d times", sender.calls())
	}
}

func TestWorkerHonorsPostInterval(t *testing.T) {
	sender := &fakeSender{}
	w := testWorker(WorkerConfig{Station: "TST01", PostInterval: 5 * time.Minute}, sender)

	w.process(context.Background(), testRecord(time.Now()))
	w.process(context.Background(), testRecord(time.Now()))

	if sender.calls() != 1 {
		t.Errorf("expected the second record to be skipped, got %d sends", sender.calls())
	}
}

func TestWorkerSkipUpload(t *testing.T) {
	sender := &fakeSender{}
	w := testWorker(WorkerConfig{Station: "TST01", SkipUpload: true}, sender)

	w.process(context.Background(), testRecord(time.Now()))

	if sender.calls() != 0 {
		t.Errorf("skip_upload sent %d records", sender.calls())
	}
	// dry runs still advance the post clock
	if w.lastPost.IsZero() {
		t.Error("last post time not recorded")
	}
}

func TestWorkerStopAbandonsRetryWait(t *testing.T) {
	sender := &fakeSender{failures: 100}
	w := testWorker(WorkerConfig{Station: "TST01", MaxTries: 5, RetryWait: time.Hour}, sender)
	w.Start()

	if err := w.queue.Enqueue(testRecord(time.Now())); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sender.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never attempted the upload")
		}
		time.Sleep(5 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on the retry wait")
	}
}
