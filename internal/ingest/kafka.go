package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/smukkama/wns-uploader/internal/record"
)

// Enqueuer is the delivery-queue side the bridge feeds.
type Enqueuer interface {
	Enqueue(rec *record.Record) error
}

// Bridge consumes record envelopes from the host engine's topic and
// enqueues them for delivery. A malformed message is logged and
// committed; it never blocks the ones behind it.
type Bridge struct {
	reader *kafka.Reader
	queue  Enqueuer
	log    zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridge creates a consumer on the given brokers/topic/group.
func NewBridge(brokers []string, topic, groupID string, queue Enqueuer, log zerolog.Logger) *Bridge {
	return &Bridge{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		}),
		queue: queue,
		log:   log,
	}
}

// Start begins consuming until Stop is called.
func (b *Bridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.wg.Add(1)
	go b.run(ctx)
}

// Stop shuts the bridge down and closes the reader.
func (b *Bridge) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	if err := b.reader.Close(); err != nil {
		return fmt.Errorf("failed to close record reader: %w", err)
	}
	return nil
}

func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()

	for {
		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.log.Error().Err(err).Msg("record fetch failed")
			continue
		}

		b.handle(msg)

		if err := b.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			b.log.Error().Err(err).Msg("record commit failed")
		}
	}
}

func (b *Bridge) handle(msg kafka.Message) {
	rm, err := DecodeRecordMessage(msg.Value)
	if err != nil {
		b.log.Error().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Err(err).
			Msg("skipping malformed record message")
		return
	}

	// Enqueue handles the full-queue case itself (drop and log).
	_ = b.queue.Enqueue(rm.ToRecord())
}
