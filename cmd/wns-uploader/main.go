package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/smukkama/wns-uploader/internal/archive"
	"github.com/smukkama/wns-uploader/internal/enrich"
	"github.com/smukkama/wns-uploader/internal/ingest"
	"github.com/smukkama/wns-uploader/internal/uploader"
	"github.com/smukkama/wns-uploader/internal/wire"
	"github.com/smukkama/wns-uploader/pkg/config"
)

const version = "0.4"

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if !cfg.WNS.Enable {
		log.Info().Msg("uploader disabled, exiting")
		return
	}

	log.Info().Str("version", version).Str("station", cfg.WNS.Station).Msg("starting WNS uploader")
	log.Info().Str("url", cfg.WNS.ServerURL).Msg("data will be uploaded to")

	db, err := archive.Connect(cfg.Archive.ConnectionString(), cfg.Archive.Table)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to archive database")
	}
	defer db.Close()

	var status *uploader.StatusStore
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		status = uploader.NewStatusStore(redisClient)
	}

	table := wire.ApplyOverrides(wire.DefaultTable(), wire.Overrides{
		SecondaryTemp: cfg.Overrides.SecondaryTemp,
		SunshineDur:   cfg.Overrides.SunshineDur,
		SoilTemp10:    cfg.Overrides.SoilTemp10,
		SoilTemp20:    cfg.Overrides.SoilTemp20,
		SoilTemp50:    cfg.Overrides.SoilTemp50,
	}, log.With().Str("component", "fieldtable").Logger())

	gts := enrich.NewGTSState()
	enricher := enrich.New(db, table, gts, time.Local,
		log.With().Str("component", "enrich").Logger())

	serializer := &wire.Serializer{
		Station:  cfg.WNS.Station,
		APIKey:   cfg.WNS.APIKey,
		BaseURL:  cfg.WNS.ServerURL,
		Software: fmt.Sprintf("WNSUP_%s", version),
		Table:    table,
		Log:      log.With().Str("component", "wire").Logger(),
	}

	queue := uploader.NewQueue(cfg.WNS.QueueCapacity, cfg.WNS.EnqueueTimeout,
		log.With().Str("component", "queue").Logger())
	client := uploader.NewClient(cfg.WNS.Timeout)

	worker := uploader.NewWorker(uploader.WorkerConfig{
		Station:       cfg.WNS.Station,
		MaxTries:      cfg.WNS.MaxTries,
		RetryWait:     cfg.WNS.RetryWait,
		PostInterval:  cfg.WNS.PostInterval,
		MaxBacklogAge: cfg.WNS.MaxBacklogAge,
		SkipUpload:    cfg.WNS.SkipUpload,
		LogURL:        cfg.WNS.LogURL,
	}, queue, enricher, serializer, client, status,
		log.With().Str("component", "worker").Logger())
	worker.Start()

	bridge := ingest.NewBridge(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID,
		queue, log.With().Str("component", "ingest").Logger())
	bridge.Start()

	log.Info().Msg("uploader running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	if err := bridge.Stop(); err != nil {
		log.Warn().Err(err).Msg("ingest shutdown failed")
	}
	worker.Stop()
}
