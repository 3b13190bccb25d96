// SPDX-License-Identifier: MIT

// Package daemon wires the whole replication stack together and owns the
// sync schedule. One App instance per process.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openestate/resosync/internal/blob"
	"github.com/openestate/resosync/internal/config"
	"github.com/openestate/resosync/internal/log"
	"github.com/openestate/resosync/internal/media"
	"github.com/openestate/resosync/internal/ops"
	"github.com/openestate/resosync/internal/progress"
	"github.com/openestate/resosync/internal/ratelimit"
	"github.com/openestate/resosync/internal/reso"
	"github.com/openestate/resosync/internal/search"
	"github.com/openestate/resosync/internal/store"
	syncdrv "github.com/openestate/resosync/internal/sync"
)

// Driver is one delta-sync unit of work, run sequentially per cycle.
type Driver interface {
	Name() string
	Run(ctx context.Context) error
}

// App owns every long-lived component and the cycle schedule.
type App struct {
	cfg      config.AppConfig
	store    *store.Store
	search   *search.Indexer
	bucket   *blob.Bucket
	worker   *media.Worker
	recorder *progress.Recorder
	ops      *ops.Server
	drivers  []Driver
	logger   zerolog.Logger
}

// New connects all adapters and builds the driver chain. Failures here are
// fatal: a daemon that cannot reach its stores has nothing to do.
func New(ctx context.Context, cfg config.AppConfig) (*App, error) {
	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.OriginatingSystem)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	bucket, err := blob.New(ctx, blob.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		CDNBase:   cfg.CDNBaseURL,
		Prefix:    cfg.StoragePrefix,
		System:    cfg.OriginatingSystem,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("object store: %w", err)
	}

	apiGovernor := ratelimit.NewGovernor("api", cfg.APIMinInterval, cfg.HourlyRequestCap)
	mediaGovernor := ratelimit.NewGovernor("media", cfg.MediaMinInterval, cfg.HourlyRequestCap)

	client, err := reso.NewClient(cfg.ResoBaseURL, cfg.ResoToken, apiGovernor)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("upstream client: %w", err)
	}
	downloader := reso.NewDownloader(mediaGovernor)

	searcher := search.New(cfg.MeiliHost, cfg.MeiliMasterKey, cfg.MeiliIndex)

	worker := media.NewWorker(st, client, downloader, bucket, searcher, mediaGovernor, cfg.MediaMinInterval)

	system := cfg.OriginatingSystem
	batch := cfg.BatchSize
	drivers := []Driver{
		syncdrv.NewListingDriver(client, st, st, searcher, worker, system, batch, cfg.MaxProperties),
		syncdrv.NewDeletionsDriver(client, st, st, searcher, bucket, system, batch),
		syncdrv.NewMemberDriver(client, st, st, system, batch, cfg.MaxMembers),
		syncdrv.NewOfficeDriver(client, st, st, system, batch, cfg.MaxOffices),
		syncdrv.NewOpenHouseDriver(client, st, st, system, batch, cfg.MaxOpenHouses),
		syncdrv.NewLookupDriver(client, st, st, system, batch),
	}

	return &App{
		cfg:      cfg,
		store:    st,
		search:   searcher,
		bucket:   bucket,
		worker:   worker,
		recorder: progress.NewRecorder(st, worker),
		ops:      ops.NewServer(st, mediaGovernor, cfg.MediaMinInterval),
		drivers:  drivers,
		logger:   log.WithComponent("daemon"),
	}, nil
}

// Run migrates, optionally resets, and drives the replication loops until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if a.cfg.ResetOnStart {
		if err := progress.Reset(ctx, a.store, a.bucket, a.search); err != nil {
			// A partial reset is recoverable: the next cycles re-mirror from
			// scratch and overwrite whatever survived.
			a.logger.Error().Err(err).Msg("reset incomplete, continuing")
		}
	}

	if err := a.search.EnsureIndex(); err != nil {
		return fmt.Errorf("search index: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.worker.Run(ctx) })
	g.Go(func() error { return a.ops.Run(ctx, a.cfg.OpsListen) })
	g.Go(func() error { return a.syncLoop(ctx) })

	err := g.Wait()
	if cerr := a.store.Close(); cerr != nil {
		a.logger.Warn().Err(cerr).Msg("store close failed")
	}
	if err != nil && ctx.Err() != nil {
		a.logger.Info().Str("event", "daemon.stopped").Msg("shut down")
		return nil
	}
	return err
}

// syncLoop runs one cycle immediately, then on every tick.
func (a *App) syncLoop(ctx context.Context) error {
	a.cycle(ctx)
	ticker := time.NewTicker(a.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

// cycle runs every driver in dependency order. A failing driver is logged
// and skipped; its watermark is untouched, so the next cycle resumes where
// it left off. Drivers never take the process down.
func (a *App) cycle(ctx context.Context) {
	cycleStart := time.Now()
	a.logger.Info().Str("event", "sync.cycle_start").Msg("sync cycle starting")

	for _, d := range a.drivers {
		if ctx.Err() != nil {
			return
		}
		if err := d.Run(ctx); err != nil {
			a.logger.Error().Err(err).
				Str("event", "sync.driver_failed").
				Str("resource", d.Name()).
				Msg("driver failed, continuing with next")
		}
	}

	// End-of-cycle sweep: wake the worker for any assets the cycle left
	// missing, then snapshot progress.
	a.worker.Nudge()
	a.recorder.MaybeRecord(ctx)

	a.logger.Info().
		Str("event", "sync.cycle_done").
		Dur("duration", time.Since(cycleStart)).
		Msg("sync cycle complete")
}
