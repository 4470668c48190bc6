package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/valr-go/internal/config"
	"github.com/samvad-hq/valr-go/internal/logger"
	"github.com/samvad-hq/valr-go/internal/poller"
	"github.com/samvad-hq/valr-go/internal/storage"
	"github.com/samvad-hq/valr-go/pkg/publishers"
	"github.com/samvad-hq/valr-go/pkg/valr"
)

// Poller represents the snapshot poller runtime. It owns the VALR client, the
// poll loop, the publisher fanout, and the digest/response store.
type Poller struct {
	cfg          *config.Config
	jobs         []poller.Job
	client       *valr.Client
	fanout       *publishers.Fanout
	service      *poller.Service
	pollInterval time.Duration
	log          logger.Logger
	store        storage.Store
}

// NewPoller builds a poller runtime from config files.
func NewPoller(ctx context.Context, cfg *config.Config, log logger.Logger) (*Poller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	jobs, err := poller.LoadJobs(cfg.JobsFile)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	jobIDs := make([]string, 0, len(jobs))
	for _, j := range jobs {
		jobIDs = append(jobIDs, j.ID)
	}
	log.InfoObj("jobs registry loaded", "jobs_meta", map[string]any{
		"count": len(jobIDs),
		"ids":   jobIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	storeOpts := storage.Options{
		DigestTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"digest_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	client, err := valr.New(valr.Options{
		BaseURL:     cfg.BaseURL,
		Credentials: valr.NewCredentials(cfg.APIKey, cfg.APISecret.Value()),
		Timeout:     cfg.RequestTimeout,
		Retry: valr.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BackoffBase,
			MaxDelay:    cfg.BackoffMax,
		},
		RateLimit:      cfg.RateLimitRPS,
		RateBurst:      cfg.RateLimitBurst,
		SignSubaccount: cfg.SignSubaccount,
		UserAgent:      cfg.UserAgent,
		Logger:         log,
		Cache:          store,
		CacheTTL:       cfg.ResponseCacheTTL,
	})
	if err != nil {
		_ = fanout.Close()
		_ = store.Close()
		return nil, fmt.Errorf("init valr client: %w", err)
	}

	return &Poller{
		cfg:          cfg,
		jobs:         jobs,
		client:       client,
		fanout:       fanout,
		service:      poller.NewService(client, fanout, log, store),
		pollInterval: cfg.PollInterval,
		log:          log,
		store:        store,
	}, nil
}

// Run starts the poll loop until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p == nil || p.service == nil {
		return fmt.Errorf("poller is not initialized")
	}
	defer p.close()

	p.log.InfoObj("poller loop starting", "poller_state", map[string]any{
		"jobs_count":       len(p.jobs),
		"publishers_count": p.fanout.Size(),
		"poll_interval":    p.pollInterval.String(),
	})

	if err := p.runOnce(ctx); err != nil {
		p.log.ErrorObj("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.InfoObj("poller loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := p.runOnce(ctx); err != nil {
				p.log.ErrorObj("scheduled poll failed", "error", err)
			}
		}
	}
}

// runOnce performs a single poll pass across all jobs.
func (p *Poller) runOnce(ctx context.Context) error {
	start := time.Now()
	p.log.InfoObj("poll started", "poll_meta", map[string]any{
		"jobs_count": len(p.jobs),
		"started_at": start.UTC(),
	})
	if err := p.service.Run(ctx, p.jobs); err != nil {
		return err
	}
	p.log.InfoObj("poll completed", "poll_meta", map[string]any{
		"jobs_count": len(p.jobs),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// close releases the client, publishers, and storage backend, logging failures.
func (p *Poller) close() {
	p.client.Close()
	if err := p.fanout.Close(); err != nil {
		p.log.ErrorObj("publisher close failed", "error", err)
	}
	if p.store == nil {
		return
	}
	if err := p.store.Close(); err != nil {
		p.log.ErrorObj("storage close failed", "error", err)
	}
}
