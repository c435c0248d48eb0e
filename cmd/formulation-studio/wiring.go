package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joelkehle/formulation-studio/internal/cache"
	"github.com/joelkehle/formulation-studio/internal/config"
	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/generation"
	"github.com/joelkehle/formulation-studio/internal/insights"
	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

func newDeriver(cfg *config.Config) *insights.Deriver {
	return insights.NewDeriver(
		formulation.NewScorer(cfg.Scoring.Keywords),
		marketanalysis.NewCalculator(cfg.Market.Tables()),
	)
}

// newGenerator builds the configured backend, wrapped in the Redis cache
// when enabled. The returned close func releases the cache connection.
func newGenerator(ctx context.Context, cfg *config.Config, log logger.Logger, metrics *telemetry.Metrics) (generation.Generator, func(), error) {
	var (
		gen generation.Generator
		err error
	)
	switch cfg.Generation.Backend {
	case config.BackendAnthropic:
		var caller *generation.AnthropicCaller
		caller, err = generation.NewAnthropicCaller(cfg.Generation.APIKey, cfg.Generation.Model)
		if err == nil {
			gen = generation.NewLLMGenerator(caller, log, metrics)
		}
	default:
		gen, err = generation.NewRemoteClient(generation.RemoteOptions{
			BaseURL:      cfg.Generation.BaseURL,
			APIKey:       cfg.Generation.APIKey,
			Timeout:      cfg.Generation.Timeout,
			MaxRetries:   cfg.Generation.MaxRetries,
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 5 * time.Second,
		}, log, metrics)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("build %s generator: %w", cfg.Generation.Backend, err)
	}

	if !cfg.Cache.Enabled {
		return gen, func() {}, nil
	}
	rc := cache.NewRedis(cache.Options{Addr: cfg.Cache.Addr, Password: cfg.Cache.Password, DB: cfg.Cache.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		// Generation still works without the cache.
		log.WithError(err).Warn("redis unavailable, continuing without response cache", map[string]interface{}{"addr": cfg.Cache.Addr})
	}
	closeFn := func() {
		if err := rc.Close(); err != nil {
			log.WithError(err).Warn("close redis", nil)
		}
	}
	return generation.NewCachingGenerator(gen, rc, cfg.Cache.TTL, log, metrics), closeFn, nil
}
