package generation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joelkehle/formulation-studio/internal/cache"
	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

const DefaultCacheTTL = 24 * time.Hour

// CachingGenerator memoizes another Generator. Cache failures are logged and
// otherwise ignored.
type CachingGenerator struct {
	next    Generator
	cache   cache.Cache
	ttl     time.Duration
	log     logger.Logger
	metrics *telemetry.Metrics
}

func NewCachingGenerator(next Generator, c cache.Cache, ttl time.Duration, log logger.Logger, metrics *telemetry.Metrics) *CachingGenerator {
	if c == nil {
		c = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachingGenerator{
		next:    next,
		cache:   c,
		ttl:     ttl,
		log:     log.WithFields(map[string]interface{}{"component": "generation.cache"}),
		metrics: metrics,
	}
}

func (g *CachingGenerator) Generate(ctx context.Context, req Request) (formulation.Formulation, error) {
	if err := req.Validate(); err != nil {
		return formulation.Formulation{}, err
	}
	key := "formulation:" + req.Fingerprint("generate")

	var f formulation.Formulation
	if g.lookup(ctx, key, &f) {
		return f, nil
	}
	f, err := g.next.Generate(ctx, req)
	if err != nil {
		return formulation.Formulation{}, err
	}
	g.store(ctx, key, f)
	return f, nil
}

func (g *CachingGenerator) Assess(ctx context.Context, req Request) (formulation.QualityAssessment, error) {
	if err := req.Validate(); err != nil {
		return formulation.QualityAssessment{}, err
	}
	key := "assessment:" + req.Fingerprint("assess")

	var a formulation.QualityAssessment
	if g.lookup(ctx, key, &a) {
		return a, nil
	}
	a, err := g.next.Assess(ctx, req)
	if err != nil {
		return formulation.QualityAssessment{}, err
	}
	g.store(ctx, key, a)
	return a, nil
}

func (g *CachingGenerator) lookup(ctx context.Context, key string, out any) bool {
	raw, found, err := g.cache.Get(ctx, key)
	if err != nil {
		g.log.WithError(err).Warn("cache lookup failed", map[string]interface{}{"key": key})
		return false
	}
	if !found {
		g.metrics.CacheResult(false)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		g.log.WithError(err).Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
		g.metrics.CacheResult(false)
		return false
	}
	g.metrics.CacheResult(true)
	return true
}

func (g *CachingGenerator) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		g.log.WithError(err).Warn("cache encode failed", map[string]interface{}{"key": key})
		return
	}
	if err := g.cache.Set(ctx, key, raw, g.ttl); err != nil {
		g.log.WithError(err).Warn("cache store failed", map[string]interface{}{"key": key})
	}
}
