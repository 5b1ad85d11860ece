package analytics

import (
	"context"
	"time"

	"github.com/modelcouncil/council/council"
)

// Engine is the Analytics Core's read-side entrypoint: it answers
// time-range queries cache-first, computing the underlying statistic
// only on a cache miss.
type Engine struct {
	cache *Cache
}

// NewEngine builds an Engine with the given cache TTL (DefaultTTL if
// ttl <= 0).
func NewEngine(cacheTTL time.Duration) *Engine {
	return &Engine{cache: NewCache(cacheTTL)}
}

// LatencyPercentiles computes p50/p95/p99 latency across a set of
// TrackedResponses, cache-first by requestID.
func (e *Engine) LatencyPercentiles(ctx context.Context, requestID string, responses []council.TrackedResponse) map[string]float64 {
	key := Key("latency_percentiles", requestID)
	if v, ok := e.cache.Get(key); ok {
		return v.(map[string]float64)
	}

	samples := make([]float64, 0, len(responses))
	for _, r := range responses {
		samples = append(samples, r.Response.LatencyMs)
	}

	result := map[string]float64{
		"p50": Percentile(samples, 0.50),
		"p95": Percentile(samples, 0.95),
		"p99": Percentile(samples, 0.99),
	}
	e.cache.Set(key, result)
	return result
}

// Agreement computes the cross-request disagreement matrix for memberIDs
// over persisted responses, cache-first by a caller-supplied range id
// (e.g. a from/to window key) so the same range isn't recomputed from
// scratch on every read.
func (e *Engine) Agreement(ctx context.Context, rangeID string, memberIDs []string, responses []MemberResponseRecord) [][]float64 {
	key := Key("agreement", rangeID)
	if v, ok := e.cache.Get(key); ok {
		return v.([][]float64)
	}
	result := AgreementMatrix(memberIDs, responses)
	e.cache.Set(key, result)
	return result
}

// Influence computes per-member influence scores over persisted response
// and consensus records, cache-first by a caller-supplied range id.
func (e *Engine) Influence(ctx context.Context, rangeID string, responses []MemberResponseRecord, consensus []ConsensusRecord) map[string]float64 {
	key := Key("influence", rangeID)
	if v, ok := e.cache.Get(key); ok {
		return v.(map[string]float64)
	}
	result := InfluenceScores(responses, consensus)
	e.cache.Set(key, result)
	return result
}

// Costs aggregates cost records over a named time range, cache-first by
// range identifier.
func (e *Engine) Costs(ctx context.Context, rangeID string, records []council.CostRecord, observedDays float64) []CostAggregate {
	key := Key("costs", rangeID)
	if v, ok := e.cache.Get(key); ok {
		return v.([]CostAggregate)
	}
	result := AggregateCosts(records, observedDays)
	e.cache.Set(key, result)
	return result
}

// CostPerQuality pairs persisted requests' cost against their agreement
// level in descending temporal order, cache-first by range identifier.
func (e *Engine) CostPerQuality(ctx context.Context, rangeID string, records []RequestQualityRecord) []CostPerQuality {
	key := Key("cost_per_quality", rangeID)
	if v, ok := e.cache.Get(key); ok {
		return v.([]CostPerQuality)
	}
	result := PairCostWithQuality(records)
	e.cache.Set(key, result)
	return result
}

// Close releases the Engine's background cache cleanup goroutine.
func (e *Engine) Close() {
	e.cache.Close()
}
