// Package monitoring tracks service counters for the stats endpoint.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsSnapshot holds a point-in-time view of service activity since start.
type MetricsSnapshot struct {
	EnrichmentsTotal  int64 `json:"enrichments_total"`
	EnrichmentsFailed int64 `json:"enrichments_failed"`
	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	AnalysesDegraded  int64 `json:"analyses_degraded"`
	SideSourceErrors  int64 `json:"side_source_errors"`

	StartedAt   time.Time `json:"started_at"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collector accumulates counters. All methods are safe for concurrent use;
// a nil *Collector is a no-op so callers never have to guard.
type Collector struct {
	startedAt time.Time

	enrichments atomic.Int64
	failures    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	degraded    atomic.Int64
	sideErrors  atomic.Int64
}

// NewCollector creates a Collector with the start time set to now.
func NewCollector() *Collector {
	return &Collector{startedAt: time.Now()}
}

func (c *Collector) RecordEnrichment() {
	if c != nil {
		c.enrichments.Add(1)
	}
}

func (c *Collector) RecordFailure() {
	if c != nil {
		c.failures.Add(1)
	}
}

func (c *Collector) RecordCacheHit() {
	if c != nil {
		c.cacheHits.Add(1)
	}
}

func (c *Collector) RecordCacheMiss() {
	if c != nil {
		c.cacheMisses.Add(1)
	}
}

// RecordDegraded counts an analysis that fell back to default values.
func (c *Collector) RecordDegraded() {
	if c != nil {
		c.degraded.Add(1)
	}
}

// RecordSideSourceError counts a failed attachment, website or meeting fetch.
func (c *Collector) RecordSideSourceError() {
	if c != nil {
		c.sideErrors.Add(1)
	}
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{CollectedAt: time.Now()}
	}
	return MetricsSnapshot{
		EnrichmentsTotal:  c.enrichments.Load(),
		EnrichmentsFailed: c.failures.Load(),
		CacheHits:         c.cacheHits.Load(),
		CacheMisses:       c.cacheMisses.Load(),
		AnalysesDegraded:  c.degraded.Load(),
		SideSourceErrors:  c.sideErrors.Load(),
		StartedAt:         c.startedAt,
		CollectedAt:       time.Now(),
	}
}
