package monitoring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	c.RecordEnrichment()
	c.RecordEnrichment()
	c.RecordFailure()
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordCacheMiss()
	c.RecordDegraded()
	c.RecordSideSourceError()

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.EnrichmentsTotal)
	assert.EqualValues(t, 1, snap.EnrichmentsFailed)
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.EqualValues(t, 2, snap.CacheMisses)
	assert.EqualValues(t, 1, snap.AnalysesDegraded)
	assert.EqualValues(t, 1, snap.SideSourceErrors)
	assert.False(t, snap.StartedAt.IsZero())
	assert.False(t, snap.CollectedAt.Before(snap.StartedAt))
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordEnrichment()
			c.RecordCacheMiss()
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.EqualValues(t, 50, snap.EnrichmentsTotal)
	assert.EqualValues(t, 50, snap.CacheMisses)
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	c.RecordEnrichment()
	c.RecordCacheHit()

	snap := c.Snapshot()
	assert.EqualValues(t, 0, snap.EnrichmentsTotal)
	assert.False(t, snap.CollectedAt.IsZero())
}
