// Package performance observes cache traffic and turns it into advisory
// tuning recommendations. The analyzer never changes TTLs or evicts entries.
package performance

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
)

const (
	DefaultReportInterval = 5 * time.Minute
	DefaultMaxTrackedKeys = 10000
	DefaultMaxPatterns    = 1000
	DefaultTopN           = 10
)

// counters is the shared atomic accumulator for keys and patterns
type counters struct {
	hits               atomic.Int64
	misses             atomic.Int64
	invalidations      atomic.Int64
	invalidatedEntries atomic.Int64
	retrievalNanos     atomic.Int64
	fallbackNanos      atomic.Int64
	lastAccess         atomic.Int64
}

func (c *counters) touch(now time.Time) {
	c.lastAccess.Store(now.UnixNano())
}

func (c *counters) snapshot(name string) AccessStats {
	stats := AccessStats{
		Name:               name,
		Hits:               c.hits.Load(),
		Misses:             c.misses.Load(),
		Invalidations:      c.invalidations.Load(),
		InvalidatedEntries: c.invalidatedEntries.Load(),
	}
	stats.Accesses = stats.Hits + stats.Misses
	if stats.Accesses > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(stats.Accesses)
		stats.InvalidationRatio = float64(stats.Invalidations) / float64(stats.Accesses)
	}
	if stats.Hits > 0 {
		stats.AvgRetrieval = time.Duration(c.retrievalNanos.Load() / stats.Hits)
	}
	if stats.Misses > 0 {
		stats.AvgFallback = time.Duration(c.fallbackNanos.Load() / stats.Misses)
	}
	if last := c.lastAccess.Load(); last > 0 {
		stats.LastAccess = time.Unix(0, last)
	}
	return stats
}

// AccessStats is a point-in-time view of one key or one pattern
type AccessStats struct {
	Name               string        `json:"name"`
	Hits               int64         `json:"hits"`
	Misses             int64         `json:"misses"`
	Accesses           int64         `json:"accesses"`
	Invalidations      int64         `json:"invalidations"`
	InvalidatedEntries int64         `json:"invalidatedEntries"`
	HitRatio           float64       `json:"hitRatio"`
	InvalidationRatio  float64       `json:"invalidationRatio"`
	AvgRetrieval       time.Duration `json:"avgRetrieval"`
	AvgFallback        time.Duration `json:"avgFallback"`
	LastAccess         time.Time     `json:"lastAccess"`
}

// Analyzer implements cache.Observer. Per-key and per-pattern counters live in
// separate LRUs; evicting a pattern also drops its prometheus series.
type Analyzer struct {
	keys     *lru.Cache[string, *counters]
	patterns *lru.Cache[string, *counters]

	totalHits   atomic.Int64
	totalMisses atomic.Int64

	metrics        *Metrics
	reportInterval time.Duration
	topN           int
	logger         *logrus.Logger
	now            func() time.Time
}

// NewAnalyzer creates an analyzer. A nil registerer skips prometheus export.
func NewAnalyzer(cfg *config.RepositoryConfig, reg prometheus.Registerer, logger *logrus.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	maxKeys := DefaultMaxTrackedKeys
	maxPatterns := DefaultMaxPatterns
	interval := DefaultReportInterval
	topN := DefaultTopN
	if cfg != nil {
		if cfg.AnalyzerMaxTrackedKeys > 0 {
			maxKeys = cfg.AnalyzerMaxTrackedKeys
		}
		if cfg.AnalyzerMaxTrackedPatterns > 0 {
			maxPatterns = cfg.AnalyzerMaxTrackedPatterns
		}
		if cfg.AnalyzerReportInterval > 0 {
			interval = cfg.AnalyzerReportInterval
		}
		if cfg.AnalyzerTopN > 0 {
			topN = cfg.AnalyzerTopN
		}
	}

	keys, err := lru.New[string, *counters](maxKeys)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		keys:           keys,
		reportInterval: interval,
		topN:           topN,
		logger:         logger,
		now:            time.Now,
	}
	if reg != nil {
		a.metrics = NewMetrics(reg)
	}

	a.patterns, err = lru.NewWithEvict[string, *counters](maxPatterns, func(pattern string, _ *counters) {
		if a.metrics != nil {
			a.metrics.Forget(pattern)
		}
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// RecordHit counts a served hit
func (a *Analyzer) RecordHit(key string, retrieval time.Duration) {
	now := a.now()
	pattern := NormalizeKey(key)

	for _, c := range []*counters{a.keyCounters(key), a.patternCounters(pattern)} {
		c.hits.Add(1)
		c.retrievalNanos.Add(int64(retrieval))
		c.touch(now)
	}
	a.totalHits.Add(1)

	if a.metrics != nil {
		a.metrics.Hits.WithLabelValues(pattern).Inc()
		a.metrics.Retrieval.WithLabelValues(pattern).Observe(retrieval.Seconds())
	}
}

// RecordMiss counts a miss and the time the source of truth took to answer it
func (a *Analyzer) RecordMiss(key string, fallback time.Duration) {
	now := a.now()
	pattern := NormalizeKey(key)

	for _, c := range []*counters{a.keyCounters(key), a.patternCounters(pattern)} {
		c.misses.Add(1)
		c.fallbackNanos.Add(int64(fallback))
		c.touch(now)
	}
	a.totalMisses.Add(1)

	if a.metrics != nil {
		a.metrics.Misses.WithLabelValues(pattern).Inc()
		a.metrics.Fallback.WithLabelValues(pattern).Observe(fallback.Seconds())
	}
}

// RecordInvalidation counts an invalidation. A glob is attributed to every
// tracked pattern it covers; an exact key updates its own counters when tracked.
func (a *Analyzer) RecordInvalidation(keyOrPattern string, affected int64) {
	normalized := NormalizeKey(keyOrPattern)

	if !isGlob(keyOrPattern) {
		if c, ok := a.keys.Peek(keyOrPattern); ok {
			c.invalidations.Add(1)
			c.invalidatedEntries.Add(affected)
		}
		a.recordPatternInvalidation(normalized, affected)
		return
	}

	// each covered pattern is credited with the full count; the backend does not report the split
	matched := false
	for _, pattern := range a.patterns.Keys() {
		if !globMatches(normalized, pattern) && !globMatches(keyOrPattern, pattern) {
			continue
		}
		if c, ok := a.patterns.Peek(pattern); ok {
			c.invalidations.Add(1)
			c.invalidatedEntries.Add(affected)
			matched = true
		}
	}
	if !matched {
		a.recordPatternInvalidation(normalized, affected)
		return
	}
	if a.metrics != nil {
		a.metrics.Invalidations.WithLabelValues(normalized).Add(float64(affected))
	}
}

func (a *Analyzer) recordPatternInvalidation(pattern string, affected int64) {
	pc := a.patternCounters(pattern)
	pc.invalidations.Add(1)
	pc.invalidatedEntries.Add(affected)
	if a.metrics != nil {
		a.metrics.Invalidations.WithLabelValues(pattern).Add(float64(affected))
	}
}

// Snapshot returns the counters of a tracked key
func (a *Analyzer) Snapshot(key string) (AccessStats, bool) {
	c, ok := a.keys.Peek(key)
	if !ok {
		return AccessStats{}, false
	}
	return c.snapshot(key), true
}

// PatternSnapshot returns the counters of a normalized pattern
func (a *Analyzer) PatternSnapshot(pattern string) (AccessStats, bool) {
	c, ok := a.patterns.Peek(pattern)
	if !ok {
		return AccessStats{}, false
	}
	return c.snapshot(pattern), true
}

// TrackedKeys returns how many keys currently hold per-key counters
func (a *Analyzer) TrackedKeys() int {
	return a.keys.Len()
}

// TrackedPatterns returns how many normalized patterns currently hold counters
func (a *Analyzer) TrackedPatterns() int {
	return a.patterns.Len()
}

// Reset drops every counter together with the exported per-pattern series
func (a *Analyzer) Reset() {
	a.keys.Purge()
	a.patterns.Purge()
	a.totalHits.Store(0)
	a.totalMisses.Store(0)
}

// Run emits a report every interval until ctx is cancelled
func (a *Analyzer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.reportInterval)
	defer ticker.Stop()

	a.logger.WithField("interval", a.reportInterval).Info("Cache performance analyzer started")
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Cache performance analyzer stopped")
			return
		case <-ticker.C:
			a.logReport(a.Report())
		}
	}
}

func (a *Analyzer) keyCounters(key string) *counters {
	if c, ok := a.keys.Get(key); ok {
		return c
	}
	fresh := &counters{}
	if prev, ok, _ := a.keys.PeekOrAdd(key, fresh); ok {
		return prev
	}
	return fresh
}

func (a *Analyzer) patternCounters(pattern string) *counters {
	if c, ok := a.patterns.Get(pattern); ok {
		return c
	}
	fresh := &counters{}
	if prev, ok, _ := a.patterns.PeekOrAdd(pattern, fresh); ok {
		return prev
	}
	return fresh
}

func (a *Analyzer) patternStats() []AccessStats {
	var stats []AccessStats
	for _, pattern := range a.patterns.Keys() {
		if c, ok := a.patterns.Peek(pattern); ok {
			stats = append(stats, c.snapshot(pattern))
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Accesses != stats[j].Accesses {
			return stats[i].Accesses > stats[j].Accesses
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}
