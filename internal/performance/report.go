package performance

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Thresholds for recommendations
const (
	lowHitRatioMinAccesses   = 50
	lowHitRatioThreshold     = 0.5
	lowHitRatioHighPriority  = 0.2
	invalidationMinAccesses  = 20
	invalidationThreshold    = 0.3
	invalidationHighPriority = 0.5
	unusedIdleWindow         = 24 * time.Hour
	unusedMaxAccesses        = 5
	unusedMinGroupSize       = 10
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

type RecommendationType string

const (
	RecommendationLowHitRatio      RecommendationType = "low_hit_ratio"
	RecommendationHighInvalidation RecommendationType = "high_invalidation_ratio"
	RecommendationUnusedKeys       RecommendationType = "unused_keys"
)

// Recommendation is advisory output for operators
type Recommendation struct {
	Type     RecommendationType `json:"type"`
	Priority Priority           `json:"priority"`
	Pattern  string             `json:"pattern"`
	Value    float64            `json:"value"`
	Message  string             `json:"message"`
}

// Report summarizes cache effectiveness at a point in time
type Report struct {
	GeneratedAt     time.Time        `json:"generatedAt"`
	TotalHits       int64            `json:"totalHits"`
	TotalMisses     int64            `json:"totalMisses"`
	HitRatio        float64          `json:"hitRatio"`
	TrackedKeys     int              `json:"trackedKeys"`
	TrackedPatterns int              `json:"trackedPatterns"`
	TopPatterns     []AccessStats    `json:"topPatterns"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Report builds a report from the current counters
func (a *Analyzer) Report() Report {
	now := a.now()
	hits := a.totalHits.Load()
	misses := a.totalMisses.Load()

	report := Report{
		GeneratedAt: now,
		TotalHits:   hits,
		TotalMisses: misses,
		TrackedKeys: a.keys.Len(),
	}
	if total := hits + misses; total > 0 {
		report.HitRatio = float64(hits) / float64(total)
	}

	patterns := a.patternStats()
	report.TrackedPatterns = len(patterns)
	if len(patterns) > a.topN {
		report.TopPatterns = patterns[:a.topN]
	} else {
		report.TopPatterns = patterns
	}

	for _, p := range patterns {
		report.Recommendations = append(report.Recommendations, patternRecommendations(p)...)
	}
	report.Recommendations = append(report.Recommendations, a.unusedKeyRecommendations(now)...)

	sort.SliceStable(report.Recommendations, func(i, j int) bool {
		ri, rj := report.Recommendations[i], report.Recommendations[j]
		if ri.Priority != rj.Priority {
			return ri.Priority > rj.Priority
		}
		return ri.Pattern < rj.Pattern
	})

	return report
}

func patternRecommendations(p AccessStats) []Recommendation {
	var recs []Recommendation

	if p.Accesses > lowHitRatioMinAccesses && p.HitRatio < lowHitRatioThreshold {
		priority := PriorityMedium
		if p.HitRatio < lowHitRatioHighPriority {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{
			Type:     RecommendationLowHitRatio,
			Priority: priority,
			Pattern:  p.Name,
			Value:    p.HitRatio,
			Message: fmt.Sprintf("Pattern %s has a %.1f%% hit ratio over %d accesses; consider a longer TTL or warming it",
				p.Name, p.HitRatio*100, p.Accesses),
		})
	}

	if p.Accesses > invalidationMinAccesses && p.InvalidationRatio > invalidationThreshold {
		priority := PriorityMedium
		if p.InvalidationRatio > invalidationHighPriority {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{
			Type:     RecommendationHighInvalidation,
			Priority: priority,
			Pattern:  p.Name,
			Value:    p.InvalidationRatio,
			Message: fmt.Sprintf("Pattern %s is invalidated on %.1f%% of accesses; consider narrower invalidation or not caching it",
				p.Name, p.InvalidationRatio*100),
		})
	}

	return recs
}

func (a *Analyzer) unusedKeyRecommendations(now time.Time) []Recommendation {
	groups := make(map[string]int)
	for _, key := range a.keys.Keys() {
		c, ok := a.keys.Peek(key)
		if !ok {
			continue
		}
		accesses := c.hits.Load() + c.misses.Load()
		idle := now.Sub(time.Unix(0, c.lastAccess.Load()))
		if idle > unusedIdleWindow && accesses < unusedMaxAccesses {
			groups[NormalizeKey(key)]++
		}
	}

	var recs []Recommendation
	for pattern, count := range groups {
		if count <= unusedMinGroupSize {
			continue
		}
		recs = append(recs, Recommendation{
			Type:     RecommendationUnusedKeys,
			Priority: PriorityLow,
			Pattern:  pattern,
			Value:    float64(count),
			Message:  fmt.Sprintf("%d keys matching %s were barely used and idle for over %s; consider a shorter TTL", count, pattern, unusedIdleWindow),
		})
	}
	return recs
}

func (a *Analyzer) logReport(r Report) {
	a.logger.WithFields(logrus.Fields{
		"hit_ratio":        fmt.Sprintf("%.3f", r.HitRatio),
		"hits":             r.TotalHits,
		"misses":           r.TotalMisses,
		"tracked_keys":     r.TrackedKeys,
		"tracked_patterns": r.TrackedPatterns,
		"recommendations":  len(r.Recommendations),
	}).Info("Cache performance report")

	for i, p := range r.TopPatterns {
		a.logger.WithFields(logrus.Fields{
			"rank":      i + 1,
			"pattern":   p.Name,
			"accesses":  p.Accesses,
			"hit_ratio": fmt.Sprintf("%.3f", p.HitRatio),
		}).Debug("Top cache pattern")
	}

	for _, rec := range r.Recommendations {
		a.logger.WithFields(logrus.Fields{
			"type":     rec.Type,
			"priority": rec.Priority.String(),
			"pattern":  rec.Pattern,
		}).Info(rec.Message)
	}
}
