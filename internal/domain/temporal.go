package domain

import (
	"bytes"
	"encoding/json"
	"math"
)

// Trend classifies the direction of per-frame confidence over time.
type Trend string

const (
	TrendInsufficientData Trend = "INSUFFICIENT_DATA"
	TrendWorsening        Trend = "WORSENING"
	TrendImproving        Trend = "IMPROVING"
	TrendStable           Trend = "STABLE"
)

// Stability buckets the variance of per-frame confidence.
type Stability string

const (
	StabilityUnknown        Stability = "UNKNOWN"
	StabilityVeryStable     Stability = "VERY_STABLE"
	StabilityStable         Stability = "STABLE"
	StabilityFluctuating    Stability = "FLUCTUATING"
	StabilityHighlyVariable Stability = "HIGHLY_VARIABLE"
)

// ChangeDirection marks whether a sudden change went up or down.
type ChangeDirection string

const (
	ChangeSpike ChangeDirection = "SPIKE"
	ChangeDrop  ChangeDirection = "DROP"
)

const (
	minTrendFrames      = 3
	trendSlopeThreshold = 0.02
	suddenChangeDelta   = 0.15
	highConfidenceFrame = 0.6
	dominantEventRatio  = 0.6
	switchingRatio      = 0.5
)

// SuddenChange records a jump between two adjacent sampled frames.
// Frame is the index of the later frame.
type SuddenChange struct {
	Frame     int             `json:"frame"`
	Magnitude float64         `json:"change"`
	Direction ChangeDirection `json:"direction"`
}

// ConfidenceRange summarizes the per-frame scores.
type ConfidenceRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// TemporalProfile characterizes how video evidence evolves over time.
type TemporalProfile struct {
	Trend                   Trend            `json:"trend"`
	TrendConfidence         float64          `json:"trend_confidence"`
	Slope                   float64          `json:"slope"`
	Stability               Stability        `json:"stability"`
	Variance                float64          `json:"variance"`
	Progression             string           `json:"progression"`
	SuddenChanges           []SuddenChange   `json:"sudden_changes"`
	EventDurationPercentage float64          `json:"event_duration_percentage"`
	FramesAnalyzed          int              `json:"frames_analyzed"`
	ConfidenceRange         *ConfidenceRange `json:"confidence_range,omitempty"`
}

// AnalyzeTemporalTrends fits a least-squares trend over per-frame confidence
// scores, buckets their variance, and flags sudden jumps. Fewer than three
// frames yield INSUFFICIENT_DATA.
func AnalyzeTemporalTrends(scores []float64) TemporalProfile {
	if len(scores) < minTrendFrames {
		return TemporalProfile{
			Trend:          TrendInsufficientData,
			Stability:      StabilityUnknown,
			Progression:    "Cannot determine with < 3 frames",
			SuddenChanges:  []SuddenChange{},
			FramesAnalyzed: len(scores),
		}
	}

	slope := leastSquaresSlope(scores)
	mean, variance := meanVariance(scores)

	p := TemporalProfile{
		Slope:          roundTo(slope, 3),
		Variance:       roundTo(variance, 3),
		Stability:      classifyStability(variance),
		SuddenChanges:  detectSuddenChanges(scores),
		FramesAnalyzed: len(scores),
	}

	switch {
	case slope > trendSlopeThreshold:
		p.Trend = TrendWorsening
		p.Progression = "Conditions are deteriorating over time"
	case slope < -trendSlopeThreshold:
		p.Trend = TrendImproving
		p.Progression = "Conditions are calming down"
	default:
		p.Trend = TrendStable
		p.Progression = "Conditions remain relatively constant"
	}

	// Strong trends and steady sequences both raise confidence in the reading.
	p.TrendConfidence = Score(math.Abs(slope)*10 + (1 - variance))

	high := 0
	lo, hi := scores[0], scores[0]
	for _, s := range scores {
		if s > highConfidenceFrame {
			high++
		}
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	p.EventDurationPercentage = roundTo(float64(high)/float64(len(scores))*100, 1)
	p.ConfidenceRange = &ConfidenceRange{Min: Round2(lo), Max: Round2(hi), Mean: Round2(mean)}

	return p
}

// leastSquaresSlope returns the OLS slope of values against their index.
func leastSquaresSlope(values []float64) float64 {
	n := float64(len(values))
	xMean := (n - 1) / 2
	var yMean float64
	for _, v := range values {
		yMean += v
	}
	yMean /= n

	var num, den float64
	for i, v := range values {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// meanVariance returns the mean and population variance.
func meanVariance(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, sq / float64(len(values))
}

func classifyStability(variance float64) Stability {
	switch {
	case variance < 0.01:
		return StabilityVeryStable
	case variance < 0.05:
		return StabilityStable
	case variance < 0.10:
		return StabilityFluctuating
	default:
		return StabilityHighlyVariable
	}
}

func detectSuddenChanges(scores []float64) []SuddenChange {
	changes := []SuddenChange{}
	for i := 1; i < len(scores); i++ {
		delta := scores[i] - scores[i-1]
		if math.Abs(delta) <= suddenChangeDelta {
			continue
		}
		dir := ChangeDrop
		if delta > 0 {
			dir = ChangeSpike
		}
		changes = append(changes, SuddenChange{
			Frame:     i,
			Magnitude: Round2(math.Abs(delta)),
			Direction: dir,
		})
	}
	return changes
}

// VideoConsistency is the cross-frame event consistency check used to flag
// edited, spliced, or looped footage.
type VideoConsistency struct {
	IsConsistent       bool              `json:"is_consistent"`
	Confidence         float64           `json:"confidence"`
	DominantEvent      EventType         `json:"dominant_event,omitempty"`
	EventDistribution  map[EventType]int `json:"event_distribution,omitempty"`
	SuspiciousPatterns []string          `json:"suspicious_patterns"`
	Assessment         string            `json:"assessment"`
}

// Suspicious pattern flags.
const (
	PatternExcessiveSwitching = "Excessive event type switching detected"
	PatternPossibleLoop       = "All frames identical - possible video loop"
)

// AssessVideoConsistency checks whether per-frame results describe one event.
// A single frame is trivially consistent.
func AssessVideoConsistency(frames []VisionResult) VideoConsistency {
	if len(frames) < 2 {
		return VideoConsistency{
			IsConsistent:       true,
			Confidence:         1.0,
			SuspiciousPatterns: []string{},
			Assessment:         "Single frame, no consistency check",
		}
	}

	dominant, count, distribution := mode(eventTypes(frames))
	ratio := float64(count) / float64(len(frames))

	patterns := []string{}
	switches := 0
	for i := 1; i < len(frames); i++ {
		if frames[i].EventType != frames[i-1].EventType {
			switches++
		}
	}
	if float64(switches) > float64(len(frames))*switchingRatio {
		patterns = append(patterns, PatternExcessiveSwitching)
	}
	if allIdentical(frames) {
		patterns = append(patterns, PatternPossibleLoop)
	}

	c := VideoConsistency{
		IsConsistent:       ratio > dominantEventRatio && len(patterns) == 0,
		Confidence:         Round2(ratio),
		DominantEvent:      dominant,
		EventDistribution:  distribution,
		SuspiciousPatterns: patterns,
	}
	if c.IsConsistent {
		c.Assessment = "Video shows consistent event"
	} else {
		c.Assessment = "Video may be edited or contains multiple scenes"
	}
	return c
}

// mode returns the most frequent item and its count; ties go to the item seen first.
func mode[T comparable](items []T) (T, int, map[T]int) {
	counts := make(map[T]int)
	order := make([]T, 0, len(items))
	for _, it := range items {
		if counts[it] == 0 {
			order = append(order, it)
		}
		counts[it]++
	}

	best := order[0]
	for _, it := range order[1:] {
		if counts[it] > counts[best] {
			best = it
		}
	}
	return best, counts[best], counts
}

func eventTypes(frames []VisionResult) []EventType {
	out := make([]EventType, len(frames))
	for i, f := range frames {
		out[i] = f.EventType
	}
	return out
}

// allIdentical reports whether every frame serializes to the same bytes.
// Serialization failures count as a difference.
func allIdentical(frames []VisionResult) bool {
	first, err := json.Marshal(frames[0])
	if err != nil {
		return false
	}
	for _, f := range frames[1:] {
		b, err := json.Marshal(f)
		if err != nil || !bytes.Equal(first, b) {
			return false
		}
	}
	return true
}
