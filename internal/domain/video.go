package domain

import "sort"

// AggregateFrames combines per-frame vision results, in frame order, into one
// video-level result with its temporal profile and consistency check attached.
// An empty slice yields an unknown event with zero confidence.
func AggregateFrames(frames []VisionResult) VisionResult {
	if len(frames) == 0 {
		return VisionResult{
			EventType:       EventUnknown,
			ScoreSource:     ScoreNone,
			DetectedObjects: []string{},
		}
	}

	scores := make([]float64, len(frames))
	var scoreSum, detectorSum float64
	objects := make(map[string]bool)
	labels := make([]string, len(frames))
	for i, f := range frames {
		scores[i] = f.Score
		scoreSum += f.Score
		detectorSum += f.DetectorConfidence
		for _, o := range f.DetectedObjects {
			objects[o] = true
		}
		labels[i] = f.PredictedLabel
	}

	unique := make([]string, 0, len(objects))
	for o := range objects {
		unique = append(unique, o)
	}
	sort.Strings(unique)

	event, _, _ := mode(eventTypes(frames))
	label, _, _ := mode(labels)

	temporal := AnalyzeTemporalTrends(scores)
	consistency := AssessVideoConsistency(frames)

	n := float64(len(frames))
	return VisionResult{
		EventType:          event,
		Score:              Score(scoreSum / n),
		ScoreSource:        ScoreAverageClip,
		DetectorConfidence: Score(detectorSum / n),
		DetectedObjects:    unique,
		PredictedLabel:     label,
		FramesAnalyzed:     len(frames),
		Temporal:           &temporal,
		Consistency:        &consistency,
	}
}
