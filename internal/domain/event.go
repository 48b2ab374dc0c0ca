package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// EventType is the closed vocabulary shared by the vision scorer and the text reconciler.
type EventType string

const (
	EventAbnormalWave  EventType = "abnormal_wave"
	EventRoughSea      EventType = "rough_sea"
	EventMarineGarbage EventType = "marine_garbage"
	EventShip          EventType = "ship"
	EventMarineLife    EventType = "marine_life"
	EventNormal        EventType = "normal"
	EventUnknown       EventType = "unknown"
)

// ParseEventType maps an upstream label onto the closed vocabulary.
func ParseEventType(s string) EventType {
	switch e := EventType(s); e {
	case EventAbnormalWave, EventRoughSea, EventMarineGarbage, EventShip, EventMarineLife, EventNormal:
		return e
	default:
		return EventUnknown
	}
}

// MediaType distinguishes still images from video submissions.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Location is an optional WGS-84 coordinate attached to a report.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Report is a parsed citizen submission.
type Report struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	MediaPath   string    `json:"media_path"`
	MediaType   MediaType `json:"media_type"`
	Location    *Location `json:"location,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Reliability buckets a media quality score.
type Reliability string

const (
	ReliabilityVeryLow Reliability = "VERY_LOW"
	ReliabilityLow     Reliability = "LOW"
	ReliabilityMedium  Reliability = "MEDIUM"
	ReliabilityHigh    Reliability = "HIGH"
	ReliabilityUnknown Reliability = "UNKNOWN"
)

// QualityMetrics holds the per-metric sub-scores, each in [0, 1].
type QualityMetrics struct {
	Sharpness  float64 `json:"sharpness"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Noise      float64 `json:"noise"`
	Resolution float64 `json:"resolution"`
}

// QualityReport describes how far the submitted media can be trusted.
// It is computed once per media file and never mutated afterwards.
type QualityReport struct {
	Score          float64         `json:"quality_score"`
	MinScore       *float64        `json:"min_quality,omitempty"` // video only
	Reliability    Reliability     `json:"reliability"`
	Metrics        *QualityMetrics `json:"metrics,omitempty"`
	Issues         []string        `json:"issues"`
	Recommendation string          `json:"recommendation,omitempty"`
	Resolution     string          `json:"resolution,omitempty"`
	FramesAnalyzed int             `json:"frames_analyzed,omitempty"`
}

// ScoreSource records which upstream field the vision confidence was read from.
type ScoreSource string

const (
	ScoreClip        ScoreSource = "clip_score"
	ScoreAverageClip ScoreSource = "average_clip_score"
	ScoreMarine      ScoreSource = "marine_score"
	ScoreNone        ScoreSource = "none"
)

// VisionResult is the normalized output of the vision scorer for one image,
// or the aggregate over the sampled frames of a video.
type VisionResult struct {
	EventType          EventType         `json:"event_type"`
	Score              float64           `json:"score"`
	ScoreSource        ScoreSource       `json:"score_source"`
	DetectorConfidence float64           `json:"vision_confidence"`
	DetectedObjects    []string          `json:"detected_objects"`
	PredictedLabel     string            `json:"predicted_label,omitempty"`
	FramesAnalyzed     int               `json:"frames_analyzed,omitempty"`
	Temporal           *TemporalProfile  `json:"temporal_analysis,omitempty"`
	Consistency        *VideoConsistency `json:"consistency_check,omitempty"`
}

// SatelliteResult is the simulated SAR verification signal.
type SatelliteResult struct {
	Confidence  float64           `json:"confidence"`
	Verified    bool              `json:"verified"`
	Source      string            `json:"source"`
	Evidence    string            `json:"evidence"`
	SARFeatures map[string]string `json:"sar_features"`
	Timestamp   time.Time         `json:"timestamp"`
	Note        string            `json:"note,omitempty"`
}

// SocialResult is the social-corroboration signal.
type SocialResult struct {
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// Place is a reverse-geocoded description of a report location.
type Place struct {
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Confidence       float64 `json:"confidence"`
}

// Assessment is the full record produced for one report and published downstream.
type Assessment struct {
	ReportID           string             `json:"report_id"`
	MediaType          MediaType          `json:"media_type"`
	Quality            QualityReport      `json:"quality_assessment"`
	Vision             VisionResult       `json:"vision_ai"`
	Satellite          *SatelliteResult   `json:"satellite_verification,omitempty"`
	Social             *SocialResult      `json:"social_verification,omitempty"`
	TextUnderstanding  *TextUnderstanding `json:"text_understanding,omitempty"`
	Decision           FusionResult       `json:"final_decision"`
	AdjustedConfidence float64            `json:"adjusted_confidence"`
	QualityWarning     string             `json:"quality_warning,omitempty"`
	Location           *Location          `json:"location,omitempty"`
	Place              *Place             `json:"place,omitempty"`
	// Error explains why the media yielded no vision evidence.
	Error       string    `json:"error,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}
