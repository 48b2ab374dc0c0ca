package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// Verdict is the categorical agreement between narrated and detected events.
type Verdict string

const (
	VerdictNoText       Verdict = "NO_TEXT"
	VerdictMatch        Verdict = "MATCH"
	VerdictStrongMatch  Verdict = "STRONG_MATCH"
	VerdictPartialMatch Verdict = "PARTIAL_MATCH"
	VerdictMismatch     Verdict = "MISMATCH"
	VerdictUncertain    Verdict = "UNCERTAIN"
)

// SeverityLevel is the severity implied by lexical cues in report text.
type SeverityLevel string

const (
	SeverityLow     SeverityLevel = "LOW"
	SeverityMedium  SeverityLevel = "MEDIUM"
	SeverityHigh    SeverityLevel = "HIGH"
	SeverityUnknown SeverityLevel = "UNKNOWN"
)

// Severity pairs a level with the confidence of the cue that produced it.
type Severity struct {
	Level      SeverityLevel `json:"level"`
	Confidence float64       `json:"confidence"`
}

// ObjectConsistency compares objects named in the text with detector output.
type ObjectConsistency struct {
	HasMismatch bool     `json:"has_mismatch"`
	Matches     []string `json:"matches"`
	Mismatches  []string `json:"mismatches"`
	Note        string   `json:"note"`
}

// TextUnderstanding is the reconciler output. Consistency and ConsistencyScore
// always come from the same row of the verdict table.
type TextUnderstanding struct {
	TextEvent         EventType             `json:"text_event"`
	TextConfidence    float64               `json:"text_confidence"`
	Consistency       Verdict               `json:"consistency"`
	ConsistencyScore  float64               `json:"consistency_score"`
	Severity          Severity              `json:"severity"`
	Uncertainty       float64               `json:"uncertainty"`
	SemanticScores    map[EventType]float64 `json:"semantic_scores,omitempty"`
	Explanation       string                `json:"explanation"`
	ObjectConsistency *ObjectConsistency    `json:"object_consistency,omitempty"`
}

// canonicalEvent is a reference description the report text is compared against.
type canonicalEvent struct {
	event       EventType
	description string
}

// canonicalEvents is ordered; ties in similarity go to the earlier entry.
var canonicalEvents = []canonicalEvent{
	{EventAbnormalWave, "very strong waves rough sea storm tsunami huge waves dangerous water"},
	{EventRoughSea, "rough sea choppy water moderate waves uncomfortable conditions"},
	{EventMarineGarbage, "plastic waste garbage floating in sea pollution debris trash litter"},
	{EventShip, "boat ship vessel fishing activity maritime traffic"},
	{EventNormal, "normal calm sea peaceful water no danger safe conditions clear"},
}

var (
	severityHigh   = []string{"tsunami", "huge", "massive", "extremely", "severe", "dangerous", "emergency"}
	severityMedium = []string{"strong", "rough", "significant", "concerning", "unusual"}
	severityLow    = []string{"mild", "slight", "small", "minor"}

	hedgingPhrases = []string{"maybe", "might", "could be", "i think", "possibly", "perhaps", "not sure"}

	boatMentions    = []string{"boat", "ship", "vessel"}
	personMentions  = []string{"person", "people", "swimmer"}
	garbageMentions = []string{"garbage", "trash", "plastic", "debris"}
)

const (
	minTextChars          = 3
	hedgeWeight           = 0.3
	hedgeDiscountFrom     = 0.3
	partialMatchThreshold = 0.5
)

// Verdict table.
var verdictScores = map[Verdict]float64{
	VerdictNoText:       0.0,
	VerdictMatch:        0.9,
	VerdictStrongMatch:  1.0,
	VerdictPartialMatch: 0.7,
	VerdictUncertain:    0.5,
}

// Mismatch carries two scores depending on which branch produced it.
const (
	mismatchVsNormal = 0.2
	mismatchVsHazard = 0.3
)

// Reconciler compares the event a report narrates with the event the vision
// scorer detected.
type Reconciler struct {
	embedder Embedder
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler that reads text semantics through embedder.
func NewReconciler(embedder Embedder, logger *slog.Logger) *Reconciler {
	return &Reconciler{embedder: embedder, logger: logger}
}

// Reconcile classifies the report text and reconciles it with the vision
// event. It never fails: missing text yields NO_TEXT and an embedding outage
// yields UNCERTAIN.
func (r *Reconciler) Reconcile(ctx context.Context, text string, visionEvent EventType, detectedObjects []string) TextUnderstanding {
	if countNonSpace(text) < minTextChars {
		return TextUnderstanding{
			TextEvent:        EventUnknown,
			Consistency:      VerdictNoText,
			ConsistencyScore: verdictScores[VerdictNoText],
			Severity:         Severity{Level: SeverityUnknown},
			Explanation:      "Report text too short for analysis",
		}
	}

	clean := strings.ToLower(strings.TrimSpace(text))
	severity := ExtractSeverity(clean)
	uncertainty := DetectUncertainty(clean)
	objects := CheckObjectConsistency(clean, detectedObjects)

	u := TextUnderstanding{
		TextEvent:         EventUnknown,
		Severity:          severity,
		Uncertainty:       Round2(uncertainty),
		ObjectConsistency: &objects,
	}

	scores, err := r.semanticScores(ctx, clean)
	if err != nil {
		r.logger.Warn("text embedding failed, consistency undetermined", "error", err)
		u.Consistency = VerdictUncertain
		u.ConsistencyScore = verdictScores[VerdictUncertain]
		u.Explanation = appendNote("Unable to analyze report text semantics.", objects.Note)
		return u
	}

	textEvent, textConfidence := bestMatch(scores)
	if uncertainty > hedgeDiscountFrom {
		textConfidence *= 1 - uncertainty*0.5
	}

	verdict, score, explanation := reconcileEvents(textEvent, visionEvent, scores)

	u.TextEvent = textEvent
	u.TextConfidence = Score(textConfidence)
	u.Consistency = verdict
	u.ConsistencyScore = score
	u.Explanation = appendNote(explanation, objects.Note)
	u.SemanticScores = make(map[EventType]float64, len(scores))
	for e, s := range scores {
		u.SemanticScores[e] = Round2(s)
	}
	return u
}

// semanticScores returns the cosine similarity of text to each canonical description.
func (r *Reconciler) semanticScores(ctx context.Context, text string) (map[EventType]float64, error) {
	textVec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed report text: %w", err)
	}

	scores := make(map[EventType]float64, len(canonicalEvents))
	for _, c := range canonicalEvents {
		vec, err := r.embedder.Embed(ctx, c.description)
		if err != nil {
			return nil, fmt.Errorf("embed %s description: %w", c.event, err)
		}
		scores[c.event] = CosineSimilarity(textVec, vec)
	}
	return scores, nil
}

func bestMatch(scores map[EventType]float64) (EventType, float64) {
	best := canonicalEvents[0].event
	for _, c := range canonicalEvents[1:] {
		if scores[c.event] > scores[best] {
			best = c.event
		}
	}
	return best, scores[best]
}

func isCanonical(e EventType) bool {
	for _, c := range canonicalEvents {
		if c.event == e {
			return true
		}
	}
	return false
}

// reconcileEvents applies the verdict table.
//
// The partial-match branch reads the text's similarity to the vision event's
// canonical description, which measures text-vs-description rather than
// text-vs-vision closeness. Kept as is until it can be evaluated on labelled reports.
func reconcileEvents(textEvent, visionEvent EventType, scores map[EventType]float64) (Verdict, float64, string) {
	if visionEvent == EventNormal || visionEvent == EventUnknown {
		switch textEvent {
		case EventAbnormalWave, EventRoughSea, EventMarineGarbage:
			return VerdictMismatch, mismatchVsNormal, fmt.Sprintf(
				"User reports '%s' but visuals show normal conditions. Possible false alarm or evidence mismatch.", textEvent)
		default:
			return VerdictMatch, verdictScores[VerdictMatch],
				"Report and visual evidence agree on normal conditions."
		}
	}

	if textEvent == visionEvent {
		return VerdictStrongMatch, verdictScores[VerdictStrongMatch], fmt.Sprintf(
			"Report and visual evidence strongly agree on '%s'.", textEvent)
	}

	if !isCanonical(visionEvent) {
		return VerdictUncertain, verdictScores[VerdictUncertain],
			"Unable to determine consistency between report and visuals."
	}

	if scores[visionEvent] > partialMatchThreshold {
		return VerdictPartialMatch, verdictScores[VerdictPartialMatch], fmt.Sprintf(
			"Report mentions '%s' while visuals show '%s' - partially consistent.", textEvent, visionEvent)
	}
	return VerdictMismatch, mismatchVsHazard, fmt.Sprintf(
		"Report describes '%s' but visuals indicate '%s' - significant mismatch.", textEvent, visionEvent)
}

// ExtractSeverity reads severity from lowercase text. HIGH cues beat MEDIUM
// cues, which beat LOW cues; no cue yields MEDIUM at 0.6.
func ExtractSeverity(text string) Severity {
	switch {
	case containsAny(text, severityHigh):
		return Severity{Level: SeverityHigh, Confidence: 0.9}
	case containsAny(text, severityMedium):
		return Severity{Level: SeverityMedium, Confidence: 0.7}
	case containsAny(text, severityLow):
		return Severity{Level: SeverityLow, Confidence: 0.5}
	default:
		return Severity{Level: SeverityMedium, Confidence: 0.6}
	}
}

// DetectUncertainty scores hedging language in lowercase text on [0, 1].
// Each distinct hedging phrase present adds 0.3.
func DetectUncertainty(text string) float64 {
	n := 0
	for _, p := range hedgingPhrases {
		if strings.Contains(text, p) {
			n++
		}
	}
	return min(float64(n)*hedgeWeight, 1.0)
}

// CheckObjectConsistency compares objects mentioned in lowercase text with
// detected object labels. Garbage is never reported missing because the
// detector does not cover it reliably.
func CheckObjectConsistency(text string, detected []string) ObjectConsistency {
	has := func(labels ...string) bool {
		for _, d := range detected {
			for _, l := range labels {
				if d == l {
					return true
				}
			}
		}
		return false
	}

	items := []struct {
		name      string
		mentioned bool
		detected  bool
		required  bool
	}{
		{"boat", containsAny(text, boatMentions), has("boat", "ship"), true},
		{"person", containsAny(text, personMentions), has("person"), true},
		{"garbage", containsAny(text, garbageMentions), false, false},
	}

	oc := ObjectConsistency{Matches: []string{}, Mismatches: []string{}}
	for _, it := range items {
		switch {
		case !it.mentioned:
		case it.detected:
			oc.Matches = append(oc.Matches, fmt.Sprintf("'%s' confirmed", it.name))
		case it.required:
			oc.Mismatches = append(oc.Mismatches, fmt.Sprintf("'%s' mentioned but not detected visually", it.name))
		}
	}

	var note []string
	if len(oc.Matches) > 0 {
		note = append(note, "Visual confirmation: "+strings.Join(oc.Matches, ", ")+".")
	}
	if len(oc.Mismatches) > 0 {
		note = append(note, "Missing visual evidence: "+strings.Join(oc.Mismatches, ", ")+".")
	}
	oc.HasMismatch = len(oc.Mismatches) > 0
	oc.Note = strings.Join(note, " ")
	return oc
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func appendNote(explanation, note string) string {
	if note == "" {
		return explanation
	}
	return explanation + " " + note
}
