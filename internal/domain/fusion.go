package domain

// Decision is the discrete outcome of fusion.
type Decision string

const (
	DecisionEmergencyAlert Decision = "EMERGENCY_ALERT"
	DecisionVerify         Decision = "VERIFY_WITH_AUTHORITIES"
	DecisionMonitor        Decision = "MONITOR"
	DecisionReject         Decision = "REJECT_REPORT"
)

// AlertLevel is the public-facing severity of a decision.
type AlertLevel string

const (
	AlertHigh    AlertLevel = "high"
	AlertMedium  AlertLevel = "medium"
	AlertLow     AlertLevel = "low"
	AlertMinimal AlertLevel = "minimal"
)

// Fusion weights and adjustments.
const (
	weightVision    = 0.35
	weightSatellite = 0.25
	weightSocial    = 0.15
	weightText      = 0.15

	mismatchPenalty    = 0.15
	strongMatchBonus   = 0.10
	uncertainDiscount  = 0.9
	uncertainThreshold = 0.5
	missingTextFactor  = 0.95

	// Neutral value for an absent satellite or social signal.
	neutralConfidence = 0.5

	lowQualityThreshold = 0.5
	lowQualityFactor    = 0.85
	lowQualityWarning   = "Low media quality reduces confidence"
)

// FusionInput carries the upstream signals for one report. Nil pointers mark
// absent signals.
type FusionInput struct {
	Vision    VisionResult
	Satellite *SatelliteResult
	Social    *SocialResult
	Text      *TextUnderstanding
}

// FusionResult is the terminal artifact of the core.
type FusionResult struct {
	FinalScore float64    `json:"final_score"`
	Decision   Decision   `json:"decision"`
	AlertLevel AlertLevel `json:"alert_level"`
	Action     string     `json:"action"`
}

// Fuse combines the four signals into one bounded score and maps it to a decision.
func Fuse(in FusionInput) FusionResult {
	satellite := neutralConfidence
	if in.Satellite != nil {
		satellite = in.Satellite.Confidence
	}
	social := neutralConfidence
	if in.Social != nil {
		social = in.Social.Confidence
	}

	score := weightVision*Clamp01(in.Vision.Score) +
		weightSatellite*Clamp01(satellite) +
		weightSocial*Clamp01(social)

	if t := in.Text; t != nil {
		score += weightText * Clamp01(t.TextConfidence)

		switch t.Consistency {
		case VerdictMismatch:
			score -= mismatchPenalty
		case VerdictStrongMatch:
			score += strongMatchBonus
		}

		if t.Uncertainty > uncertainThreshold {
			score *= uncertainDiscount
		}
	} else {
		score *= missingTextFactor
	}

	return Decide(Score(score))
}

// Decide maps a fused score to the decision table. Lower bounds are exclusive.
func Decide(score float64) FusionResult {
	r := FusionResult{FinalScore: score}
	switch {
	case score > 0.75:
		r.AlertLevel = AlertHigh
		r.Decision = DecisionEmergencyAlert
		r.Action = "Immediate authority notification and public warning"
	case score > 0.55:
		r.AlertLevel = AlertMedium
		r.Decision = DecisionVerify
		r.Action = "Requires manual verification by coastal authorities"
	case score > 0.35:
		r.AlertLevel = AlertLow
		r.Decision = DecisionMonitor
		r.Action = "Continue monitoring, no immediate action"
	default:
		r.AlertLevel = AlertMinimal
		r.Decision = DecisionReject
		r.Action = "Insufficient evidence, likely false alarm"
	}
	return r
}

// RejectUnanalyzable is the decision for a report whose media produced no
// vision evidence. It sits at the bottom of the decision table with a zero score.
func RejectUnanalyzable() FusionResult {
	r := Decide(0)
	r.Action = "Media could not be analyzed, report rejected"
	return r
}

// ApplyQualityDiscount discounts a fused score when the media quality is poor.
// It runs strictly after fusion and leaves the decision itself untouched.
// Returns the adjusted confidence and a warning, empty when no discount applied.
func ApplyQualityDiscount(result FusionResult, quality QualityReport) (float64, string) {
	if quality.Score < lowQualityThreshold {
		return Score(result.FinalScore * lowQualityFactor), lowQualityWarning
	}
	return result.FinalScore, ""
}
