// Package domain models citizen coastal-hazard reports and the evidence
// reconciliation core that turns them into alert decisions.
//
// # Signals
//
// A report (photo or video plus free text) is scored by four independent
// signals, each expressed as a confidence in [0, 1]:
//
//	vision     external image scorer (scene classifier + object detector)
//	satellite  simulated Sentinel-1 SAR verification
//	social     similarity of the text to recent social posts
//	text       semantic reading of the narrative, reconciled against vision
//
// Any signal may be degraded or absent. Every function in this package that
// consumes signals is total: it returns a fully populated result with
// documented sentinel values rather than an error.
//
// # Confidence Scores
//
// Scores are clamped to [0, 1] wherever they are produced and rounded to two
// decimals at output boundaries (see [Round2]). Slopes and variances in the
// temporal profile are rounded to three decimals.
//
// # Event Types
//
// The event vocabulary is closed:
//
//	abnormal_wave, rough_sea, marine_garbage, ship, marine_life, normal, unknown
//
// Unrecognized labels from upstream collaborators are mapped to unknown by
// [ParseEventType].
//
// # Decision Table
//
// The fusion score maps to a decision with strict lower bounds evaluated top
// down:
//
//	> 0.75  high     EMERGENCY_ALERT
//	> 0.55  medium   VERIFY_WITH_AUTHORITIES
//	> 0.35  low      MONITOR
//	else    minimal  REJECT_REPORT
//
// Media quality never enters the weighted sum. The orchestrator discounts the
// final confidence afterwards when quality is poor (see [ApplyQualityDiscount]).
package domain
