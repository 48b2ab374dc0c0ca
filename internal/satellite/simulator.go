// Package satellite simulates Sentinel-1 SAR verification of a reported
// coastal event. Confidence is drawn from a per-event range through an
// injectable random source, standing in for a real sensor feed.
package satellite

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/coastal-alert-service/internal/domain"
)

const (
	source = "Sentinel-1 SAR (simulated near real-time)"
	note   = "Sentinel-1 SAR provides all-weather, day/night coverage. Updates every ~6 hours."

	geoTagBoost       = 0.05
	sensorNoise       = 0.03
	verifiedThreshold = 0.70
)

// RandSource yields uniform values in [0, 1).
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// signature is the SAR response expected for one class of event.
type signature struct {
	lo, hi   float64
	evidence string
	features map[string]string
}

var signatures = map[domain.EventType]signature{
	domain.EventMarineGarbage: {
		lo: 0.55, hi: 0.72,
		evidence: "Surface anomaly patterns detected in SAR. Consistent with floating debris or pollution. Optical verification recommended.",
		features: map[string]string{
			"dark_spot_detection":  "POSITIVE",
			"surface_anomaly":      "DETECTED",
			"pollution_likelihood": "MODERATE",
		},
	},
	domain.EventNormal: {
		lo: 0.42, hi: 0.62,
		evidence: "Satellite imagery shows typical sea surface conditions. No anomalies detected in SAR backscatter.",
		features: map[string]string{
			"sea_state":            "CALM",
			"backscatter_variance": "NORMAL",
			"anomaly_score":        "LOW",
		},
	},
	domain.EventMarineLife: {
		lo: 0.50, hi: 0.70,
		evidence: "SAR unable to confirm marine life. Requires optical verification.",
		features: map[string]string{
			"biological_signature": "UNCERTAIN",
			"recommendation":       "Deploy optical sensors",
		},
	},
	domain.EventAbnormalWave: seaState,
	domain.EventRoughSea:     seaState,
}

var seaState = signature{
	lo: 0.70, hi: 0.88,
	evidence: "High sea surface roughness detected via SAR backscatter analysis. Wave patterns consistent with reported conditions.",
	features: map[string]string{
		"backscatter_variance": "HIGH",
		"wave_pattern":         "IRREGULAR",
		"sea_state":            "ROUGH",
		"confidence_source":    "SAR texture analysis",
	},
}

var unclassified = signature{
	lo: 0.35, hi: 0.55,
	evidence: "Insufficient satellite data for definitive verification. Event classification unclear.",
	features: map[string]string{
		"data_quality": "UNCERTAIN",
		"coverage":     "PARTIAL",
	},
}

// Simulator produces satellite verification results.
type Simulator struct {
	rng   RandSource
	clock clockwork.Clock
}

// NewSimulator creates a Simulator. A nil rng or clock selects the process
// random source or the real clock.
func NewSimulator(rng RandSource, clock clockwork.Clock) *Simulator {
	if rng == nil {
		rng = globalRand{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Simulator{rng: rng, clock: clock}
}

// Verify simulates a SAR pass over the reported event. Sea-state events take
// precedence over vessel detections; any boat or ship detection otherwise
// selects the vessel signature.
func (s *Simulator) Verify(event domain.EventType, objects []string, location *domain.Location) domain.SatelliteResult {
	sig, ok := signatures[event]
	vessels := countVessels(objects)
	switch {
	case event == domain.EventAbnormalWave || event == domain.EventRoughSea:
	case event == domain.EventShip || vessels > 0:
		sig, ok = vesselSignature(vessels), true
	}
	if !ok {
		sig = unclassified
	}

	features := make(map[string]string, len(sig.features)+1)
	for k, v := range sig.features {
		features[k] = v
	}

	confidence := s.uniform(sig.lo, sig.hi)
	if location != nil {
		confidence = min(1.0, confidence+geoTagBoost)
		features["geo_tagged"] = "YES"
	}
	confidence = domain.Clamp01(confidence + s.uniform(-sensorNoise, sensorNoise))

	return domain.SatelliteResult{
		Confidence:  domain.Round2(confidence),
		Verified:    confidence > verifiedThreshold,
		Source:      source,
		Evidence:    sig.evidence,
		SARFeatures: features,
		Timestamp:   s.clock.Now().UTC().Truncate(time.Minute),
		Note:        note,
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

func countVessels(objects []string) int {
	n := 0
	for _, o := range objects {
		if o == "boat" || o == "ship" {
			n++
		}
	}
	return n
}

func vesselSignature(count int) signature {
	return signature{
		lo: 0.75, hi: 0.92,
		evidence: "Large vessel signatures detected in SAR imagery. " +
			strconv.Itoa(count) + " ship(s) confirmed via backscatter correlation.",
		features: map[string]string{
			"vessel_count":     strconv.Itoa(count),
			"vessel_signature": "CONFIRMED",
			"detection_method": "SAR backscatter + AIS correlation",
		},
	}
}
