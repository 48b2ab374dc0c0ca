// Package quality scores how far submitted media can be trusted, from its
// sharpness, exposure, contrast, noise and resolution.
package quality

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"

	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/media"
)

// Metric weights in the combined score.
const (
	weightSharpness  = 0.30
	weightBrightness = 0.25
	weightContrast   = 0.20
	weightNoise      = 0.15
	weightResolution = 0.10
)

const (
	sharpnessDivisor = 500.0
	contrastDivisor  = 60.0
	noiseDivisor     = 100.0
	minPixels        = 320 * 240

	acceptableImage = 0.6
	acceptableVideo = 0.6
)

// FrameSource is an ordered sequence of decodable video frames.
type FrameSource interface {
	FrameCount() int
	Frame(i int) (image.Image, error)
}

// Assessor computes quality reports. Every method is total: faults degrade to
// sentinel reports instead of errors.
type Assessor struct {
	logger *slog.Logger
}

// NewAssessor creates an Assessor.
func NewAssessor(logger *slog.Logger) *Assessor {
	return &Assessor{logger: logger}
}

// AssessFile decodes and scores the image at path.
func (a *Assessor) AssessFile(path string) domain.QualityReport {
	img, err := media.LoadImage(path)
	if err != nil {
		a.logger.Warn("media could not be decoded", "path", path, "error", err)
		return Unreadable(IssueUnreadableImage)
	}
	return a.AssessImage(img)
}

// Issues reported by the unreadable-media sentinel.
const (
	IssueUnreadableImage = "Unable to load image"
	IssueUnreadableVideo = "Unable to read video"
	IssueNoValidFrames   = "No valid frames found"
)

// Unreadable is the sentinel report for media that could not be decoded at all.
func Unreadable(issue string) domain.QualityReport {
	return domain.QualityReport{
		Score:       0.0,
		Reliability: domain.ReliabilityVeryLow,
		Issues:      []string{issue},
	}
}

// AssessImage scores a decoded image.
func (a *Assessor) AssessImage(img image.Image) (report domain.QualityReport) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("quality assessment failed", "panic", r)
			report = processingFault(r)
		}
	}()

	if img == nil || img.Bounds().Empty() {
		return processingFault("empty image")
	}
	return assess(img)
}

func processingFault(cause any) domain.QualityReport {
	return domain.QualityReport{
		Score:       0.5,
		Reliability: domain.ReliabilityUnknown,
		Issues:      []string{fmt.Sprintf("Quality assessment error: %v", cause)},
	}
}

func assess(img image.Image) domain.QualityReport {
	p := grayscale(img)
	mean, std := meanStd(p.pix)

	m := domain.QualityMetrics{
		Sharpness:  domain.Clamp01(laplacianVariance(p) / sharpnessDivisor),
		Brightness: brightnessScore(mean),
		Contrast:   domain.Clamp01(std / contrastDivisor),
		Noise:      domain.Clamp01(1 - noiseVariance(p)/noiseDivisor),
		Resolution: domain.Clamp01(float64(p.w*p.h) / minPixels),
	}

	score := weightSharpness*m.Sharpness +
		weightBrightness*m.Brightness +
		weightContrast*m.Contrast +
		weightNoise*m.Noise +
		weightResolution*m.Resolution

	issues := []string{}
	if m.Sharpness < 0.4 {
		issues = append(issues, "Image is blurry")
	}
	if m.Brightness < 0.5 {
		if mean < 80 {
			issues = append(issues, "Image is too dark")
		} else {
			issues = append(issues, "Image is overexposed")
		}
	}
	if m.Contrast < 0.4 {
		issues = append(issues, "Low contrast")
	}
	if m.Noise < 0.5 {
		issues = append(issues, "High noise level")
	}
	if m.Resolution < 0.8 {
		issues = append(issues, "Low resolution")
	}

	recommendation := "Image quality acceptable"
	if score < acceptableImage {
		recommendation = "Use higher quality images"
	}

	return domain.QualityReport{
		Score:       domain.Score(score),
		Reliability: reliability(score),
		Metrics: &domain.QualityMetrics{
			Sharpness:  domain.Round2(m.Sharpness),
			Brightness: domain.Round2(m.Brightness),
			Contrast:   domain.Round2(m.Contrast),
			Noise:      domain.Round2(m.Noise),
			Resolution: domain.Round2(m.Resolution),
		},
		Issues:         issues,
		Recommendation: recommendation,
		Resolution:     fmt.Sprintf("%dx%d", p.w, p.h),
	}
}

// brightnessScore rewards mid-range exposure.
func brightnessScore(mean float64) float64 {
	switch {
	case mean >= 80 && mean <= 180:
		return 1.0
	case mean < 30 || mean > 220:
		return 0.3
	default:
		return 0.7
	}
}

func reliability(score float64) domain.Reliability {
	switch {
	case score > 0.75:
		return domain.ReliabilityHigh
	case score > 0.55:
		return domain.ReliabilityMedium
	case score > 0.35:
		return domain.ReliabilityLow
	default:
		return domain.ReliabilityVeryLow
	}
}

// AssessVideo scores up to samples frames spread evenly over src, first and
// last frame included, and aggregates them. Frames that fail to decode are skipped.
func (a *Assessor) AssessVideo(ctx context.Context, src FrameSource, samples int) domain.QualityReport {
	total := src.FrameCount()
	if total == 0 {
		return Unreadable(IssueUnreadableVideo)
	}

	var (
		scores     []float64
		resolution string
		issues     = make(map[string]bool)
	)
	for _, idx := range media.SampleIndices(total, samples) {
		if ctx.Err() != nil {
			break
		}
		img, err := src.Frame(idx)
		if err != nil {
			a.logger.Warn("skipping unreadable frame", "frame", idx, "error", err)
			continue
		}
		r := a.AssessImage(img)
		scores = append(scores, r.Score)
		for _, issue := range r.Issues {
			issues[issue] = true
		}
		if resolution == "" {
			resolution = r.Resolution
		}
	}

	if len(scores) == 0 {
		return Unreadable(IssueNoValidFrames)
	}

	var sum float64
	lowest := scores[0]
	for _, s := range scores {
		sum += s
		lowest = min(lowest, s)
	}
	mean := sum / float64(len(scores))
	minScore := domain.Round2(lowest)

	merged := make([]string, 0, len(issues))
	for issue := range issues {
		merged = append(merged, issue)
	}
	sort.Strings(merged)

	recommendation := "Consider re-recording in better conditions"
	if mean > acceptableVideo {
		recommendation = "Video quality acceptable"
	}

	return domain.QualityReport{
		Score:          domain.Score(mean),
		MinScore:       &minScore,
		Reliability:    videoReliability(mean),
		Issues:         merged,
		Recommendation: recommendation,
		Resolution:     resolution,
		FramesAnalyzed: len(scores),
	}
}

// videoReliability never drops below LOW: a video with decodable frames is
// always worth a look.
func videoReliability(mean float64) domain.Reliability {
	switch {
	case mean > 0.75:
		return domain.ReliabilityHigh
	case mean > 0.55:
		return domain.ReliabilityMedium
	default:
		return domain.ReliabilityLow
	}
}
