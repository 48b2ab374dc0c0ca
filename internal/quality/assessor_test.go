package quality

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-alert-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func uniform(w, h int, shade uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	return img
}

func checkerboard(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// panicImage fails inside pixel access.
type panicImage struct{}

func (panicImage) ColorModel() color.Model  { return color.GrayModel }
func (panicImage) Bounds() image.Rectangle { return image.Rect(0, 0, 2, 2) }
func (panicImage) At(int, int) color.Color  { panic("corrupt pixel buffer") }

func TestAssessImage(t *testing.T) {
	a := NewAssessor(discardLogger())

	tests := []struct {
		name        string
		img         image.Image
		score       float64
		reliability domain.Reliability
		issues      []string
	}{
		{
			name:        "flat mid-grey",
			img:         uniform(320, 240, 128),
			score:       0.5,
			reliability: domain.ReliabilityLow,
			issues:      []string{"Image is blurry", "Low contrast"},
		},
		{
			name:        "small and dark",
			img:         uniform(32, 24, 10),
			score:       0.23,
			reliability: domain.ReliabilityVeryLow,
			issues:      []string{"Image is blurry", "Image is too dark", "Low contrast", "Low resolution"},
		},
		{
			name:        "overexposed",
			img:         uniform(160, 120, 240),
			score:       0.25,
			reliability: domain.ReliabilityVeryLow,
			issues:      []string{"Image is blurry", "Image is overexposed", "Low contrast", "Low resolution"},
		},
		{
			name:        "sharp high-contrast pattern",
			img:         checkerboard(320, 240),
			score:       0.85,
			reliability: domain.ReliabilityHigh,
			issues:      []string{"High noise level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := a.AssessImage(tt.img)
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.reliability, r.Reliability)
			assert.Equal(t, tt.issues, r.Issues)
			require.NotNil(t, r.Metrics)
		})
	}
}

func TestAssessImage_Metrics(t *testing.T) {
	r := NewAssessor(discardLogger()).AssessImage(checkerboard(320, 240))

	assert.Equal(t, domain.QualityMetrics{
		Sharpness:  1,
		Brightness: 1,
		Contrast:   1,
		Noise:      0,
		Resolution: 1,
	}, *r.Metrics)
	assert.Equal(t, "320x240", r.Resolution)
	assert.Equal(t, "Image quality acceptable", r.Recommendation)
}

func TestAssessImage_ColorMatchesGray(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			rgba.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	a := NewAssessor(discardLogger())

	assert.Equal(t, a.AssessImage(uniform(320, 240, 128)), a.AssessImage(rgba))
}

func TestAssessImage_Deterministic(t *testing.T) {
	a := NewAssessor(discardLogger())
	img := checkerboard(64, 48)

	assert.Equal(t, a.AssessImage(img), a.AssessImage(img))
}

func TestAssessImage_ProcessingFaults(t *testing.T) {
	a := NewAssessor(discardLogger())

	t.Run("empty image", func(t *testing.T) {
		r := a.AssessImage(image.NewGray(image.Rectangle{}))
		assert.Equal(t, 0.5, r.Score)
		assert.Equal(t, domain.ReliabilityUnknown, r.Reliability)
		assert.Equal(t, []string{"Quality assessment error: empty image"}, r.Issues)
	})

	t.Run("panic is contained", func(t *testing.T) {
		r := a.AssessImage(panicImage{})
		assert.Equal(t, 0.5, r.Score)
		assert.Equal(t, domain.ReliabilityUnknown, r.Reliability)
		assert.Equal(t, []string{"Quality assessment error: corrupt pixel buffer"}, r.Issues)
	})
}

func TestAssessFile_Unreadable(t *testing.T) {
	r := NewAssessor(discardLogger()).AssessFile(filepath.Join(t.TempDir(), "missing.jpg"))

	assert.Equal(t, 0.0, r.Score)
	assert.Equal(t, domain.ReliabilityVeryLow, r.Reliability)
	assert.Equal(t, []string{"Unable to load image"}, r.Issues)
}

// --- video ---

type fakeFrames struct {
	frames []image.Image
	errs   map[int]error
	reads  []int
}

func (f *fakeFrames) FrameCount() int { return len(f.frames) }

func (f *fakeFrames) Frame(i int) (image.Image, error) {
	f.reads = append(f.reads, i)
	if err := f.errs[i]; err != nil {
		return nil, err
	}
	return f.frames[i], nil
}

func TestAssessVideo(t *testing.T) {
	a := NewAssessor(discardLogger())
	src := &fakeFrames{frames: []image.Image{
		uniform(320, 240, 128),
		checkerboard(320, 240),
		checkerboard(320, 240),
	}}

	r := a.AssessVideo(context.Background(), src, 3)

	assert.Equal(t, 0.73, r.Score)
	require.NotNil(t, r.MinScore)
	assert.Equal(t, 0.5, *r.MinScore)
	assert.Equal(t, domain.ReliabilityMedium, r.Reliability)
	assert.Equal(t, 3, r.FramesAnalyzed)
	assert.Equal(t, []string{"High noise level", "Image is blurry", "Low contrast"}, r.Issues)
	assert.Equal(t, "Video quality acceptable", r.Recommendation)
	assert.Equal(t, "320x240", r.Resolution)
}

func TestAssessVideo_SkipsUnreadableFrames(t *testing.T) {
	a := NewAssessor(discardLogger())
	src := &fakeFrames{
		frames: []image.Image{checkerboard(320, 240), nil, nil, nil, checkerboard(320, 240)},
		errs:   map[int]error{2: errors.New("truncated png")},
	}

	r := a.AssessVideo(context.Background(), src, 3)

	assert.Equal(t, []int{0, 2, 4}, src.reads)
	assert.Equal(t, 2, r.FramesAnalyzed)
	assert.Equal(t, 0.85, r.Score)
	assert.Equal(t, domain.ReliabilityHigh, r.Reliability)
}

func TestAssessVideo_NoUsableFrames(t *testing.T) {
	a := NewAssessor(discardLogger())

	t.Run("empty source", func(t *testing.T) {
		r := a.AssessVideo(context.Background(), &fakeFrames{}, 3)
		assert.Equal(t, 0.0, r.Score)
		assert.Equal(t, domain.ReliabilityVeryLow, r.Reliability)
		assert.Equal(t, []string{"Unable to read video"}, r.Issues)
	})

	t.Run("every frame fails", func(t *testing.T) {
		broken := errors.New("bad frame")
		src := &fakeFrames{
			frames: make([]image.Image, 2),
			errs:   map[int]error{0: broken, 1: broken},
		}
		r := a.AssessVideo(context.Background(), src, 3)
		assert.Equal(t, 0.0, r.Score)
		assert.Equal(t, domain.ReliabilityVeryLow, r.Reliability)
		assert.Equal(t, []string{"No valid frames found"}, r.Issues)
	})
}

func TestAssessVideo_LowQualityFloorsAtLow(t *testing.T) {
	src := &fakeFrames{frames: []image.Image{uniform(32, 24, 10), uniform(32, 24, 10)}}

	r := NewAssessor(discardLogger()).AssessVideo(context.Background(), src, 3)

	assert.Equal(t, 0.23, r.Score)
	assert.Equal(t, domain.ReliabilityLow, r.Reliability)
	assert.Equal(t, "Consider re-recording in better conditions", r.Recommendation)
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 1, reflect101(-1, 5))
	assert.Equal(t, 2, reflect101(-2, 5))
	assert.Equal(t, 3, reflect101(5, 5))
	assert.Equal(t, 2, reflect101(6, 5))
	assert.Equal(t, 0, reflect101(-2, 1))
	assert.Equal(t, 0, reflect101(-2, 2))
}
