package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Extractor samples video frames to disk with the ffmpeg binary, using
// ffprobe to count native frames.
type Extractor struct {
	ffmpeg  string
	ffprobe string
	fps     float64
	logger  *slog.Logger
}

// NewExtractor creates an Extractor that writes fps frames per second of video.
func NewExtractor(ffmpeg, ffprobe string, fps float64, logger *slog.Logger) *Extractor {
	return &Extractor{ffmpeg: ffmpeg, ffprobe: ffprobe, fps: fps, logger: logger}
}

// Extraction is a set of frames owned by one report evaluation. Release must
// be called once the frames are no longer needed.
type Extraction struct {
	*FrameDir
	dir    string
	logger *slog.Logger
}

// Extract writes frames of videoPath at the configured rate into a fresh
// temporary directory. On error nothing is left on disk.
func (e *Extractor) Extract(ctx context.Context, videoPath string) (*Extraction, error) {
	return e.extract(ctx, videoPath, "-vf", "fps="+strconv.FormatFloat(e.fps, 'f', -1, 64))
}

// Sample writes up to n native frames of videoPath, spread evenly from the
// first frame to the last, into a fresh temporary directory.
func (e *Extractor) Sample(ctx context.Context, videoPath string, n int) (*Extraction, error) {
	total, err := e.CountFrames(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	indices := SampleIndices(total, n)
	if len(indices) == 0 {
		return nil, fmt.Errorf("sample frames from %s: video has no frames", filepath.Base(videoPath))
	}
	return e.extract(ctx, videoPath, "-vf", selectFilter(indices), "-vsync", "0")
}

// CountFrames returns the number of video frames by decoding the first video stream.
func (e *Extractor) CountFrames(ctx context.Context, videoPath string) (int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_read_frames",
		"-of", "csv=p=0",
		videoPath,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("count frames of %s: %w: %s",
			filepath.Base(videoPath), err, strings.TrimSpace(stderr.String()))
	}
	return parseFrameCount(stdout.String())
}

func (e *Extractor) extract(ctx context.Context, videoPath string, filter ...string) (*Extraction, error) {
	dir, err := os.MkdirTemp("", "coastal-frames-*")
	if err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	x := &Extraction{dir: dir, logger: e.logger}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-i", videoPath}
	args = append(args, filter...)
	args = append(args, filepath.Join(dir, "frame_%05d.png"))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		x.Release()
		return nil, fmt.Errorf("extract frames from %s: %w: %s",
			filepath.Base(videoPath), err, strings.TrimSpace(stderr.String()))
	}

	frames, err := OpenFrameDir(dir)
	if err != nil {
		x.Release()
		return nil, err
	}
	x.FrameDir = frames
	return x, nil
}

// selectFilter keeps exactly the frames at indices.
func selectFilter(indices []int) string {
	terms := make([]string, len(indices))
	for i, idx := range indices {
		terms[i] = `eq(n\,` + strconv.Itoa(idx) + ")"
	}
	return "select=" + strings.Join(terms, "+")
}

func parseFrameCount(out string) (int, error) {
	// Some containers report one line per program; the first is the stream.
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(line, ",")))
	if err != nil {
		return 0, fmt.Errorf("parse frame count %q: %w", line, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse frame count %q: negative", line)
	}
	return n, nil
}

// SampleIndices returns min(samples, total) frame indices spaced evenly over
// [0, total-1], truncated toward zero.
func SampleIndices(total, samples int) []int {
	n := min(samples, total)
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []int{0}
	}
	out := make([]int, n)
	step := float64(total-1) / float64(n-1)
	for i := range out {
		out[i] = int(float64(i) * step)
	}
	out[n-1] = total - 1
	return out
}

// Release deletes the extracted frames. Failures are logged, never returned.
func (x *Extraction) Release() {
	if err := os.RemoveAll(x.dir); err != nil {
		x.logger.Warn("failed to remove frame dir", "dir", x.dir, "error", err)
	}
}

// Dir returns the directory holding the frames.
func (x *Extraction) Dir() string {
	return x.dir
}
