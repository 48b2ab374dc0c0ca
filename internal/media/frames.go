package media

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
)

// FrameDir is an ordered set of frame images on disk. Frames sort by file
// name, so extractors must write zero-padded sequence numbers.
type FrameDir struct {
	paths []string
}

// OpenFrameDir indexes the image files in dir.
func OpenFrameDir(dir string) (*FrameDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImagePath(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return &FrameDir{paths: paths}, nil
}

// FrameCount returns the number of frames.
func (d *FrameDir) FrameCount() int {
	return len(d.paths)
}

// Frame decodes frame i.
func (d *FrameDir) Frame(i int) (image.Image, error) {
	if i < 0 || i >= len(d.paths) {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, len(d.paths))
	}
	return LoadImage(d.paths[i])
}
