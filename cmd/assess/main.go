// Command assess evaluates one local image or video with an optional
// description and prints the full assessment as JSON. It uses the same
// evaluator and adapters as the service, configured from the environment.
//
// Usage:
//
//	go run ./cmd/assess \
//	  -media uploads/harbour.mp4 \
//	  -text "huge waves crossing the sea wall" \
//	  -lat 13.05 -lon 80.28
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/couchcryptid/coastal-alert-service/internal/app"
	"github.com/couchcryptid/coastal-alert-service/internal/config"
	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	mediaPath := flag.String("media", "", "path to the image or video to assess")
	text := flag.String("text", "", "report description")
	mediaType := flag.String("type", "", "media type: image or video (inferred from the extension when empty)")
	lat := flag.Float64("lat", math.NaN(), "report latitude")
	lon := flag.Float64("lon", math.NaN(), "report longitude")
	verbose := flag.Bool("v", false, "log evaluation steps to stderr")
	flag.Parse()

	if *mediaPath == "" {
		flag.Usage()
		return errors.New("missing required flag: -media")
	}

	report, err := buildReport(*mediaPath, *text, *mediaType, *lat, *lon)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Logs go to stderr so stdout stays pure JSON.
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	evaluator, err := app.NewEvaluator(cfg, logger, observability.NewMetricsForTesting())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	assessment, err := evaluator.Evaluate(ctx, report)
	if err != nil {
		return fmt.Errorf("assess %s: %w", filepath.Base(report.MediaPath), err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(assessment)
}

// buildReport turns the flags into a report. Latitude and longitude must be
// given together.
func buildReport(mediaPath, text, mediaType string, lat, lon float64) (domain.Report, error) {
	if _, err := os.Stat(mediaPath); err != nil {
		return domain.Report{}, fmt.Errorf("media file: %w", err)
	}

	r := domain.Report{
		ID:          uuid.NewString(),
		Text:        text,
		MediaPath:   mediaPath,
		MediaType:   domain.MediaImage,
		SubmittedAt: domain.Now(),
	}
	switch strings.ToLower(mediaType) {
	case string(domain.MediaVideo):
		r.MediaType = domain.MediaVideo
	case string(domain.MediaImage):
	case "":
		if domain.IsVideoPath(mediaPath) {
			r.MediaType = domain.MediaVideo
		}
	default:
		return domain.Report{}, fmt.Errorf("invalid -type %q: want image or video", mediaType)
	}

	switch hasLat, hasLon := !math.IsNaN(lat), !math.IsNaN(lon); {
	case hasLat && hasLon:
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return domain.Report{}, fmt.Errorf("coordinates out of range: %g,%g", lat, lon)
		}
		r.Location = &domain.Location{Lat: lat, Lon: lon}
	case hasLat || hasLon:
		return domain.Report{}, errors.New("-lat and -lon must be given together")
	}
	return r, nil
}
