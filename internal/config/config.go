package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	// Reports of one batch evaluated in parallel.
	ReportConcurrency int

	// External vision scorer.
	VisionURL     string
	VisionTimeout time.Duration

	// Text embedding service used by the reconciler and social scorer.
	EmbedURL        string
	EmbedModel      string
	EmbedTimeout    time.Duration
	EmbedRatePerSec float64
	EmbedCacheSize  int

	// Social corpus file; empty selects the built-in posts.
	SocialCorpusPath string

	// Video handling.
	VideoQualitySamples int
	VideoFrameRate      float64
	FrameConcurrency    int
	FFmpegPath          string
	FFprobePath         string

	// Mapbox reverse geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "coastal-hazard-reports"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "coastal-hazard-decisions"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "coastal-alert"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		VisionURL:        sharedcfg.EnvOrDefault("VISION_URL", "http://localhost:8000"),
		EmbedURL:         sharedcfg.EnvOrDefault("EMBED_URL", "http://localhost:11434"),
		EmbedModel:       sharedcfg.EnvOrDefault("EMBED_MODEL", "all-minilm"),
		SocialCorpusPath: os.Getenv("SOCIAL_CORPUS_PATH"),
		FFmpegPath:       sharedcfg.EnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      sharedcfg.EnvOrDefault("FFPROBE_PATH", "ffprobe"),
		MapboxToken:      os.Getenv("MAPBOX_TOKEN"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"VISION_TIMEOUT", "30s", &cfg.VisionTimeout},
		{"EMBED_TIMEOUT", "10s", &cfg.EmbedTimeout},
		{"MAPBOX_TIMEOUT", "5s", &cfg.MapboxTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"REPORT_CONCURRENCY", 4, &cfg.ReportConcurrency},
		{"EMBED_CACHE_SIZE", 2000, &cfg.EmbedCacheSize},
		{"VIDEO_QUALITY_SAMPLES", 3, &cfg.VideoQualitySamples},
		{"FRAME_CONCURRENCY", 4, &cfg.FrameConcurrency},
		{"MAPBOX_CACHE_SIZE", 1000, &cfg.MapboxCacheSize},
	}
	for _, n := range ints {
		if *n.dst, err = parsePositiveInt(n.key, n.def); err != nil {
			return nil, err
		}
	}

	if cfg.EmbedRatePerSec, err = parsePositiveFloat("EMBED_RATE_PER_SEC", 20); err != nil {
		return nil, err
	}
	if cfg.VideoFrameRate, err = parsePositiveFloat("VIDEO_FRAME_RATE", 1); err != nil {
		return nil, err
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	for _, u := range []struct{ key, val string }{
		{"VISION_URL", cfg.VisionURL},
		{"EMBED_URL", cfg.EmbedURL},
	} {
		if parsed, err := url.Parse(u.val); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid %s: %q", u.key, u.val)
		}
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return f, nil
}
