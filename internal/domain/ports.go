package domain

import (
	"context"
	"image"
)

// Embedder turns text into a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VisionScorer classifies a single decoded image.
type VisionScorer interface {
	Score(ctx context.Context, img image.Image) (VisionResult, error)
}

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	PlaceName        string
	FormattedAddress string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves report coordinates to a place description.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
