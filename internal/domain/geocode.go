package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlace attaches a reverse-geocoded place to an assessment that has
// coordinates. Geocoding failures leave the assessment unchanged.
func EnrichWithPlace(ctx context.Context, a Assessment, geocoder Geocoder, logger *slog.Logger) Assessment {
	if geocoder == nil || a.Location == nil {
		return a
	}

	result, err := geocoder.ReverseGeocode(ctx, a.Location.Lat, a.Location.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"report_id", a.ReportID,
			"lat", a.Location.Lat,
			"lon", a.Location.Lon,
			"error", err,
		)
		return a
	}
	if result.FormattedAddress == "" {
		return a
	}

	a.Place = &Place{
		Name:             result.PlaceName,
		FormattedAddress: result.FormattedAddress,
		Confidence:       result.Confidence,
	}
	return a
}
