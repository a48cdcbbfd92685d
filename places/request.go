// Package places validates inbound search parameters and performs the
// upstream place-search call.
package places

import (
	"fmt"
	"strconv"
	"strings"
)

// Radius bounds in meters, matching the upstream provider's limits.
const (
	DefaultRadius = 1000
	MaxRadius     = 50000
)

// FieldError reports a validation failure on one named request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// SearchRequest holds normalized, validated search parameters.
type SearchRequest struct {
	// Latitude and Longitude come from the "location" parameter ("lat,lng").
	Latitude  float64
	Longitude float64

	// Radius is the search radius in meters.
	Radius int

	// Keyword is an optional free-text filter.
	Keyword string

	// Type is an optional place type filter (e.g., "restaurant").
	Type string
}

// ParseSearchRequest normalizes and validates raw query parameters. Every
// failure names the offending field so callers can correct their input.
func ParseSearchRequest(location, radius, keyword, placeType string) (SearchRequest, error) {
	req := SearchRequest{
		Radius:  DefaultRadius,
		Keyword: strings.TrimSpace(keyword),
		Type:    strings.TrimSpace(placeType),
	}

	if strings.TrimSpace(location) == "" {
		return req, &FieldError{Field: "location", Message: "location is required"}
	}

	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return req, &FieldError{
			Field:   "location",
			Message: fmt.Sprintf("location must be \"lat,lng\", got %d part(s)", len(parts)),
		}
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return req, &FieldError{Field: "location", Message: "latitude is not a number"}
	}
	if lat < -90 || lat > 90 {
		return req, &FieldError{
			Field:   "location",
			Message: fmt.Sprintf("latitude %g out of range [-90, 90]", lat),
		}
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return req, &FieldError{Field: "location", Message: "longitude is not a number"}
	}
	if lng < -180 || lng > 180 {
		return req, &FieldError{
			Field:   "location",
			Message: fmt.Sprintf("longitude %g out of range [-180, 180]", lng),
		}
	}

	req.Latitude = lat
	req.Longitude = lng

	if strings.TrimSpace(radius) != "" {
		r, err := strconv.Atoi(strings.TrimSpace(radius))
		if err != nil {
			return req, &FieldError{Field: "radius", Message: "radius is not an integer"}
		}
		if r <= 0 || r > MaxRadius {
			return req, &FieldError{
				Field:   "radius",
				Message: fmt.Sprintf("radius %d out of range (0, %d]", r, MaxRadius),
			}
		}
		req.Radius = r
	}

	return req, nil
}

// Location returns the "lat,lng" string the upstream provider expects.
func (r SearchRequest) Location() string {
	return strconv.FormatFloat(r.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(r.Longitude, 'f', -1, 64)
}
