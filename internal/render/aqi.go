package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Severity is the air-quality class derived from an AQI index.
type Severity int

const (
	SeverityGood Severity = iota
	SeverityModerate
	SeveritySensitive
	SeverityUnhealthy
	SeverityVeryUnhealthy
	SeverityHazardous
)

var severityLabels = [...]string{
	SeverityGood:          "Good",
	SeverityModerate:      "Moderate",
	SeveritySensitive:     "Unhealthy for Sensitive Groups",
	SeverityUnhealthy:     "Unhealthy",
	SeverityVeryUnhealthy: "Very Unhealthy",
	SeverityHazardous:     "Hazardous",
}

// Label returns the fixed display label for the class.
func (s Severity) Label() string {
	if s < SeverityGood || s > SeverityHazardous {
		return "Unknown"
	}
	return severityLabels[s]
}

func (s Severity) String() string {
	return s.Label()
}

// severityCeilings are the inclusive upper bounds of each class below Hazardous.
var severityCeilings = [...]float64{50, 100, 150, 200, 300}

// SeverityFor classifies an AQI index.
func SeverityFor(aqi float64) Severity {
	for i, ceiling := range severityCeilings {
		if aqi <= ceiling {
			return Severity(i)
		}
	}
	return SeverityHazardous
}

// WeatherIcon is the pictogram shown next to a weather description.
type WeatherIcon string

const (
	IconRain  WeatherIcon = "rain"
	IconCloud WeatherIcon = "cloud"
	IconSun   WeatherIcon = "sun"
	IconWind  WeatherIcon = "wind"
)

// AQIReport is a decoded air-quality and weather snapshot.
type AQIReport struct {
	City        string
	AQI         float64
	Weather     string
	Temperature float64
	Humidity    float64
}

// Kind implements Widget.
func (r *AQIReport) Kind() PayloadKind { return KindAQI }

// Severity classifies the report's index.
func (r *AQIReport) Severity() Severity {
	return SeverityFor(r.AQI)
}

// WeatherIcon picks a pictogram from the weather description.
func (r *AQIReport) WeatherIcon() WeatherIcon {
	w := strings.ToLower(r.Weather)
	switch {
	case strings.Contains(w, "rain"):
		return IconRain
	case strings.Contains(w, "cloud"):
		return IconCloud
	case strings.Contains(w, "clear"), strings.Contains(w, "sun"):
		return IconSun
	default:
		return IconWind
	}
}

var errMissingField = errors.New("missing required field")

// aqiPayload mirrors the wire format; pointers detect absent fields.
type aqiPayload struct {
	City        *string  `json:"city"`
	AQI         *float64 `json:"aqi"`
	Weather     *string  `json:"weather"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

func decodeAQI(raw string) (Widget, error) {
	var p aqiPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode aqi payload: %w", err)
	}

	switch {
	case p.City == nil:
		return nil, fmt.Errorf("%w: city", errMissingField)
	case p.AQI == nil:
		return nil, fmt.Errorf("%w: aqi", errMissingField)
	case p.Weather == nil:
		return nil, fmt.Errorf("%w: weather", errMissingField)
	case p.Temperature == nil:
		return nil, fmt.Errorf("%w: temperature", errMissingField)
	case p.Humidity == nil:
		return nil, fmt.Errorf("%w: humidity", errMissingField)
	}

	return &AQIReport{
		City:        *p.City,
		AQI:         *p.AQI,
		Weather:     *p.Weather,
		Temperature: *p.Temperature,
		Humidity:    *p.Humidity,
	}, nil
}
