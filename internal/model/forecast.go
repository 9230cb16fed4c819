package model

import (
	"math"
	"time"
)

// SourceTier identifies the cascade stage that produced a forecast value.
type SourceTier string

const (
	TierModel      SourceTier = "model"
	TierHistorical SourceTier = "historical"
	TierBaseline   SourceTier = "baseline"
)

// Status labels derived from the predicted availability.
const (
	LabelGood = "Good"
	LabelFair = "Fair"
	LabelPoor = "Poor"
)

// AssumedZoneCapacity normalizes an availability rate into a spot count.
// It is a fixed approximation, not the zone's real bay count.
const AssumedZoneCapacity = 100

// Forecast is an availability prediction for one zone at one hour.
type Forecast struct {
	Zone                  ZoneID     `json:"zone_number" yaml:"zone_number"`
	Hour                  int        `json:"hour" yaml:"hour"`
	DayType               DayType    `json:"day_type" yaml:"day_type"`
	Timestamp             time.Time  `json:"timestamp" yaml:"timestamp"`
	PredictedAvailability float64    `json:"predicted_availability" yaml:"predicted_availability"`
	AvailableSpots        int        `json:"available_spots" yaml:"available_spots"`
	StatusLabel           string     `json:"status_label" yaml:"status_label"`
	Confidence            float64    `json:"confidence" yaml:"confidence"`
	SourceTier            SourceTier `json:"source_tier" yaml:"source_tier"`
}

// NewForecast builds a Forecast for the target timestamp, clamping rate into
// [0,1] and deriving the label, spot count and confidence from it.
func NewForecast(zone ZoneID, ts time.Time, rate float64, tier SourceTier) Forecast {
	rate = ClampUnit(rate)
	return Forecast{
		Zone:                  zone,
		Hour:                  ts.Hour(),
		DayType:               DayTypeOf(ts),
		Timestamp:             ts,
		PredictedAvailability: rate,
		AvailableSpots:        int(math.Round(rate * AssumedZoneCapacity)),
		StatusLabel:           StatusLabelFor(rate),
		Confidence:            ConfidenceFor(rate),
		SourceTier:            tier,
	}
}

// ClampUnit clamps v into [0,1]. NaN clamps to 0.
func ClampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// StatusLabelFor maps an availability rate onto Good/Fair/Poor.
func StatusLabelFor(rate float64) string {
	switch {
	case rate >= 0.6:
		return LabelGood
	case rate >= 0.3:
		return LabelFair
	default:
		return LabelPoor
	}
}

// ConfidenceFor is 1 at rate 0.5 and 0 at either bound, rounded to 2 dp.
func ConfidenceFor(rate float64) float64 {
	c := ClampUnit(1 - 2*math.Abs(ClampUnit(rate)-0.5))
	return math.Round(c*100) / 100
}
