package hydrant

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// referencePressure is the fixed ceiling used to scale the pressure risk
// score. Municipal mains rarely exceed 120 PSI, and a fixed reference keeps
// the score a pure function of the record (the batch-maximum alternative
// would make one record's score depend on its neighbors).
const referencePressure = 120.0

// Pressure categories classify fire-suppression capability. Fire
// departments require 20+ PSI; 40-60 PSI is considered optimal.
const (
	PressureUnknown      = "UNKNOWN"
	PressureInsufficient = "INSUFFICIENT" // <= 20 PSI
	PressureMarginal     = "MARGINAL"     // 20-40 PSI
	PressureAdequate     = "ADEQUATE"     // 40-60 PSI
	PressureExcellent    = "EXCELLENT"    // > 60 PSI
)

// Service quality combines operational status with pressure adequacy.
const (
	QualityHigh     = "HIGH"
	QualityMedium   = "MEDIUM"
	QualityLow      = "LOW"
	QualityInactive = "INACTIVE"
	QualityUnknown  = "UNKNOWN"
)

// Activity flags for the hydrant lifecycle status.
const (
	ActivityInactive  int32 = 0
	ActivityActive    int32 = 1
	ActivityAbandoned int32 = 2
)

// Transform maps accepted records to the canonical analysis schema,
// record at a time. It is deterministic: identical input yields identical
// output, with no clock or randomness beyond the run_id the records already
// carry. Conditions that would require dropping a record belong in the
// validator; encountering one here means the upstream contract was broken
// and the run must fail.
func Transform(records []ValidatedRecord) ([]TransformedRecord, error) {
	out := make([]TransformedRecord, 0, len(records))
	for i, rec := range records {
		if !rec.Accepted() {
			return nil, fmt.Errorf("record %d: transform received a %s record", i, rec.Status)
		}
		if rec.Coord == nil {
			return nil, fmt.Errorf("record %d: accepted record has no parsed coordinates", i)
		}
		out = append(out, transformOne(rec))
	}
	return out, nil
}

func transformOne(rec ValidatedRecord) TransformedRecord {
	raw := rec.Raw
	coord := *rec.Coord

	id := strings.ToUpper(strings.TrimSpace(raw.HydrantID))
	status := strings.ToUpper(strings.TrimSpace(raw.LifecycleStatus))
	flag := activityFlag(status)
	pressure, hasPressure := parsePressure(raw.StaticPressure)
	rating := NormalizeRating(raw.InsuranceRating)
	neighborhood := titleCase(raw.Neighborhood)

	return TransformedRecord{
		HydrantID: id,
		ObjectID:  strings.TrimSpace(raw.ObjectID),

		Location:     coord,
		GeoCell:      geoCell(coord),
		Neighborhood: neighborhood,
		ServiceArea:  titleCase(raw.ServiceArea),
		InCityLimits: neighborhood != "",

		LifecycleStatus: status,
		ActivityFlag:    flag,

		StaticPressure:   pressure,
		HasPressure:      hasPressure,
		PressureCategory: pressureCategory(pressure, hasPressure),
		PressureRisk:     pressureRisk(pressure, hasPressure),

		InsuranceRating: rating,
		RatingTier:      RatingTier(rating),
		ServiceQuality:  serviceQuality(flag, pressure, hasPressure),

		RecordHash: recordHash(id, coord),
		RunID:      raw.RunID,
		IngestedAt: raw.IngestedAt,
	}
}

// activityFlag maps the source lifecycle status to the numeric flag used by
// coverage-gap analysis: abandoned hydrants are distinct from inactive ones.
func activityFlag(status string) int32 {
	switch status {
	case "AB", "ABANDONED":
		return ActivityAbandoned
	case "AC", "ACTIVE":
		return ActivityActive
	default:
		return ActivityInactive
	}
}

func parsePressure(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func pressureCategory(pressure float64, hasPressure bool) string {
	if !hasPressure {
		return PressureUnknown
	}
	switch {
	case pressure <= 20:
		return PressureInsufficient
	case pressure <= 40:
		return PressureMarginal
	case pressure <= 60:
		return PressureAdequate
	default:
		return PressureExcellent
	}
}

// pressureRisk scores suppression risk on a 0-100 scale where higher means
// riskier. Missing pressure scores the maximum.
func pressureRisk(pressure float64, hasPressure bool) float64 {
	if !hasPressure {
		return 100
	}
	if pressure > referencePressure {
		pressure = referencePressure
	}
	score := 100 - pressure/referencePressure*100
	return math.Round(score*100) / 100
}

func serviceQuality(flag int32, pressure float64, hasPressure bool) string {
	if flag == ActivityInactive {
		return QualityInactive
	}
	if flag != ActivityActive || !hasPressure {
		return QualityUnknown
	}
	switch {
	case pressure >= 40:
		return QualityHigh
	case pressure >= 20:
		return QualityMedium
	default:
		return QualityLow
	}
}

// geoCell assigns the record to a ~111m spatial grid cell for proximity and
// coverage-density queries.
func geoCell(c Coordinate) string {
	return fmt.Sprintf("%.3f_%.3f", c.Lat, c.Lon)
}

// recordHash produces a deterministic identity hash over the fields that
// define a hydrant's physical record, for change-data-capture downstream.
func recordHash(id string, c Coordinate) string {
	input := fmt.Sprintf("%s|%.6f|%.6f", id, c.Lat, c.Lon)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:8])
}

// titleCase normalizes free-text area names ("WESTWOOD", "westwood") to a
// single casing so group-bys and joins do not split on case.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
