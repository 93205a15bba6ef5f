// Package hydrant holds the domain model for fire-hydrant insurance-rating
// records: the raw shape returned by the open-data API, the validation
// verdicts, and the canonical analysis-ready schema.
package hydrant

import (
	"encoding/json"
	"time"
)

// RawRecord is one entry as returned by the source API, stamped with run
// provenance by the ingestor. Field values are kept as the strings the API
// delivered; parsing happens during validation and transformation so that
// malformed values surface as rejection reasons instead of decode errors.
type RawRecord struct {
	HydrantID       string
	ObjectID        string
	Latitude        string
	Longitude       string
	InsuranceRating string
	LifecycleStatus string
	ServiceArea     string
	Neighborhood    string
	StaticPressure  string

	// RawPayload is the unmodified source object, retained for audit.
	RawPayload json.RawMessage

	RunID      string
	IngestedAt time.Time
}

// Status is the validator's verdict for a record.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Reason identifies a single validation rule violation.
type Reason string

const (
	ReasonMissingHydrantID   Reason = "missing_hydrant_id"
	ReasonMissingCoordinates Reason = "missing_coordinates"
	ReasonInvalidCoordinates Reason = "invalid_coordinates"
	ReasonOutOfBounds        Reason = "out_of_bounds"
	ReasonMissingRating      Reason = "missing_rating"
	ReasonDuplicate          Reason = "duplicate"
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

// ValidatedRecord annotates exactly one RawRecord with a verdict.
// Rejected records are retained with their reasons for reporting; they are
// never silently dropped.
type ValidatedRecord struct {
	Raw     RawRecord
	Status  Status
	Reasons []Reason

	// Coord holds the parsed coordinates when the coordinate rules passed,
	// so the transformer does not re-parse the raw strings.
	Coord *Coordinate
}

// Accepted reports whether the record passed all validation rules.
func (v ValidatedRecord) Accepted() bool {
	return v.Status == StatusAccepted
}

// TransformedRecord is the canonical analysis-ready entity. It is produced
// from exactly one accepted ValidatedRecord, written once, and never mutated
// afterward.
type TransformedRecord struct {
	HydrantID string
	ObjectID  string

	Location     Coordinate
	GeoCell      string
	Neighborhood string
	ServiceArea  string
	InCityLimits bool

	LifecycleStatus string
	ActivityFlag    int32 // 0 inactive, 1 active, 2 abandoned

	StaticPressure   float64
	HasPressure      bool
	PressureCategory string
	PressureRisk     float64

	InsuranceRating string
	RatingTier      string
	ServiceQuality  string

	RecordHash string
	RunID      string
	IngestedAt time.Time
}
