// Package tables defines the columnar output schema and the parquet
// encoder for hydrant run artifacts.
package tables

import (
	"time"

	"github.com/coverline/hydrant-rating-etl/internal/hydrant"
)

// TableName is the canonical name of the single output table.
const TableName = "firehydrants"

// SchemaVersion identifies the row schema. Increment on breaking changes.
const SchemaVersion = "1.0.0"

// HydrantRow is one row of the analysis-ready table.
type HydrantRow struct {
	// Primary identifiers
	HydrantID  string `parquet:"hydrant_id"`
	ObjectID   string `parquet:"object_id"`
	RecordHash string `parquet:"record_hash"`

	// Geographic dimensions
	Latitude     float64 `parquet:"latitude"`
	Longitude    float64 `parquet:"longitude"`
	GeoCell      string  `parquet:"geo_cell"`
	Neighborhood string  `parquet:"neighborhood"`
	ServiceArea  string  `parquet:"service_area"`
	InCityLimits bool    `parquet:"in_city_limits"`

	// Status and measurements
	LifecycleStatus string  `parquet:"lifecycle_status"`
	ActivityFlag    int32   `parquet:"activity_flag"`
	StaticPressure  float64 `parquet:"static_pressure"`
	HasPressure     bool    `parquet:"has_pressure"`

	// Derived insurance features
	PressureCategory string  `parquet:"pressure_category"`
	PressureRisk     float64 `parquet:"pressure_risk_score"`
	InsuranceRating  string  `parquet:"insurance_rating"`
	RatingTier       string  `parquet:"rating_tier"`
	ServiceQuality   string  `parquet:"service_quality"`

	// Run metadata
	RunID      string    `parquet:"run_id"`
	IngestedAt time.Time `parquet:"ingested_at,timestamp(millisecond)"`
}

// RowFromRecord maps a transformed record to its parquet row.
func RowFromRecord(rec hydrant.TransformedRecord) HydrantRow {
	return HydrantRow{
		HydrantID:  rec.HydrantID,
		ObjectID:   rec.ObjectID,
		RecordHash: rec.RecordHash,

		Latitude:     rec.Location.Lat,
		Longitude:    rec.Location.Lon,
		GeoCell:      rec.GeoCell,
		Neighborhood: rec.Neighborhood,
		ServiceArea:  rec.ServiceArea,
		InCityLimits: rec.InCityLimits,

		LifecycleStatus: rec.LifecycleStatus,
		ActivityFlag:    rec.ActivityFlag,
		StaticPressure:  rec.StaticPressure,
		HasPressure:     rec.HasPressure,

		PressureCategory: rec.PressureCategory,
		PressureRisk:     rec.PressureRisk,
		InsuranceRating:  rec.InsuranceRating,
		RatingTier:       rec.RatingTier,
		ServiceQuality:   rec.ServiceQuality,

		RunID:      rec.RunID,
		IngestedAt: rec.IngestedAt,
	}
}
