package pipeline

import (
	"time"

	"github.com/coverline/hydrant-rating-etl/internal/hydrant"
	"github.com/coverline/hydrant-rating-etl/internal/source"
)

// stampRecords maps API records into domain records, stamping each with the
// run identifier and ingest timestamp. Field values stay verbatim; the
// validator owns all parsing.
func stampRecords(records []source.Record, runID string, ingestedAt time.Time) []hydrant.RawRecord {
	out := make([]hydrant.RawRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, hydrant.RawRecord{
			HydrantID:       rec.AssetID.String(),
			ObjectID:        rec.ObjectID.String(),
			Latitude:        rec.Latitude.String(),
			Longitude:       rec.Longitude.String(),
			InsuranceRating: rec.InsuranceRating.String(),
			LifecycleStatus: rec.LifecycleStatus.String(),
			ServiceArea:     rec.ServiceArea.String(),
			Neighborhood:    rec.Neighborhood.String(),
			StaticPressure:  rec.StaticPressure.String(),
			RawPayload:      rec.Payload,
			RunID:           runID,
			IngestedAt:      ingestedAt,
		})
	}
	return out
}
