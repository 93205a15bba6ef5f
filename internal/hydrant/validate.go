package hydrant

import (
	"strconv"
	"strings"
)

// BoundingBox is the inclusive geographic envelope accepted for hydrant
// coordinates. Anything outside is rejected as out of the city's service
// area.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether the coordinate lies inside the box.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// CincinnatiBounds covers the Cincinnati water-works service area with a
// small margin. Null-island zeros and coordinate swaps land far outside it.
var CincinnatiBounds = BoundingBox{
	MinLat: 38.95,
	MaxLat: 39.35,
	MinLon: -84.85,
	MaxLon: -84.25,
}

// Validator applies the data-quality rules for one run. It carries the set
// of hydrant identifiers seen so far, which makes the duplicate rule the
// only cross-record rule; everything else is pure per record. A Validator
// must not be reused across runs.
type Validator struct {
	bounds BoundingBox
	seen   map[string]struct{}
}

// NewValidator creates a Validator for a single run.
func NewValidator(bounds BoundingBox) *Validator {
	return &Validator{
		bounds: bounds,
		seen:   make(map[string]struct{}),
	}
}

// Validate partitions the input into accepted and rejected records in a
// single pass. Every input record yields exactly one ValidatedRecord, so
// accepted + rejected always equals the input count. A record is rejected
// if any rule fails, and all failing rules are recorded, not just the
// first.
func (v *Validator) Validate(records []RawRecord) []ValidatedRecord {
	out := make([]ValidatedRecord, 0, len(records))
	for _, raw := range records {
		out = append(out, v.validateOne(raw))
	}
	return out
}

// validateOne applies the rule checklist in its fixed order:
// identifier, coordinates, rating, duplicate.
func (v *Validator) validateOne(raw RawRecord) ValidatedRecord {
	rec := ValidatedRecord{Raw: raw, Status: StatusAccepted}

	id := strings.ToUpper(strings.TrimSpace(raw.HydrantID))
	if id == "" {
		rec.reject(ReasonMissingHydrantID)
	}

	if coord, reason := parseCoordinate(raw.Latitude, raw.Longitude, v.bounds); reason != "" {
		rec.reject(reason)
	} else {
		rec.Coord = coord
	}

	if strings.TrimSpace(raw.InsuranceRating) == "" {
		rec.reject(ReasonMissingRating)
	}

	// The first occurrence of an identifier claims it for the run, whatever
	// its own verdict; later occurrences are duplicates.
	if id != "" {
		if _, dup := v.seen[id]; dup {
			rec.reject(ReasonDuplicate)
		} else {
			v.seen[id] = struct{}{}
		}
	}

	return rec
}

func (v *ValidatedRecord) reject(reason Reason) {
	v.Status = StatusRejected
	v.Reasons = append(v.Reasons, reason)
}

// parseCoordinate checks presence, numeric form, and the bounding box.
// It returns the parsed coordinate on success, or the rejection reason.
func parseCoordinate(lat, lon string, bounds BoundingBox) (*Coordinate, Reason) {
	lat = strings.TrimSpace(lat)
	lon = strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return nil, ReasonMissingCoordinates
	}

	latF, errLat := strconv.ParseFloat(lat, 64)
	lonF, errLon := strconv.ParseFloat(lon, 64)
	if errLat != nil || errLon != nil {
		return nil, ReasonInvalidCoordinates
	}

	c := Coordinate{Lat: latF, Lon: lonF}
	if !bounds.Contains(c) {
		return nil, ReasonOutOfBounds
	}
	return &c, ""
}
