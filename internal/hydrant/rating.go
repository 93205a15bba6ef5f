package hydrant

import (
	"math"
	"strconv"
	"strings"
)

// RatingUnknown is the bucket for rating codes outside the canonical
// vocabulary. Unknown codes are mapped here rather than rejected; only an
// absent rating fails validation.
const RatingUnknown = "unknown"

// Rating tiers derived from the canonical class, used by underwriting
// queries that group hydrants coarser than the ten classes.
const (
	TierSuperior    = "superior"    // classes 1-3
	TierStandard    = "standard"    // classes 4-6
	TierSubstandard = "substandard" // classes 7-9
	TierUnprotected = "unprotected" // class 10
)

// NormalizeRating maps a source rating code to the canonical vocabulary:
// protection classes "1" through "10", or RatingUnknown. The API is not
// uniform about how it spells a class ("3", "03", "3.0", "Class 3" all
// occur), so the comparison is done on the parsed numeric value.
func NormalizeRating(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.TrimSpace(strings.TrimPrefix(s, "CLASS"))
	if s == "" {
		return RatingUnknown
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return RatingUnknown
	}

	n := int(f)
	if n < 1 || n > 10 {
		return RatingUnknown
	}
	return strconv.Itoa(n)
}

// RatingTier maps a canonical rating class to its tier.
func RatingTier(canonical string) string {
	switch canonical {
	case "1", "2", "3":
		return TierSuperior
	case "4", "5", "6":
		return TierStandard
	case "7", "8", "9":
		return TierSubstandard
	case "10":
		return TierUnprotected
	default:
		return RatingUnknown
	}
}
