package risks

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "portal-backend/internal/errors"
)

// Severity bands derived from rating = likelihood × impact.
const (
	SeverityLow      = "Low"
	SeverityModerate = "Moderate"
	SeverityHigh     = "High"
	SeveritySevere   = "Severe"
)

// Band describes one severity band of the risk matrix legend.
type Band struct {
	Name            string `json:"name"`
	MinRating       int    `json:"min_rating"`
	MaxRating       int    `json:"max_rating"`
	Colour          string `json:"colour"`
	SuggestedAction string `json:"suggested_action"`
}

// Legend is the severity band table, in ascending rating order.
var Legend = []Band{
	{Name: SeverityLow, MinRating: 1, MaxRating: 3, Colour: "green", SuggestedAction: "monitor"},
	{Name: SeverityModerate, MinRating: 4, MaxRating: 6, Colour: "yellow", SuggestedAction: "control plan"},
	{Name: SeverityHigh, MinRating: 7, MaxRating: 12, Colour: "orange", SuggestedAction: "remediate"},
	{Name: SeveritySevere, MinRating: 13, MaxRating: 16, Colour: "red", SuggestedAction: "escalate"},
}

// ValidateScores checks likelihood and impact are both in 1..4.
func ValidateScores(likelihood, impact int) error {
	if likelihood < 1 || likelihood > 4 {
		return apperrors.Validation("likelihood must be between 1 and 4")
	}
	if impact < 1 || impact > 4 {
		return apperrors.Validation("impact must be between 1 and 4")
	}
	return nil
}

// RatingFor is the derived rating, likelihood × impact.
func RatingFor(likelihood, impact int) int {
	return likelihood * impact
}

// SeverityFor maps a rating to its band name.
func SeverityFor(rating int) string {
	for _, band := range Legend {
		if rating >= band.MinRating && rating <= band.MaxRating {
			return band.Name
		}
	}
	return SeveritySevere
}

// BandFor returns the full legend entry for a rating.
func BandFor(rating int) Band {
	for _, band := range Legend {
		if rating >= band.MinRating && rating <= band.MaxRating {
			return band
		}
	}
	return Legend[len(Legend)-1]
}

// ParseCell parses a "L,I" heat-map cell selector. Malformed selectors
// return ok=false, which filters treat as "no filter".
func ParseCell(cell string) (likelihood, impact int, ok bool) {
	parts := strings.Split(strings.TrimSpace(cell), ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	l, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if l < 1 || l > 4 || i < 1 || i > 4 {
		return 0, 0, false
	}
	return l, i, true
}

// CellKey formats the "L,I" key for a heat-map cell.
func CellKey(likelihood, impact int) string {
	return fmt.Sprintf("%d,%d", likelihood, impact)
}
