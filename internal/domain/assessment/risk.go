// Package assessment holds the structured results produced by the model
// backed flows and the rules every result must satisfy before it is shown.
package assessment

import "fmt"

// RiskLevel is the assessed interaction severity
type RiskLevel string

const (
	RiskNone     RiskLevel = "None"
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// RiskLevels in ascending order
var RiskLevels = []RiskLevel{RiskNone, RiskLow, RiskModerate, RiskHigh}

// ParseRiskLevel accepts exactly one of the four level names
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(s)
	if level.Rank() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidRiskLevel, s)
	}
	return level, nil
}

// Rank orders levels from 0 (None) to 3 (High); unknown levels rank -1
func (r RiskLevel) Rank() int {
	for i, level := range RiskLevels {
		if level == r {
			return i
		}
	}
	return -1
}

// Compare returns -1, 0 or 1
func (r RiskLevel) Compare(other RiskLevel) int {
	a, b := r.Rank(), other.Rank()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// WarrantsFollowUp reports whether alternatives and post-ingestion advice
// should be offered for this level.
func (r RiskLevel) WarrantsFollowUp() bool {
	return r.Rank() >= RiskLow.Rank()
}

func (r RiskLevel) String() string {
	return string(r)
}
