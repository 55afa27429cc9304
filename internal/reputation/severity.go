package reputation

import "strings"

// Severity classifies how serious a shop violation is.
type Severity string

const (
	SeverityLevel1 Severity = "LEVEL_1"
	SeverityLevel2 Severity = "LEVEL_2"
	SeverityLevel3 Severity = "LEVEL_3"
	SeverityLevel4 Severity = "LEVEL_4"
)

// penaltyTable maps each severity to the magnitude of its score penalty.
var penaltyTable = map[Severity]float64{ //nolint:gochecknoglobals // -
	SeverityLevel1: 0.5,
	SeverityLevel2: 1.0,
	SeverityLevel3: 1.5,
	SeverityLevel4: 2.0,
}

// PenaltyForSeverity returns the penalty magnitude for a severity level.
// Unknown levels get the level-1 magnitude. The value is positive; callers
// negate it when applying the penalty.
func PenaltyForSeverity(s Severity) float64 {
	if penalty, ok := penaltyTable[s]; ok {
		return penalty
	}
	return penaltyTable[SeverityLevel1]
}

// ParseSeverity normalizes user input such as "level_3", " LEVEL_3 " or "3".
// Unrecognized input is returned upper-cased and still resolves to the
// level-1 penalty.
func ParseSeverity(input string) Severity {
	s := strings.ToUpper(strings.TrimSpace(input))
	if len(s) == 1 && s[0] >= '1' && s[0] <= '4' {
		s = "LEVEL_" + s
	}
	return Severity(s)
}

// IsKnown reports whether the severity is one of the defined levels.
func (s Severity) IsKnown() bool {
	_, ok := penaltyTable[s]
	return ok
}
