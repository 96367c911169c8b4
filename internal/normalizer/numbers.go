package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d[\d.,]*`)

// ParsePrice converts an upstream price string to a decimal. The source uses
// European formatting ("12.999,00€"): thousands dots are stripped and the
// comma decimal separator becomes a period. Absent or non-numeric input
// normalizes to 0 (unknown, not free), never an error.
func ParsePrice(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, "€", "")
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// ParseNumber extracts the first numeric sequence from free text
// ("14.500 km" -> 14500). Returns 0 when nothing numeric is present.
func ParseNumber(raw string) int {
	match := numberPattern.FindString(raw)
	if match == "" {
		return 0
	}

	cleaned := strings.ReplaceAll(match, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v)
}

// ParseCount parses an availability count such as "3" or "129".
func ParseCount(raw string) int {
	return ParseNumber(raw)
}
