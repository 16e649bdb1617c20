package schema

import (
	"strconv"
	"strings"

	"cbcrcli/pkg/contracts/domain"
)

// missingTokens are cell values treated as absent
var missingTokens = map[string]bool{
	"":     true,
	"none": true,
	"nan":  true,
	"n/a":  true,
	"na":   true,
	"null": true,
	"-":    true,
}

// IsMissingToken reports whether a raw cell stands for an absent value
func IsMissingToken(raw string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(raw))]
}

// ParseNumeric converts a raw cell into a numeric value. Thousands
// separators are tolerated. Malformed cells coerce to absent instead of
// failing the row.
func ParseNumeric(raw string) domain.Value {
	s := strings.TrimSpace(raw)
	if missingTokens[strings.ToLower(s)] {
		return domain.Value{}
	}

	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.Value{}
	}
	return domain.Num(f)
}
