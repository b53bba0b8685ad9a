// Package address canonicalizes free-text street addresses so textual
// variants of the same address collapse to one key.
package address

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	streetReplacements = map[string]string{
		"STREET":    "ST",
		"AVENUE":    "AVE",
		"AV":        "AVE",
		"ROAD":      "RD",
		"DRIVE":     "DR",
		"PLACE":     "PL",
		"LANE":      "LN",
		"COURT":     "CT",
		"CRESCENT":  "CRES",
		"BOULEVARD": "BLVD",
		"PARADE":    "PDE",
		"TERRACE":   "TCE",
		"CIRCUIT":   "CCT",
		"CLOSE":     "CL",
		"ESPLANADE": "ESP",
		"HIGHWAY":   "HWY",
		"GROVE":     "GR",
		"SQUARE":    "SQ",
		"NORTH":     "N",
		"SOUTH":     "S",
		"EAST":      "E",
		"WEST":      "W",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	// keep digits, letters, "/" (unit/street-number separator) and commas
	punctRegex   = regexp.MustCompile(`[^A-Z0-9/, ]`)
	ordinalRegex = regexp.MustCompile(`^(\d+)(?:ST|ND|RD|TH)$`)
)

var ordinalWords = map[string]int{
	"FIRST": 1, "SECOND": 2, "THIRD": 3, "FOURTH": 4, "FIFTH": 5,
	"SIXTH": 6, "SEVENTH": 7, "EIGHTH": 8, "NINTH": 9, "TENTH": 10,
	"ELEVENTH": 11, "TWELFTH": 12,
}

// Normalize canonicalizes an address: uppercase, punctuation stripped,
// street-type words collapsed to one abbreviation per type. Idempotent.
func Normalize(raw string) string {
	addr := strings.ToUpper(strings.TrimSpace(raw))
	addr = punctRegex.ReplaceAllString(addr, " ")

	segments := strings.Split(addr, ",")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		tokens := strings.Fields(seg)
		for i, tok := range tokens {
			if abbrev, ok := streetReplacements[tok]; ok {
				tokens[i] = abbrev
			}
		}
		seg = strings.Join(tokens, " ")
		if seg != "" {
			out = append(out, seg)
		}
	}

	joined := strings.Join(out, ", ")
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(joined, " "))
}

// StreetPart returns the normalized address with the suburb segment (text
// after the last comma) stripped, for street-level comparisons.
func StreetPart(raw string) string {
	n := Normalize(raw)
	if idx := strings.LastIndex(n, ","); idx >= 0 {
		n = strings.TrimSpace(n[:idx])
	}
	return n
}

// Suburb extracts the suburb segment (text after the last comma) of an
// address, or "" when the address has no suburb segment.
func Suburb(raw string) string {
	n := Normalize(raw)
	idx := strings.LastIndex(n, ",")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(n[idx+1:])
}

// StreetKeyword strips unit/number prefixes from the street part and returns
// the first street-name token of at least minimum length, for adjacency
// comparisons. Returns "" when no usable token remains.
func StreetKeyword(raw string) string {
	tokens := strings.Fields(StreetPart(raw))
	for _, tok := range tokens {
		if hasDigit(tok) || strings.Contains(tok, "/") {
			continue
		}
		if len(tok) >= 3 {
			return tok
		}
	}
	return ""
}

// AvenueOrdinal reports the ordinal of a numbered-avenue street name
// ("FOURTH AVE", "4TH AVE") and whether the street follows that scheme.
func AvenueOrdinal(raw string) (int, bool) {
	tokens := strings.Fields(StreetPart(raw))
	if len(tokens) < 2 {
		return 0, false
	}
	last := tokens[len(tokens)-1]
	if last != "AVE" {
		return 0, false
	}
	name := tokens[len(tokens)-2]
	if n, ok := ordinalWords[name]; ok {
		return n, true
	}
	if m := ordinalRegex.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
