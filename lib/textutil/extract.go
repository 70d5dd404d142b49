package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

// Tolerant field extraction out of free-form listing text. Every function
// here is total: malformed or empty input yields the neutral value, never
// an error. All four marketplace adapters share these, so selector drift
// in one source never changes how another source's numbers parse.

var priceRegex = regexp.MustCompile(`\$?\s?([\d,]+)`)
var mileageRegex = regexp.MustCompile(`(?i)([\d,]+)\s*(mi\b|miles\b|k\b)`)

// Model years are matched with a century prefix (1980-2029) to avoid
// picking up phone numbers, VIN fragments and other stray 4-digit runs.
// The upper bound will need revisiting as 2030 model years appear.
var yearRegex = regexp.MustCompile(`\b(19[89]\d|20[0-2]\d)\b`)

// mileage readings at or above this are misparses (phone numbers, zip
// codes glued to other digits), not odometers
const maxPlausibleMileage = 900_000

// ExtractPrice returns the first dollar amount found in text as a whole
// number of dollars, or 0 when nothing parsable is present.
func ExtractPrice(text string) int {
	m := priceRegex.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ExtractMileage returns the first digit run followed by a mileage unit
// token ("mi", "miles", or a "k" shorthand meaning thousands). The second
// return is false when no mileage is present or the value is implausible.
func ExtractMileage(text string) (int, bool) {
	m := mileageRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "k") {
		n *= 1000
	}
	if n >= maxPlausibleMileage {
		return 0, false
	}
	return n, true
}

// ExtractYear returns the first plausible model year in text. The second
// return is false when no year is present.
func ExtractYear(text string) (int, bool) {
	m := yearRegex.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// YearInRange reports whether a listing's extracted year falls inside an
// inclusive [min, max] filter. A bound of 0 means unbounded on that side,
// and a listing with no extracted year (ok == false) always passes.
func YearInRange(year int, ok bool, min, max int) bool {
	if !ok {
		return true
	}
	if min != 0 && year < min {
		return false
	}
	if max != 0 && year > max {
		return false
	}
	return true
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CollapseWhitespace trims a string and squeezes internal runs of
// whitespace down to single spaces.
func CollapseWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeTitle lowercases and strips all whitespace from a listing
// title, producing a comparison key for fuzzy matching.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	return whitespaceRegex.ReplaceAllString(title, "")
}
