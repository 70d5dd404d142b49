package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/vehicle"
)

const (
	defaultMaxPrice   = 30000
	defaultMaxMileage = 200000
	defaultLocation   = "milwaukee"
	defaultZipCode    = "53202"

	minRequestableYear = 1990
	maxRequestableYear = 2030
)

// RawParams is the not-yet-trusted request body. Numeric fields are `any`
// because clients send both JSON numbers and quoted strings.
type RawParams struct {
	Make       string `json:"make"`
	Model      string `json:"model"`
	MaxPrice   any    `json:"max_price"`
	MaxMileage any    `json:"max_mileage"`
	MinYear    any    `json:"min_year"`
	MaxYear    any    `json:"max_year"`
	Location   string `json:"location"`
	ZipCode    string `json:"zip_code"`
}

func coerceInt(v any) (int, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return int(n), true, nil
	case int:
		return n, true, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, false, nil
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false, errors.New("not an integer")
		}
		return parsed, true, nil
	default:
		return 0, false, errors.New("not an integer")
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Validate normalizes raw request parameters into an immutable Query.
// Every violation found is accumulated into one semicolon-joined error so
// a caller can fix all of them in a single round trip.
func Validate(raw RawParams) (vehicle.Query, error) {
	var violations []string

	query := vehicle.Query{
		Make:       strings.TrimSpace(raw.Make),
		Model:      strings.TrimSpace(raw.Model),
		MaxPrice:   defaultMaxPrice,
		MaxMileage: defaultMaxMileage,
		Location:   defaultLocation,
		ZipCode:    defaultZipCode,
	}

	if n, ok, err := coerceInt(raw.MaxPrice); err != nil {
		violations = append(violations, "max_price must be an integer")
	} else if ok {
		if n < 0 {
			violations = append(violations, "max_price cannot be negative")
		} else {
			query.MaxPrice = n
		}
	}

	if n, ok, err := coerceInt(raw.MaxMileage); err != nil {
		violations = append(violations, "max_mileage must be an integer")
	} else if ok {
		if n < 0 {
			violations = append(violations, "max_mileage cannot be negative")
		} else {
			query.MaxMileage = n
		}
	}

	if n, ok, err := coerceInt(raw.MinYear); err != nil {
		violations = append(violations, "min_year must be an integer")
	} else if ok {
		if n < minRequestableYear || n > maxRequestableYear {
			violations = append(violations, fmt.Sprintf(
				"min_year must be between %d and %d", minRequestableYear, maxRequestableYear))
		} else {
			query.MinYear = n
		}
	}

	if n, ok, err := coerceInt(raw.MaxYear); err != nil {
		violations = append(violations, "max_year must be an integer")
	} else if ok {
		if n < minRequestableYear || n > maxRequestableYear {
			violations = append(violations, fmt.Sprintf(
				"max_year must be between %d and %d", minRequestableYear, maxRequestableYear))
		} else {
			query.MaxYear = n
		}
	}

	if loc := strings.ToLower(strings.TrimSpace(raw.Location)); loc != "" {
		query.Location = loc
	}

	if zip := strings.TrimSpace(raw.ZipCode); zip != "" {
		if !isAllDigits(zip) {
			violations = append(violations, "zip_code must contain only digits")
		} else {
			query.ZipCode = zip
		}
	}

	if len(violations) > 0 {
		return vehicle.Query{}, errors.New(strings.Join(violations, "; "))
	}
	return query, nil
}
