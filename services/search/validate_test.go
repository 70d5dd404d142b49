package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	query, err := Validate(RawParams{Make: "Honda", Model: "Civic"})
	require.NoError(t, err)
	require.Equal(t, "Honda", query.Make)
	require.Equal(t, "Civic", query.Model)
	require.Equal(t, 30000, query.MaxPrice)
	require.Equal(t, 200000, query.MaxMileage)
	require.Equal(t, "milwaukee", query.Location)
	require.Equal(t, "53202", query.ZipCode)
	require.Zero(t, query.MinYear)
	require.Zero(t, query.MaxYear)
}

func TestValidateCoercesStringNumbers(t *testing.T) {
	query, err := Validate(RawParams{
		MaxPrice:   "15000",
		MaxMileage: float64(90000),
		MinYear:    "2015",
		MaxYear:    float64(2022),
	})
	require.NoError(t, err)
	require.Equal(t, 15000, query.MaxPrice)
	require.Equal(t, 90000, query.MaxMileage)
	require.Equal(t, 2015, query.MinYear)
	require.Equal(t, 2022, query.MaxYear)
}

func TestValidateAccumulatesAllViolations(t *testing.T) {
	_, err := Validate(RawParams{
		MaxPrice: float64(-5),
		MinYear:  float64(1850),
		ZipCode:  "5320a",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_price cannot be negative")
	require.Contains(t, err.Error(), "min_year must be between 1990 and 2030")
	require.Contains(t, err.Error(), "zip_code must contain only digits")
}

func TestValidateRejectsNonNumeric(t *testing.T) {
	_, err := Validate(RawParams{MaxPrice: "cheap", MaxMileage: true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_price must be an integer")
	require.Contains(t, err.Error(), "max_mileage must be an integer")
}

func TestValidateYearBounds(t *testing.T) {
	for _, year := range []float64{1990, 2030} {
		query, err := Validate(RawParams{MinYear: year})
		require.NoError(t, err)
		require.Equal(t, int(year), query.MinYear)
	}
	for _, year := range []float64{1989, 2031} {
		_, err := Validate(RawParams{MaxYear: year})
		require.Error(t, err)
	}
}

func TestValidateNormalizesLocation(t *testing.T) {
	query, err := Validate(RawParams{Location: "  Chicago ", ZipCode: " 60601 "})
	require.NoError(t, err)
	require.Equal(t, "chicago", query.Location)
	require.Equal(t, "60601", query.ZipCode)
}

func TestValidateEmptyStringsKeepDefaults(t *testing.T) {
	query, err := Validate(RawParams{MaxPrice: "", MinYear: ""})
	require.NoError(t, err)
	require.Equal(t, 30000, query.MaxPrice)
	require.Zero(t, query.MinYear)
}
