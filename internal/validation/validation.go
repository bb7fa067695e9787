package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrCityEmpty is returned when the city name is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city is required")

// ErrCityTooLong is returned when the city name exceeds the maximum length.
var ErrCityTooLong = errors.New("city name too long")

// ErrCityInvalidChars is returned when the city name contains disallowed characters.
var ErrCityInvalidChars = errors.New("city name contains invalid characters")

// ErrCoordinatesMissing is returned when only one of lat/lon is supplied.
var ErrCoordinatesMissing = errors.New("both lat and lon are required")

// ErrCoordinatesInvalid is returned when lat/lon fail to parse or fall outside
// the valid geographic ranges.
var ErrCoordinatesInvalid = errors.New("coordinates out of range")

// maxCityRunes bounds city names; the longest real place names stay well under this.
const maxCityRunes = 80

// ValidateCity trims the input and restricts it to characters that appear in
// place names: letters (Unicode, so diacritics pass), digits, space, comma,
// period, apostrophe, hyphen. Returns the trimmed string or an error suitable
// for 400 INVALID_LOCATION responses. Normalization (e.g. lowercase for cache
// keys) is left to the service layer.
func ValidateCity(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityEmpty
	}
	if len(r) > maxCityRunes {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

// ParseCoordinates parses and range-checks latitude and longitude query values.
func ParseCoordinates(latStr, lonStr string) (lat, lon float64, err error) {
	if strings.TrimSpace(latStr) == "" || strings.TrimSpace(lonStr) == "" {
		return 0, 0, ErrCoordinatesMissing
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, ErrCoordinatesInvalid
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, ErrCoordinatesInvalid
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, ErrCoordinatesInvalid
	}
	return lat, lon, nil
}

// isAllowedCityRune returns true for letters (Unicode), digits, and the
// punctuation that occurs in place names.
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '.', '\'', '-':
		return true
	}
	return false
}
