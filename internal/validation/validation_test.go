package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple", "Hanoi", "Hanoi", nil},
		{"trims whitespace", "  Cần Thơ  ", "Cần Thơ", nil},
		{"diacritics", "Đà Nẵng", "Đà Nẵng", nil},
		{"comma form", "Hanoi, VN", "Hanoi, VN", nil},
		{"apostrophe and period", "St. John's", "St. John's", nil},
		{"hyphen", "Thừa Thiên-Huế", "Thừa Thiên-Huế", nil},
		{"empty", "", "", ErrCityEmpty},
		{"whitespace only", "   ", "", ErrCityEmpty},
		{"too long", strings.Repeat("a", 81), "", ErrCityTooLong},
		{"injection chars", "Hanoi<script>", "", ErrCityInvalidChars},
		{"slash", "a/b", "", ErrCityInvalidChars},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateCity(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateCity(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateCity(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	lat, lon, err := ParseCoordinates("21.0245", "105.8412")
	if err != nil {
		t.Fatalf("ParseCoordinates() error = %v", err)
	}
	if lat != 21.0245 || lon != 105.8412 {
		t.Errorf("ParseCoordinates() = %v,%v", lat, lon)
	}

	cases := []struct {
		name     string
		lat, lon string
		wantErr  error
	}{
		{"missing lon", "21.0", "", ErrCoordinatesMissing},
		{"missing lat", "", "105.8", ErrCoordinatesMissing},
		{"non numeric", "north", "105.8", ErrCoordinatesInvalid},
		{"lat out of range", "91", "105.8", ErrCoordinatesInvalid},
		{"lon out of range", "21.0", "-181", ErrCoordinatesInvalid},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseCoordinates(tt.lat, tt.lon); !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseCoordinates(%q, %q) error = %v, want %v", tt.lat, tt.lon, err, tt.wantErr)
			}
		})
	}

	// Boundary values are valid.
	if _, _, err := ParseCoordinates("-90", "180"); err != nil {
		t.Errorf("ParseCoordinates(-90, 180) error = %v, want nil", err)
	}
}
