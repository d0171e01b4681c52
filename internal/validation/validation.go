package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/tgordeev/weather-balance-service/internal/models"
)

// ErrCityEmpty is returned when the city is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city is required")

// ErrCityTooShort is returned when city length is below the minimum.
var ErrCityTooShort = errors.New("city too short")

// ErrCityTooLong is returned when city length exceeds the maximum.
var ErrCityTooLong = errors.New("city too long")

// ErrCityInvalidChars is returned when city contains disallowed characters.
var ErrCityInvalidChars = errors.New("city contains invalid characters")

// ErrUnknownOperation is returned when the operation string is neither
// increase nor decrease.
var ErrUnknownOperation = errors.New("operation must be increase or decrease")

// ValidateCity trims the input, enforces length bounds (minLen, maxLen in
// runes), and restricts to letters (Unicode), digits, space, comma, hyphen.
// Returns the trimmed string or an error suitable for 400 responses.
// Normalization (lowercase) is left to the service layer.
func ValidateCity(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrCityEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrCityTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

// ParseOperation converts the loosely-typed operation string from the
// request into a typed Operation, case-insensitively.
func ParseOperation(input string) (models.Operation, error) {
	switch models.Operation(strings.ToLower(strings.TrimSpace(input))) {
	case models.OperationIncrease:
		return models.OperationIncrease, nil
	case models.OperationDecrease:
		return models.OperationDecrease, nil
	default:
		return "", ErrUnknownOperation
	}
}

// isAllowedCityRune returns true for letters (Unicode), digits, space, comma, hyphen.
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-':
		return true
	}
	return false
}
