package service

import (
	"regexp"
	"strings"

	"github.com/civicdesk/civicdesk/internal/apperr"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone strips common separators and validates the digits. The
// result is the identity key for citizens and OTP challenges.
func NormalizePhone(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", apperr.New(apperr.InvalidInput, "phone_number is required")
	}
	p = phoneSeparators.Replace(p)
	if !phonePattern.MatchString(p) {
		return "", apperr.New(apperr.InvalidInput, "phone_number is not a valid phone number")
	}
	return p, nil
}
