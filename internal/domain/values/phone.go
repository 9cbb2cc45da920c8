package values

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PhoneNumber represents a validated phone number value object
type PhoneNumber struct {
	number string // Stored in E.164 format (+923001234567)
}

// E.164 format regex: + followed by up to 15 digits
var e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// NewPhoneNumber creates a new PhoneNumber value object with validation
func NewPhoneNumber(number string) (PhoneNumber, error) {
	if number == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty")
	}

	cleaned := cleanPhoneNumber(number)
	if !e164Regex.MatchString(cleaned) {
		return PhoneNumber{}, fmt.Errorf("phone number must be in E.164 format")
	}

	return PhoneNumber{number: cleaned}, nil
}

// MustNewPhoneNumber creates PhoneNumber and panics on error (for tests)
func MustNewPhoneNumber(number string) PhoneNumber {
	p, err := NewPhoneNumber(number)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the E.164 form. Never log it; use Masked.
func (p PhoneNumber) String() string {
	return p.number
}

// Masked returns the number with everything but the last four digits hidden
func (p PhoneNumber) Masked() string {
	return MaskPhone(p.number)
}

// IsEmpty checks if the phone number is empty
func (p PhoneNumber) IsEmpty() bool {
	return p.number == ""
}

// MarshalJSON emits the masked form so a phone number cannot leak through
// a serialized payload by accident.
func (p PhoneNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Masked())
}

func cleanPhoneNumber(number string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(number) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
