package values

import (
	"regexp"
	"strings"
)

// MaskNationalID keeps only the last two characters of a national ID.
func MaskNationalID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) < 2 {
		return "**"
	}
	return strings.Repeat("*", 11) + id[len(id)-2:]
}

// MaskPhone keeps only the last four characters of a phone number.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) < 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}

// phoneLike matches digit runs long enough to be a subscriber number,
// with or without a leading +
var phoneLike = regexp.MustCompile(`\+?\d[\d ]{5,}\d`)

// ScrubPhones masks every phone-like number inside free text, such as a
// provider error message that echoes the dialed number.
func ScrubPhones(text string) string {
	return phoneLike.ReplaceAllStringFunc(text, func(m string) string {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
		if len(digits) < 7 {
			return m
		}
		return MaskPhone(digits)
	})
}
