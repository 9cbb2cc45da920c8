package challenge

import (
	"strings"
	"unicode"
)

// CodeLength is the number of digits a challenge answer carries
const CodeLength = 2

// spokenDigits is the closed English and Urdu lexicon
var spokenDigits = map[string]byte{
	"zero": '0', "صفر": '0',
	"one": '1', "ایک": '1',
	"two": '2', "دو": '2',
	"three": '3', "تین": '3',
	"four": '4', "چار": '4',
	"five": '5', "پانچ": '5',
	"six": '6', "چھ": '6',
	"seven": '7', "سات": '7',
	"eight": '8', "آٹھ": '8',
	"nine": '9', "نو": '9',
}

// ExtractDigits returns at most the first CodeLength digits spoken in
// utterance. Each whitespace-separated token is lower-cased and stripped of
// surrounding punctuation, then matched against the lexicon or accepted as a
// single ASCII digit. Anything else is skipped.
func ExtractDigits(utterance string) string {
	var b strings.Builder
	b.Grow(CodeLength)

	for _, field := range strings.Fields(utterance) {
		token := strings.TrimFunc(strings.ToLower(field), isPunctuation)
		if d, ok := digitFor(token); ok {
			b.WriteByte(d)
			if b.Len() == CodeLength {
				break
			}
		}
	}

	return b.String()
}

// IsComplete reports whether digits is a full answer
func IsComplete(digits string) bool {
	return len(digits) == CodeLength
}

func digitFor(token string) (byte, bool) {
	if len(token) == 1 && token[0] >= '0' && token[0] <= '9' {
		return token[0], true
	}
	d, ok := spokenDigits[token]
	return d, ok
}

func isPunctuation(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
