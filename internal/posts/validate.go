package posts

import "unicode"

// IsAllowedText accepts letters, numbers, punctuation, marks, spaces and
// pictographic symbols, the characters Notion slugs and tags are made of.
func IsAllowedText(value string) bool {
	if value == "" {
		return false
	}

	for _, r := range value {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsPunct(r), unicode.IsMark(r):
		case unicode.Is(unicode.Zs, r), unicode.Is(unicode.So, r), unicode.Is(unicode.Sk, r):
		case r == 0x200D || r == 0xFE0F:
		default:
			return false
		}
	}

	return true
}
