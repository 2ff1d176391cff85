package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrNameEmpty is returned when a run or tag is empty or whitespace-only after trim.
var ErrNameEmpty = errors.New("name is required")

// ErrNameTooLong is returned when a run or tag exceeds the maximum length.
var ErrNameTooLong = errors.New("name too long")

// ErrNameInvalidChars is returned when a run or tag contains disallowed characters.
var ErrNameInvalidChars = errors.New("name contains invalid characters")

// ValidateRun trims the input and enforces the run naming rules: at most
// maxLen runes of letters, digits, underscore, hyphen, dot. Runs cannot
// contain slashes; those belong to tag namespaces.
func ValidateRun(input string, maxLen int) (string, error) {
	return validateName(input, maxLen, false)
}

// ValidateTag trims the input and enforces the tag naming rules: like runs,
// plus slashes for namespacing (e.g. "train/loss") and interior spaces
// (display names like "eval/my metric"). Leading and trailing spaces are
// trimmed before validation.
func ValidateTag(input string, maxLen int) (string, error) {
	return validateName(input, maxLen, true)
}

func validateName(input string, maxLen int, tagRules bool) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrNameEmpty
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrNameTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c, tagRules) {
			return "", ErrNameInvalidChars
		}
	}
	return s, nil
}

func isAllowedNameRune(r rune, tagRules bool) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case '_', '-', '.':
		return true
	case '/', ' ':
		return tagRules
	}
	return false
}
