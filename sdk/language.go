package sdk

import (
	"errors"
	"fmt"
)

// Language identifies a sandbox interpreter language.
type Language string

// Supported languages.
const (
	Python3    Language = "python3"
	JavaScript Language = "javascript"
)

// ErrUnsupportedLanguage indicates a language no generator exists for.
var ErrUnsupportedLanguage = errors.New("sdk: unsupported language")

// ParseLanguage normalizes a language string, accepting common aliases.
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case Python3, "python":
		return Python3, nil
	case JavaScript, "js", "node":
		return JavaScript, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

// FileName returns the prelude file name for the language.
func (l Language) FileName() string {
	switch l {
	case Python3:
		return "sdk.py"
	case JavaScript:
		return "sdk.js"
	}
	return ""
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == Python3 || l == JavaScript
}
