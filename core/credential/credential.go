// Package credential loads the elevation-service API key from disk.
package credential

import (
	"os"
	"strings"

	"topofetch/internal/errors"
)

const visiblePrefix = 4

// Token is an opaque access key. Its String form is redacted so it can be
// passed to loggers without leaking.
type Token struct {
	value string
}

// Load reads the key from path, stripping trailing whitespace.
func Load(path string) (Token, error) {
	if path == "" {
		return Token{}, errors.Credential("no API key file configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Token{}, errors.Credential("cannot read API key file", err).WithContext("path", path)
	}
	v := strings.TrimRight(string(data), " \t\r\n")
	if v == "" {
		return Token{}, errors.Credential("API key file is empty", nil).WithContext("path", path)
	}
	return Token{value: v}, nil
}

// LoadOptional returns an empty token when path does not exist, and the
// usual errors otherwise. Datasets that need a key reject the empty token later.
func LoadOptional(path string) (Token, error) {
	if path == "" {
		return Token{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Token{}, nil
	}
	return Load(path)
}

// Empty reports whether no key is held
func (t Token) Empty() bool {
	return t.value == ""
}

// Value returns the raw key. Only the fetch client should call this.
func (t Token) Value() string {
	return t.value
}

// Redacted shows a short prefix for diagnostics
func (t Token) Redacted() string {
	if t.value == "" {
		return ""
	}
	if len(t.value) <= visiblePrefix {
		return "****"
	}
	return t.value[:visiblePrefix] + "****"
}

func (t Token) String() string {
	return t.Redacted()
}
