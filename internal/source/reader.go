package source

import (
	"errors"
	"os"
	"unicode/utf8"
)

// ErrNotText is returned by ReadText for content that is not valid UTF-8.
var ErrNotText = errors.New("content is not valid UTF-8 text")

// ReadText reads a whole file as UTF-8 text. The content is returned unmodified.
func ReadText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(content) {
		return "", ErrNotText
	}
	return string(content), nil
}
