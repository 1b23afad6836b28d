package moderation

import (
	_ "embed"
	"strings"
)

//go:embed censored/en.txt
var defaultWordList string

// DefaultWords returns the embedded English word list, comments and blank
// lines stripped.
func DefaultWords() []string {
	var words []string
	for _, line := range strings.Split(defaultWordList, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words
}
