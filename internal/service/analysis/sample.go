package analysis

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sampling bounds the analysis request size while keeping content from both
// the start and the middle of long chat logs.
const (
	sampleThreshold = 10000
	sampleHead      = 5000
	sampleHalfSpan  = 2500
	sampleSeparator = "\n...\n"
)

// Normalize strips a UTF-8 BOM, unifies line endings and applies NFC so
// exports from different platforms compare equal.
func Normalize(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}

// Sample returns text unchanged when it is at most sampleThreshold runes
// long, otherwise the first sampleHead runes and the span around the
// midpoint joined by sampleSeparator.
func Sample(text string) string {
	runes := []rune(text)
	if len(runes) <= sampleThreshold {
		return text
	}

	mid := len(runes) / 2
	var b strings.Builder
	b.WriteString(string(runes[:sampleHead]))
	b.WriteString(sampleSeparator)
	b.WriteString(string(runes[mid-sampleHalfSpan : mid+sampleHalfSpan]))
	return b.String()
}

// CountLines reports the number of lines of the corpus for progress output.
func CountLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
