package analysis

import (
	"regexp"
	"strings"
)

var resultMarkers = []string{"分析結果:", "分析結果："}

var (
	headingLine     = regexp.MustCompile(`(?m)^#.*$`)
	numberedItem    = regexp.MustCompile(`(?m)^\d+\.\s`)
	hyphenItem      = regexp.MustCompile(`(?m)^-\s`)
	bracketedNote   = regexp.MustCompile(`\[.*?\]`)
	parentheticNote = regexp.MustCompile(`（.*?）`)
	blankRun        = regexp.MustCompile(`\n{3,}`)
	messageCount    = regexp.MustCompile(`(\d+)件のメッセージ`)
)

// unknownCount is reported when the model did not state a message count.
const unknownCount = "複数"

// Clean turns a raw analysis reply into the text spliced into persona
// prompts: only the part after the result heading, without headings,
// template artifacts or runs of blank lines, with list items as "・".
func Clean(raw string) string {
	cleaned := raw
	for _, marker := range resultMarkers {
		if _, after, ok := strings.Cut(cleaned, marker); ok {
			cleaned = strings.TrimSpace(after)
			break
		}
	}

	cleaned = headingLine.ReplaceAllString(cleaned, "")
	cleaned = numberedItem.ReplaceAllString(cleaned, "・")
	cleaned = hyphenItem.ReplaceAllString(cleaned, "・")
	cleaned = bracketedNote.ReplaceAllString(cleaned, "")
	cleaned = parentheticNote.ReplaceAllString(cleaned, "")
	cleaned = blankRun.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// CountMessages extracts the reported "N件のメッセージ" count from a raw
// reply.
func CountMessages(raw string) string {
	if m := messageCount.FindStringSubmatch(raw); len(m) > 1 {
		return m[1]
	}
	return unknownCount
}
