package review

import (
	"regexp"
	"strings"
)

// The gemini prompt asks for concrete changes wrapped in these markers,
// each on its own line. The boundary newlines belong to the delimiter,
// not the captured content.
var (
	beforeBlockRe = regexp.MustCompile(`(?s)---BEFORE---\n(.*?)\n---END-BEFORE---`)
	afterBlockRe  = regexp.MustCompile(`(?s)---AFTER---\n(.*?)\n---END-AFTER---`)
)

// Suggestion is a concrete before/after change extracted from the tool's
// output, plus the surrounding explanation.
type Suggestion struct {
	Explanation string
	Before      string
	After       string
}

// ExtractSuggestion scans text for both delimited blocks. It returns nil
// unless both blocks are present and non-empty after trimming; a partial
// or degenerate match is "no suggestion", never an error. When a
// suggestion is found, the explanation is the text with both blocks
// removed and surrounding whitespace trimmed.
func ExtractSuggestion(text string) *Suggestion {
	beforeMatch := beforeBlockRe.FindStringSubmatch(text)
	afterMatch := afterBlockRe.FindStringSubmatch(text)
	if beforeMatch == nil || afterMatch == nil {
		return nil
	}

	before := beforeMatch[1]
	after := afterMatch[1]
	if strings.TrimSpace(before) == "" || strings.TrimSpace(after) == "" {
		return nil
	}

	explanation := beforeBlockRe.ReplaceAllString(text, "")
	explanation = afterBlockRe.ReplaceAllString(explanation, "")

	return &Suggestion{
		Explanation: strings.TrimSpace(explanation),
		Before:      before,
		After:       after,
	}
}
