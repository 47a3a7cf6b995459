package review

import (
	"fmt"
	"strings"
)

// Operation is the closed set of review operations. Dispatch rejects
// anything outside this set instead of falling through a string lookup.
type Operation string

const (
	OpReview               Operation = "review"
	OpAnalyze              Operation = "analyze"
	OpSuggest              Operation = "suggest"
	OpValidateArchitecture Operation = "validate-architecture"
	OpHistory              Operation = "history"
)

// Operations lists every exposed operation.
func Operations() []Operation {
	return []Operation{OpReview, OpAnalyze, OpSuggest, OpValidateArchitecture, OpHistory}
}

// Focus values accepted by the operations. Empty means general.
var validFocus = map[string]bool{
	"":             true,
	"general":      true,
	"security":     true,
	"performance":  true,
	"style":        true,
	"architecture": true,
}

// promptPreambles are static configuration data: the instruction each
// operation sends ahead of the file content.
var promptPreambles = map[Operation]string{
	OpReview: "You are a senior engineer reviewing a colleague's code. " +
		"Point out bugs, risky patterns and unclear naming. Be specific and cite line numbers where possible.",
	OpAnalyze: "Analyze the following code. Describe its structure, its responsibilities, " +
		"notable dependencies and any complexity hot spots.",
	OpSuggest: "Propose one concrete, high-value improvement to the following code. " +
		"Wrap the exact current code in ---BEFORE--- / ---END-BEFORE--- and your replacement " +
		"in ---AFTER--- / ---END-AFTER---, each marker on its own line, and explain the change around the blocks.",
	OpValidateArchitecture: "Evaluate the following code against common architectural principles: " +
		"separation of concerns, dependency direction, error handling strategy and testability. " +
		"Call out violations and what they cost.",
}

// suggestionMarkerHint is appended to every analysis prompt so the output
// stays parseable when the model volunteers a concrete change.
const suggestionMarkerHint = "If you include a concrete code change, wrap the current code in " +
	"---BEFORE--- / ---END-BEFORE--- and the replacement in ---AFTER--- / ---END-AFTER---."

// buildPrompt assembles the full natural-language prompt for one request.
// All free-text pieces arrive already sanitized.
func buildPrompt(op Operation, language, userContext, focus, fileName, content string) string {
	var b strings.Builder

	b.WriteString(promptPreambles[op])
	b.WriteString("\n\n")

	if focus != "" && focus != "general" {
		fmt.Fprintf(&b, "Focus the %s on: %s.\n", op, focus)
	}
	if userContext != "" {
		fmt.Fprintf(&b, "Additional context from the requester: %s\n", userContext)
	}
	fmt.Fprintf(&b, "\nFile: %s\nLanguage: %s\n\n", fileName, language)

	b.WriteString("```\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")

	if op != OpSuggest {
		b.WriteString(suggestionMarkerHint)
		b.WriteString("\n")
	}

	return b.String()
}
