package review

import (
	"errors"
	"fmt"

	"github.com/iamrichardD/claude-gemini-mcp-server/internal/gemini"
	"github.com/iamrichardD/claude-gemini-mcp-server/internal/sandbox"
)

// Category is the machine-readable classification of a pipeline failure.
// It survives the human-readable wrapping at the pipeline boundary so
// callers and tests can branch on it.
type Category string

const (
	CategoryInvalidInput     Category = "invalid-input"
	CategoryPathTraversal    Category = "path-traversal"
	CategoryUnsupportedType  Category = "unsupported-type"
	CategoryFileTooLarge     Category = "file-too-large"
	CategoryNotAFile         Category = "not-a-file"
	CategoryBinaryContent    Category = "binary-content"
	CategoryToolUnavailable  Category = "tool-unavailable"
	CategoryTimeout          Category = "subprocess-timeout"
	CategoryNonZeroExit      Category = "subprocess-non-zero-exit"
	CategorySpawnError       Category = "subprocess-spawn-error"
	CategoryOutputTooLarge   Category = "output-too-large"
	CategoryUnknownOperation Category = "unknown-operation"
)

// Error is the single wrap applied at the pipeline boundary. The message
// follows the "<operation> failed: <underlying>" template; the category
// and the wrapped error stay available for diagnostics.
type Error struct {
	Op       string
	Category Category
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf extracts the failure category from a (possibly wrapped)
// pipeline error. Non-pipeline errors report an empty category.
func CategoryOf(err error) Category {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// classifyValidation maps sandbox sentinels onto the taxonomy. Anything
// unrecognized is treated as invalid input.
func classifyValidation(err error) Category {
	switch {
	case errors.Is(err, sandbox.ErrPathTraversal):
		return CategoryPathTraversal
	case errors.Is(err, sandbox.ErrUnsupportedType):
		return CategoryUnsupportedType
	case errors.Is(err, sandbox.ErrNotAFile):
		return CategoryNotAFile
	case errors.Is(err, sandbox.ErrFileTooLarge):
		return CategoryFileTooLarge
	case errors.Is(err, sandbox.ErrBinaryContent):
		return CategoryBinaryContent
	default:
		return CategoryInvalidInput
	}
}

// classifyOutcome maps a failed subprocess outcome onto the taxonomy.
func classifyOutcome(reason gemini.FailureReason) Category {
	switch reason {
	case gemini.ReasonTimeout:
		return CategoryTimeout
	case gemini.ReasonNonZeroExit:
		return CategoryNonZeroExit
	case gemini.ReasonOutputTooLarge:
		return CategoryOutputTooLarge
	default:
		return CategorySpawnError
	}
}
