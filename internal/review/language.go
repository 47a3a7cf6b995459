package review

import (
	"path/filepath"
	"strings"
)

// languageBySuffix tags prompts and session entries with a human-readable
// language name. Unknown suffixes fall back to "plain text".
var languageBySuffix = map[string]string{
	".go":    "Go",
	".js":    "JavaScript",
	".jsx":   "JavaScript (JSX)",
	".ts":    "TypeScript",
	".tsx":   "TypeScript (TSX)",
	".py":    "Python",
	".rb":    "Ruby",
	".java":  "Java",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".hpp":   "C++",
	".cs":    "C#",
	".rs":    "Rust",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".sh":    "shell",
	".sql":   "SQL",
	".html":  "HTML",
	".css":   "CSS",
	".json":  "JSON",
	".yaml":  "YAML",
	".yml":   "YAML",
	".toml":  "TOML",
	".md":    "Markdown",
}

// DetectLanguage maps a file's suffix to a language name.
func DetectLanguage(path string) string {
	if lang, ok := languageBySuffix[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "plain text"
}
