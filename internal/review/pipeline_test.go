package review

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamrichardD/claude-gemini-mcp-server/internal/config"
	"github.com/iamrichardD/claude-gemini-mcp-server/internal/session"
)

// writeStubTool drops an executable sh script standing in for the gemini
// CLI. Every stub must answer --version for the availability probe.
func writeStubTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub tools are sh scripts")
	}
	path := filepath.Join(t.TempDir(), "gemini-stub")
	full := "#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then echo 0.0.1; exit 0; fi\n" + script
	require.NoError(t, os.WriteFile(path, []byte(full), 0755))
	return path
}

func testPipeline(t *testing.T, stub string, mutate func(*config.Config)) (*Pipeline, *session.Log, string) {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Sandbox.RootDir = root
	cfg.Gemini.Binary = stub
	cfg.Gemini.Timeout = "10s"
	cfg.Gemini.ProbeTimeout = "5s"
	if mutate != nil {
		mutate(cfg)
	}

	log := session.NewLog()
	p, err := New(cfg, nil, log)
	require.NoError(t, err)
	return p, log, root
}

func writeSource(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
}

func TestPipeline_ReviewSuccess(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, log, root := testPipeline(t, stub, nil)
	writeSource(t, root, "a.js", "console.log(1)")

	res, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "./a.js"})
	require.NoError(t, err)

	assert.Contains(t, res.Text, "OK")
	assert.Nil(t, res.Suggestion)

	require.Equal(t, 1, log.Len())
	entry := log.Entries()[0]
	assert.True(t, entry.Success)
	assert.Equal(t, "review", entry.Operation)
	assert.Equal(t, "./a.js", entry.TargetFile)
	assert.Equal(t, "JavaScript", entry.Language)
	assert.False(t, entry.Actionable)
}

func TestPipeline_PathTraversal(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "analysis-ran")
	stub := writeStubTool(t, fmt.Sprintf("touch %s\necho OK\n", marker))
	p, log, _ := testPipeline(t, stub, nil)

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "../../etc/passwd"})
	require.Error(t, err)

	assert.Equal(t, CategoryPathTraversal, CategoryOf(err))
	assert.Contains(t, err.Error(), "review failed:")

	// The analysis subprocess must never run for a rejected path.
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "analysis subprocess ran despite traversal rejection")

	require.Equal(t, 1, log.Len())
	assert.False(t, log.Entries()[0].Success)
	assert.Contains(t, log.Entries()[0].ErrorMessage, "failed:")
}

func TestPipeline_SuggestionRendering(t *testing.T) {
	stub := writeStubTool(t, `cat <<'EOF'
Prefer strict equality here.
---BEFORE---
if (a == b) {}
---END-BEFORE---
---AFTER---
if (a === b) {}
---END-AFTER---
EOF
`)
	p, log, root := testPipeline(t, stub, nil)
	writeSource(t, root, "cmp.js", "if (a == b) {}")

	res, err := p.Handle(context.Background(), Request{Operation: OpSuggest, FilePath: "cmp.js"})
	require.NoError(t, err)

	require.NotNil(t, res.Suggestion)
	assert.Equal(t, "if (a == b) {}", res.Suggestion.Before)
	assert.Equal(t, "if (a === b) {}", res.Suggestion.After)
	assert.Contains(t, res.Text, "Prefer strict equality here.")
	assert.Contains(t, res.Text, "Current code:")
	assert.Contains(t, res.Text, "Suggested change:")

	require.Equal(t, 1, log.Len())
	assert.True(t, log.Entries()[0].Actionable)
}

func TestPipeline_StderrBecomesWarning(t *testing.T) {
	stub := writeStubTool(t, "echo result\necho 'deprecated flag' >&2\n")
	p, _, root := testPipeline(t, stub, nil)
	writeSource(t, root, "w.go", "package w\n")

	res, err := p.Handle(context.Background(), Request{Operation: OpAnalyze, FilePath: "w.go"})
	require.NoError(t, err)

	assert.Equal(t, "deprecated flag", res.Warning)
	assert.Contains(t, res.Text, "Warnings from gemini:")
}

func TestPipeline_BinaryFileRejected(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "analysis-ran")
	stub := writeStubTool(t, fmt.Sprintf("touch %s\necho OK\n", marker))
	p, _, root := testPipeline(t, stub, nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.go"), []byte{'p', 0x00, 0x01, 0x02}, 0644))

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "blob.go"})
	require.Error(t, err)
	assert.Equal(t, CategoryBinaryContent, CategoryOf(err))

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipeline_FileTooLarge(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, _, root := testPipeline(t, stub, func(c *config.Config) {
		c.Sandbox.MaxFileSize = 8
	})
	writeSource(t, root, "big.go", "package far too large\n")

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "big.go"})
	require.Error(t, err)
	assert.Equal(t, CategoryFileTooLarge, CategoryOf(err))
}

func TestPipeline_UnsupportedSuffix(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, _, root := testPipeline(t, stub, nil)
	writeSource(t, root, "a.exe", "MZ")

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "a.exe"})
	require.Error(t, err)
	assert.Equal(t, CategoryUnsupportedType, CategoryOf(err))
}

func TestPipeline_MissingFile(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, _, _ := testPipeline(t, stub, nil)

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "ghost.go"})
	require.Error(t, err)
	assert.Equal(t, CategoryNotAFile, CategoryOf(err))
}

func TestPipeline_InvalidInputs(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, _, root := testPipeline(t, stub, nil)
	writeSource(t, root, "ok.go", "package ok\n")

	t.Run("empty path", func(t *testing.T) {
		_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: ""})
		require.Error(t, err)
		assert.Equal(t, CategoryInvalidInput, CategoryOf(err))
	})

	t.Run("context too long", func(t *testing.T) {
		_, err := p.Handle(context.Background(), Request{
			Operation: OpReview,
			FilePath:  "ok.go",
			Context:   strings.Repeat("x", 1001),
		})
		require.Error(t, err)
		assert.Equal(t, CategoryInvalidInput, CategoryOf(err))
	})

	t.Run("unknown focus", func(t *testing.T) {
		_, err := p.Handle(context.Background(), Request{
			Operation: OpReview,
			FilePath:  "ok.go",
			Focus:     "vibes",
		})
		require.Error(t, err)
		assert.Equal(t, CategoryInvalidInput, CategoryOf(err))
	})
}

func TestPipeline_ToolUnavailable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	p, log, root := testPipeline(t, "/nonexistent/gemini", nil)
	writeSource(t, root, "ok.go", "package ok\n")

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "ok.go"})
	require.Error(t, err)
	assert.Equal(t, CategoryToolUnavailable, CategoryOf(err))
	assert.Equal(t, 1, log.Len())
}

func TestPipeline_NonZeroExit(t *testing.T) {
	stub := writeStubTool(t, "echo 'quota exceeded' >&2\nexit 2\n")
	p, _, root := testPipeline(t, stub, nil)
	writeSource(t, root, "ok.go", "package ok\n")

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "ok.go"})
	require.Error(t, err)
	assert.Equal(t, CategoryNonZeroExit, CategoryOf(err))
	assert.Contains(t, err.Error(), "exited with code 2")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestPipeline_Timeout(t *testing.T) {
	stub := writeStubTool(t, "sleep 5\necho late\n")
	p, _, root := testPipeline(t, stub, func(c *config.Config) {
		c.Gemini.Timeout = "150ms"
	})
	writeSource(t, root, "ok.go", "package ok\n")

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "ok.go"})
	require.Error(t, err)
	assert.Equal(t, CategoryTimeout, CategoryOf(err))
}

func TestPipeline_UnknownOperation(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, _, _ := testPipeline(t, stub, nil)

	_, err := p.Handle(context.Background(), Request{Operation: Operation("deploy"), FilePath: "a.go"})
	require.Error(t, err)
	assert.Equal(t, CategoryUnknownOperation, CategoryOf(err))
}

func TestPipeline_History(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, log, root := testPipeline(t, stub, nil)
	writeSource(t, root, "a.go", "package a\n")

	_, err := p.Handle(context.Background(), Request{Operation: OpReview, FilePath: "a.go"})
	require.NoError(t, err)

	res, err := p.Handle(context.Background(), Request{Operation: OpHistory})
	require.NoError(t, err)

	assert.Contains(t, res.Text, "a.go")
	assert.Contains(t, res.Text, "Last success:")
	assert.Contains(t, res.Text, "review")

	// The history invocation records itself too, after rendering.
	assert.Equal(t, 2, log.Len())
	assert.Equal(t, "history", log.Entries()[1].Operation)
}

func TestPipeline_HistoryEmpty(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, _, _ := testPipeline(t, stub, nil)

	res, err := p.Handle(context.Background(), Request{Operation: OpHistory})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "No operations recorded yet.")
}

func TestPipeline_LanguageOverride(t *testing.T) {
	stub := writeStubTool(t, "echo OK\n")
	p, log, root := testPipeline(t, stub, nil)
	writeSource(t, root, "conf.yml", "key: value\n")

	_, err := p.Handle(context.Background(), Request{
		Operation: OpAnalyze,
		FilePath:  "conf.yml",
		Language:  "Ansible",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ansible", log.Entries()[0].Language)
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"main.go":     "Go",
		"app.TS":      "TypeScript",
		"script.py":   "Python",
		"unknown.xyz": "plain text",
		"noext":       "plain text",
	}
	for path, want := range cases {
		if got := DetectLanguage(path); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(OpReview, "Go", "check error handling", "security", "pkg/a.go", "package a")

	assert.Contains(t, prompt, "Focus the review on: security.")
	assert.Contains(t, prompt, "check error handling")
	assert.Contains(t, prompt, "File: pkg/a.go")
	assert.Contains(t, prompt, "Language: Go")
	assert.Contains(t, prompt, "package a")
	assert.Contains(t, prompt, "---BEFORE---")
}
