// Package review implements the operation pipeline: validate the request,
// read the target file, build the prompt, run the gemini CLI, parse its
// output and record the outcome. Each request moves strictly forward
// through those steps and aborts on the first failure.
package review

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iamrichardD/claude-gemini-mcp-server/internal/config"
	"github.com/iamrichardD/claude-gemini-mcp-server/internal/gemini"
	"github.com/iamrichardD/claude-gemini-mcp-server/internal/sandbox"
	"github.com/iamrichardD/claude-gemini-mcp-server/internal/session"
)

// Request carries the already-deserialized arguments for one operation.
// The transport builds it; nothing here depends on the wire format.
type Request struct {
	Operation Operation
	FilePath  string
	Context   string
	Focus     string
	Language  string

	// Limit applies to the history operation only.
	Limit int
}

// Result is what the transport renders back to the caller. Text is always
// populated; Suggestion and Warning are advisory extras.
type Result struct {
	Text       string
	Suggestion *Suggestion
	Warning    string
}

// Pipeline composes validation, the gemini subprocess and response
// shaping. One Pipeline serves all concurrent requests; per-request state
// lives on the stack.
type Pipeline struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions *session.Log
	runner   *gemini.Runner
	prober   *gemini.Prober
	rootDir  string
}

// New builds a pipeline from injected configuration and session log.
func New(cfg *config.Config, logger *zap.Logger, sessions *session.Log) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rootDir, err := cfg.ResolveRoot()
	if err != nil {
		return nil, err
	}

	runner := gemini.NewRunner(logger)
	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		runner:   runner,
		prober:   gemini.NewProber(runner, logger, cfg.Gemini.Binary, cfg.GetProbeTimeout(), cfg.Gemini.AllowedEnvVars),
		rootDir:  rootDir,
	}, nil
}

// RootDir returns the resolved sandbox root.
func (p *Pipeline) RootDir() string {
	return p.rootDir
}

// Handle dispatches one request. Unknown operations are rejected here;
// the set is closed.
func (p *Pipeline) Handle(ctx context.Context, req Request) (*Result, error) {
	switch req.Operation {
	case OpReview, OpAnalyze, OpSuggest, OpValidateArchitecture:
		return p.runAnalysis(ctx, req)
	case OpHistory:
		return p.history(req)
	default:
		return nil, &Error{
			Op:       string(req.Operation),
			Category: CategoryUnknownOperation,
			Err:      fmt.Errorf("unknown operation %q", req.Operation),
		}
	}
}

// runAnalysis is the validate → read → prompt → invoke → parse → record
// sequence shared by all file-based operations.
func (p *Pipeline) runAnalysis(ctx context.Context, req Request) (*Result, error) {
	logger := p.logger.With(
		zap.String("operation", string(req.Operation)),
		zap.String("file", req.FilePath),
	)

	// Availability first: without a runnable CLI every other check is moot.
	if !p.prober.Available(ctx) {
		return p.fail(req, "", CategoryToolUnavailable,
			fmt.Errorf("gemini CLI %q is not runnable", p.cfg.Gemini.Binary))
	}

	path, err := sandbox.ValidatePath(req.FilePath, p.rootDir, p.cfg.Sandbox.AllowedSuffixes)
	if err != nil {
		return p.fail(req, "", classifyValidation(err), err)
	}

	if err := sandbox.CheckFile(path, p.cfg.Sandbox.MaxFileSize); err != nil {
		return p.fail(req, "", classifyValidation(err), err)
	}

	isBinary, err := sandbox.IsBinary(path)
	if err != nil {
		return p.fail(req, "", CategoryInvalidInput, fmt.Errorf("failed to sample %s: %w", req.FilePath, err))
	}
	if isBinary {
		return p.fail(req, "", CategoryBinaryContent, fmt.Errorf("%w: %s", sandbox.ErrBinaryContent, req.FilePath))
	}

	userContext, err := sandbox.SanitizeText(req.Context, p.cfg.Limits.MaxContextLength)
	if err != nil {
		return p.fail(req, "", CategoryInvalidInput, fmt.Errorf("context argument: %w", err))
	}
	langOverride, err := sandbox.SanitizeText(req.Language, p.cfg.Limits.MaxLanguageLength)
	if err != nil {
		return p.fail(req, "", CategoryInvalidInput, fmt.Errorf("language argument: %w", err))
	}
	if !validFocus[req.Focus] {
		return p.fail(req, "", CategoryInvalidInput, fmt.Errorf("unknown focus %q", req.Focus))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return p.fail(req, "", CategoryNotAFile, fmt.Errorf("failed to read %s: %w", req.FilePath, err))
	}

	language := langOverride
	if language == "" {
		language = DetectLanguage(path)
	}

	displayName := path
	if rel, relErr := filepath.Rel(p.rootDir, path); relErr == nil {
		displayName = rel
	}
	prompt := buildPrompt(req.Operation, language, userContext, req.Focus, displayName, string(content))

	outcome := p.runner.Run(ctx, p.cfg.Gemini.Binary, []string{"-p", prompt}, gemini.Options{
		Dir:            p.rootDir,
		Env:            gemini.MinimalEnv(p.cfg.Gemini.AllowedEnvVars),
		Timeout:        p.cfg.GetTimeout(),
		MaxOutputBytes: p.cfg.Gemini.MaxOutputBytes,
	})
	if !outcome.Success {
		return p.fail(req, language, classifyOutcome(outcome.Reason), outcomeError(outcome))
	}

	suggestion := ExtractSuggestion(outcome.Stdout)

	p.sessions.Append(session.Entry{
		Operation:  string(req.Operation),
		TargetFile: req.FilePath,
		Language:   language,
		Focus:      req.Focus,
		Success:    true,
		Actionable: suggestion != nil,
	})
	logger.Info("operation completed",
		zap.String("language", language),
		zap.Bool("actionable", suggestion != nil),
		zap.Int("output_bytes", len(outcome.Stdout)))

	return &Result{
		Text:       renderText(outcome, suggestion),
		Suggestion: suggestion,
		Warning:    outcome.Stderr,
	}, nil
}

// history renders the session log newest-first. The listing is built
// before this call's own entry is appended, so it never lists itself.
func (p *Pipeline) history(req Request) (*Result, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	entries := p.sessions.Recent(limit)

	var b strings.Builder
	fmt.Fprintf(&b, "Session history: %d of %d entries, newest first.\n", len(entries), p.sessions.Len())
	if last, ok := p.sessions.LastSuccess(); ok {
		fmt.Fprintf(&b, "Last success: %s %s at %s\n", last.Operation, last.TargetFile,
			last.Timestamp.Format(time.RFC3339))
	}
	b.WriteString("\n")

	if len(entries) == 0 {
		b.WriteString("No operations recorded yet.\n")
	}
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "%s  %-22s %-7s %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Operation, status, e.TargetFile)
		if e.Actionable {
			b.WriteString("  [actionable]")
		}
		if e.ErrorMessage != "" {
			fmt.Fprintf(&b, "  (%s)", e.ErrorMessage)
		}
		b.WriteString("\n")
	}

	p.sessions.Append(session.Entry{Operation: string(OpHistory), Success: true})
	return &Result{Text: b.String()}, nil
}

// fail records the attempt and returns the single boundary wrap.
func (p *Pipeline) fail(req Request, language string, cat Category, err error) (*Result, error) {
	wrapped := &Error{Op: string(req.Operation), Category: cat, Err: err}
	p.sessions.Append(session.Entry{
		Operation:    string(req.Operation),
		TargetFile:   req.FilePath,
		Language:     language,
		Focus:        req.Focus,
		Success:      false,
		ErrorMessage: wrapped.Error(),
	})
	p.logger.Warn("operation failed",
		zap.String("operation", string(req.Operation)),
		zap.String("file", req.FilePath),
		zap.String("category", string(cat)),
		zap.Error(err))
	return nil, wrapped
}

// outcomeError turns a failed subprocess outcome into a readable error.
func outcomeError(o *gemini.Outcome) error {
	switch o.Reason {
	case gemini.ReasonTimeout:
		return fmt.Errorf("gemini CLI timed out")
	case gemini.ReasonNonZeroExit:
		detail := o.Stderr
		if detail == "" {
			detail = "no diagnostic output"
		}
		return fmt.Errorf("gemini CLI exited with code %d: %s", o.ExitCode, detail)
	case gemini.ReasonOutputTooLarge:
		return fmt.Errorf("gemini CLI produced more output than allowed")
	default:
		return fmt.Errorf("failed to launch gemini CLI: %s", o.Stderr)
	}
}

// renderText shapes the displayable response. With a suggestion, the
// explanation is followed by clearly labeled before/after blocks; the
// raw output already contains the blocks, so it is not repeated.
func renderText(outcome *gemini.Outcome, suggestion *Suggestion) string {
	var b strings.Builder

	if suggestion != nil {
		if suggestion.Explanation != "" {
			b.WriteString(suggestion.Explanation)
			b.WriteString("\n")
		}
		b.WriteString("\nCurrent code:\n```\n")
		b.WriteString(suggestion.Before)
		b.WriteString("\n```\n\nSuggested change:\n```\n")
		b.WriteString(suggestion.After)
		b.WriteString("\n```\n")
	} else {
		b.WriteString(outcome.Stdout)
		b.WriteString("\n")
	}

	if outcome.Stderr != "" {
		b.WriteString("\nWarnings from gemini:\n")
		b.WriteString(outcome.Stderr)
		b.WriteString("\n")
	}

	return b.String()
}
