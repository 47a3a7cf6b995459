// Package gemini invokes the external gemini CLI as a bounded subprocess:
// argument-vector spawning, an explicit minimal environment, a hard
// timeout, and a cap on accumulated stdout. One invocation resolves to
// exactly one Outcome.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds one analysis invocation.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxOutputBytes caps accumulated stdout (1MB).
	DefaultMaxOutputBytes = 1024 * 1024
)

// FailureReason identifies why an invocation did not succeed.
// The reasons are mutually exclusive; an Outcome carries at most one.
type FailureReason string

const (
	ReasonTimeout        FailureReason = "timeout"
	ReasonNonZeroExit    FailureReason = "non-zero-exit"
	ReasonSpawnError     FailureReason = "spawn-error"
	ReasonOutputTooLarge FailureReason = "output-too-large"
)

// Outcome is the single terminal result of one subprocess invocation.
// Either Success is true and Stdout carries the trimmed output, or
// Reason names the failure.
type Outcome struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
	Reason   FailureReason
}

// Options bound one invocation.
type Options struct {
	// Dir is the working directory for the child.
	Dir string

	// Env is the complete child environment. The child never inherits the
	// parent environment; nil means an empty environment.
	Env []string

	// Timeout for the whole invocation. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxOutputBytes caps accumulated stdout. Zero means the default.
	MaxOutputBytes int64
}

// Runner executes external commands.
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a runner. A nil logger is replaced with a no-op one.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Run executes executable with argv and resolves to exactly one Outcome.
// Arguments are passed as a vector; nothing is ever handed to a shell, so
// prompt text cannot be reinterpreted as shell syntax.
func (r *Runner) Run(ctx context.Context, executable string, argv []string, opts Options) *Outcome {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := opts.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, executable, argv...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	if cmd.Env == nil {
		// nil Env would inherit the full parent environment.
		cmd.Env = []string{}
	}

	var stderr bytes.Buffer
	stdout := &cappedBuffer{limit: maxOutput, overflow: make(chan struct{}, 1)}
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.logger.Warn("spawn failed", zap.String("executable", executable), zap.Error(err))
		return &Outcome{Reason: ReasonSpawnError, Stderr: err.Error()}
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	// Exactly one branch below settles the outcome. The capped buffer
	// trips at most once, and after a trip it discards further writes, so
	// a racing exit cannot produce a second resolution.
	select {
	case <-stdout.overflow:
		_ = cmd.Process.Kill()
		<-waitDone // reap; the exit status is irrelevant after the cap kill
		r.logger.Warn("output cap exceeded",
			zap.String("executable", executable),
			zap.Int64("max_output_bytes", maxOutput))
		return &Outcome{
			Reason: ReasonOutputTooLarge,
			Stderr: strings.TrimSpace(stderr.String()),
		}

	case err := <-waitDone:
		if runCtx.Err() == context.DeadlineExceeded {
			r.logger.Warn("invocation timed out",
				zap.String("executable", executable),
				zap.Duration("timeout", timeout))
			return &Outcome{
				Reason: ReasonTimeout,
				Stderr: strings.TrimSpace(stderr.String()),
			}
		}
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return &Outcome{
					Reason:   ReasonNonZeroExit,
					ExitCode: exitErr.ExitCode(),
					Stdout:   strings.TrimSpace(stdout.String()),
					Stderr:   strings.TrimSpace(stderr.String()),
				}
			}
			return &Outcome{Reason: ReasonSpawnError, Stderr: err.Error()}
		}

		r.logger.Debug("invocation completed",
			zap.String("executable", executable),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("stdout_bytes", stdout.Len()))
		return &Outcome{
			Success: true,
			Stdout:  strings.TrimSpace(stdout.String()),
			Stderr:  strings.TrimSpace(stderr.String()),
		}
	}
}

// MinimalEnv builds a child environment containing only the allow-listed
// variables that are set in the parent. Everything else is dropped so the
// child cannot pick up unintended environment-driven behavior.
func MinimalEnv(allowed []string) []string {
	env := make([]string, 0, len(allowed))
	for _, key := range allowed {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	return env
}

// cappedBuffer accumulates up to limit bytes. The first write that would
// exceed the limit trips the overflow signal once; everything after the
// trip is discarded.
type cappedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int64
	tripped  bool
	overflow chan struct{}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tripped {
		return len(p), nil
	}
	if int64(b.buf.Len())+int64(len(p)) > b.limit {
		b.tripped = true
		select {
		case b.overflow <- struct{}{}:
		default:
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}
