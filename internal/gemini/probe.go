package gemini

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// runFunc matches Runner.Run. Tests inject a counting stub.
type runFunc func(ctx context.Context, executable string, argv []string, opts Options) *Outcome

// Prober answers "is the gemini CLI runnable" with a short version query.
// The first successful probe is cached for the process lifetime; failed
// probes are retried on the next call. Concurrent callers share one
// in-flight probe subprocess.
type Prober struct {
	run     runFunc
	logger  *zap.Logger
	binary  string
	timeout time.Duration
	env     []string

	group singleflight.Group

	mu        sync.Mutex
	available bool
}

// NewProber creates a prober for the given binary.
func NewProber(runner *Runner, logger *zap.Logger, binary string, timeout time.Duration, allowedEnv []string) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		run:     runner.Run,
		logger:  logger,
		binary:  binary,
		timeout: timeout,
		env:     MinimalEnv(allowedEnv),
	}
}

// Available reports whether the gemini CLI responds to a version query.
func (p *Prober) Available(ctx context.Context) bool {
	p.mu.Lock()
	if p.available {
		p.mu.Unlock()
		return true
	}
	p.mu.Unlock()

	result, _, _ := p.group.Do("probe", func() (interface{}, error) {
		outcome := p.run(ctx, p.binary, []string{"--version"}, Options{
			Timeout:        p.timeout,
			Env:            p.env,
			MaxOutputBytes: 64 * 1024,
		})
		if outcome.Success {
			p.mu.Lock()
			p.available = true
			p.mu.Unlock()
			p.logger.Info("gemini CLI available",
				zap.String("binary", p.binary),
				zap.String("version", outcome.Stdout))
			return true, nil
		}
		p.logger.Warn("gemini CLI probe failed",
			zap.String("binary", p.binary),
			zap.String("reason", string(outcome.Reason)),
			zap.String("stderr", outcome.Stderr))
		return false, nil
	})
	return result.(bool)
}
