// Package capture acquires a visual snapshot of a page through an ordered
// fallback chain. Every attempt is bounded by its own short timeout and a
// fully exhausted chain is reported, never raised.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
	"github.com/xkilldash9x/cloakbench/internal/config"
)

// Capturer is the narrow page capability the engine drives. Implementations
// must force pending font-loading promises to resolve before the full-page
// path so the snapshot does not stall on slow font fetches.
type Capturer interface {
	FullPage(ctx context.Context, path string) error
	Viewport(ctx context.Context, path string) error
	Element(ctx context.Context, selector, path string) error
	Binary(ctx context.Context, path string) error
}

type strategy struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context, page Capturer, path string) error
}

// Engine owns the capture directory and the fallback policy.
type Engine struct {
	dir        string
	minBytes   int64
	strategies []strategy
	logger     *zap.Logger
}

// NewEngine creates the capture directory eagerly so a misconfigured path
// fails the run pre-flight instead of on the first capture.
func NewEngine(cfg config.CaptureConfig, logger *zap.Logger) (*Engine, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}
	minBytes := cfg.MinBytes
	if minBytes <= 0 {
		minBytes = 1024
	}

	// Attempt budgets shrink down the chain; the configured ceiling caps all.
	cap := func(d time.Duration) time.Duration {
		if cfg.AttemptTimeout > 0 && d > cfg.AttemptTimeout {
			return cfg.AttemptTimeout
		}
		return d
	}

	e := &Engine{
		dir:      cfg.Dir,
		minBytes: minBytes,
		logger:   logger.Named("capture"),
	}
	e.strategies = []strategy{
		{"full_page", cap(5 * time.Second), func(ctx context.Context, p Capturer, path string) error { return p.FullPage(ctx, path) }},
		{"viewport", cap(3 * time.Second), func(ctx context.Context, p Capturer, path string) error { return p.Viewport(ctx, path) }},
		{"element", cap(3 * time.Second), func(ctx context.Context, p Capturer, path string) error { return p.Element(ctx, "body", path) }},
		{"binary", cap(2 * time.Second), func(ctx context.Context, p Capturer, path string) error { return p.Binary(ctx, path) }},
	}
	return e, nil
}

// Filename derives the deterministic capture file name for one visit.
func (e *Engine) Filename(library, target string, ts time.Time) string {
	return filepath.Join(e.dir, fmt.Sprintf("%s_%s_%s.png", library, target, ts.Format("20060102_150405.000")))
}

// Capture walks the strategy chain until one attempt produces a plausible
// file. A timeout cancels only its own attempt; the chain stops early if the
// caller's context is done.
func (e *Engine) Capture(ctx context.Context, page Capturer, library, target string) schemas.CaptureOutcome {
	path := e.Filename(library, target, time.Now())

	var lastErr error
	for _, st := range e.strategies {
		if ctx.Err() != nil {
			return schemas.CaptureOutcome{Success: false, Error: ctx.Err().Error()}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, st.timeout)
		err := st.run(attemptCtx, page, path)
		cancel()
		if err != nil {
			lastErr = err
			e.logger.Debug("Capture attempt failed.",
				zap.String("method", st.name), zap.Error(err))
			continue
		}

		if err := e.checkFile(path); err != nil {
			lastErr = err
			e.logger.Debug("Capture attempt produced an implausible file.",
				zap.String("method", st.name), zap.Error(err))
			continue
		}

		e.logger.Info("Capture succeeded.",
			zap.String("method", st.name), zap.String("path", path))
		return schemas.CaptureOutcome{Success: true, Method: st.name, Path: path}
	}

	out := schemas.CaptureOutcome{Success: false}
	if lastErr != nil {
		out.Error = lastErr.Error()
	}
	e.logger.Warn("All capture methods exhausted.",
		zap.String("library", library), zap.String("target", target))
	return out
}

// checkFile rejects missing or truncated artifacts; anything under the
// minimum size is removed so a later attempt can rewrite the path.
func (e *Engine) checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("capture file missing: %w", err)
	}
	if info.Size() < e.minBytes {
		_ = os.Remove(path)
		return fmt.Errorf("capture file too small (%d bytes)", info.Size())
	}
	return nil
}

// Cleanup removes capture files older than maxAge and reports how many were
// deleted.
func (e *Engine) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	matches, err := filepath.Glob(filepath.Join(e.dir, "*.png"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(path) == nil {
			removed++
		}
	}
	if removed > 0 {
		e.logger.Info("Removed old captures.", zap.Int("count", removed))
	}
	return removed
}
