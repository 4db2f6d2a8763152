// Package orchestrator coordinates the library by target matrix: one session
// per library, targets visited in selection order, execution either strictly
// sequential or bounded by a fixed worker budget.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
	"github.com/xkilldash9x/cloakbench/internal/config"
)

// SessionHandle is one open, identity-bound session. Visit never panics or
// returns an error; every outcome is encoded in the TestResult.
type SessionHandle interface {
	Visit(ctx context.Context, target schemas.TestTarget) schemas.TestResult
	Close()
}

// Executor opens sessions for libraries under evaluation. A session-open
// failure is fatal to the run (browser launch class errors are not retried).
type Executor interface {
	NewSession(ctx context.Context, library schemas.LibrarySpec) (SessionHandle, error)
}

// Preflight runs once before any session starts; a failure aborts the run
// before any browser cost is incurred.
type Preflight func(ctx context.Context) error

// Orchestrator runs the selected matrix and aggregates results.
type Orchestrator struct {
	cfg       config.OrchestratorConfig
	executor  Executor
	preflight Preflight
	logger    *zap.Logger
}

func New(cfg config.OrchestratorConfig, executor Executor, preflight Preflight, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		executor:  executor,
		preflight: preflight,
		logger:    logger.Named("orchestrator"),
	}
}

// Run executes every selected library against every selected target. The
// report always contains exactly one TestResult per attempted pair, ordered
// by library then target. The returned error is non-nil only for fatal
// conditions (failed pre-flight, session launch failure, canceled run).
func (o *Orchestrator) Run(ctx context.Context, libraries []schemas.LibrarySpec, targets []schemas.TestTarget) (*schemas.RunReport, error) {
	report := &schemas.RunReport{
		RunID:     uuid.NewString(),
		Mode:      schemas.ExecutionMode(o.cfg.Mode),
		StartedAt: time.Now(),
	}
	if len(libraries) == 0 || len(targets) == 0 {
		return nil, fmt.Errorf("orchestrator: nothing selected (%d libraries, %d targets)", len(libraries), len(targets))
	}

	if o.preflight != nil {
		if err := o.preflight(ctx); err != nil {
			return nil, fmt.Errorf("pre-flight check failed: %w", err)
		}
	}

	o.logger.Info("Run starting.",
		zap.String("run_id", report.RunID),
		zap.String("mode", o.cfg.Mode),
		zap.Int("libraries", len(libraries)),
		zap.Int("targets", len(targets)))

	var (
		perLibrary [][]schemas.TestResult
		err        error
	)
	if schemas.ExecutionMode(o.cfg.Mode) == schemas.ModeParallel {
		perLibrary, err = o.runParallel(ctx, libraries, targets)
	} else {
		perLibrary, err = o.runSequential(ctx, libraries, targets)
	}
	if err != nil {
		return nil, err
	}

	for _, results := range perLibrary {
		report.Results = append(report.Results, results...)
	}
	report.FinishedAt = time.Now()
	report.Aggregate()

	o.logger.Info("Run finished.",
		zap.String("run_id", report.RunID),
		zap.Int("results", len(report.Results)),
		zap.Bool("all_succeeded", report.AllSucceeded()))
	return report, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, libraries []schemas.LibrarySpec, targets []schemas.TestTarget) ([][]schemas.TestResult, error) {
	out := make([][]schemas.TestResult, len(libraries))
	for i, lib := range libraries {
		results, err := o.runLibrary(ctx, lib, targets)
		if err != nil {
			return nil, err
		}
		out[i] = results
	}
	return out, nil
}

// runParallel executes one worker per library, bounded by the configured
// budget. Excess libraries queue on the semaphore rather than spawning
// unbounded concurrency. A fatal error in any worker cancels the rest.
func (o *Orchestrator) runParallel(ctx context.Context, libraries []schemas.LibrarySpec, targets []schemas.TestTarget) ([][]schemas.TestResult, error) {
	budget := o.cfg.Concurrency
	if budget < 1 {
		budget = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]schemas.TestResult, len(libraries))
	errs := make([]error, len(libraries))
	sem := make(chan struct{}, budget)
	var wg sync.WaitGroup

	for i, lib := range libraries {
		wg.Add(1)
		go func(i int, lib schemas.LibrarySpec) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				errs[i] = runCtx.Err()
				return
			}
			defer func() { <-sem }()

			results, err := o.runLibrary(runCtx, lib, targets)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			out[i] = results
		}(i, lib)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// runLibrary owns one session end to end: acquire, visit each target in
// order, tear down. Per-target failures are isolated into their results;
// only session acquisition is fatal.
func (o *Orchestrator) runLibrary(ctx context.Context, lib schemas.LibrarySpec, targets []schemas.TestTarget) ([]schemas.TestResult, error) {
	sessionCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.SessionTimeout > 0 {
		sessionCtx, cancel = context.WithTimeout(ctx, o.cfg.SessionTimeout)
		defer cancel()
	}

	handle, err := o.executor.NewSession(sessionCtx, lib)
	if err != nil {
		return nil, fmt.Errorf("starting session for library %q: %w", lib.ID, err)
	}
	defer handle.Close()

	results := make([]schemas.TestResult, 0, len(targets))
	for _, target := range targets {
		if err := sessionCtx.Err(); err != nil {
			results = append(results, schemas.TestResult{
				Library:   lib.ID,
				Target:    target.Name,
				URL:       target.URL,
				Status:    schemas.StatusFailed,
				Error:     err.Error(),
				StartedAt: time.Now(),
			})
			continue
		}
		results = append(results, handle.Visit(sessionCtx, target))
	}
	return results, nil
}
