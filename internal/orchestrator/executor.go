package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
	"github.com/xkilldash9x/cloakbench/internal/browser"
	"github.com/xkilldash9x/cloakbench/internal/capture"
	"github.com/xkilldash9x/cloakbench/internal/fingerprint"
	"github.com/xkilldash9x/cloakbench/internal/injection"
	"github.com/xkilldash9x/cloakbench/internal/pacing"
	"github.com/xkilldash9x/cloakbench/internal/profiles"
	"github.com/xkilldash9x/cloakbench/internal/session"
	"github.com/xkilldash9x/cloakbench/internal/verify"
)

// BrowserExecutor is the production Executor: each session gets a fresh
// synthesized identity, its own browser context, and the full patch program
// registered before any page script runs.
type BrowserExecutor struct {
	runner   *browser.Runner
	profiles *profiles.Store
	syn      *fingerprint.Synthesizer
	builder  *injection.Builder
	capture  *capture.Engine
	pacing   *pacing.Policy
	opts     fingerprint.BuildOptions
	hint     schemas.PlatformFamily
	expected string
	logger   *zap.Logger
}

// BrowserExecutorDeps carries the wired components; expectedIP is the proxy
// egress address used for verification on IP-reporting targets (empty when
// running direct).
type BrowserExecutorDeps struct {
	Runner      *browser.Runner
	Profiles    *profiles.Store
	Synthesizer *fingerprint.Synthesizer
	Builder     *injection.Builder
	Capture     *capture.Engine
	Pacing      *pacing.Policy
	Options     fingerprint.BuildOptions
	DeviceHint  schemas.PlatformFamily
	ExpectedIP  string
}

func NewBrowserExecutor(deps BrowserExecutorDeps, logger *zap.Logger) *BrowserExecutor {
	return &BrowserExecutor{
		runner:   deps.Runner,
		profiles: deps.Profiles,
		syn:      deps.Synthesizer,
		builder:  deps.Builder,
		capture:  deps.Capture,
		pacing:   deps.Pacing,
		opts:     deps.Options,
		hint:     deps.DeviceHint,
		expected: deps.ExpectedIP,
		logger:   logger.Named("executor"),
	}
}

// NewSession synthesizes an identity, validates its patch program, and opens
// an imprinted browser context. Any failure here is fatal to the run.
func (e *BrowserExecutor) NewSession(ctx context.Context, library schemas.LibrarySpec) (SessionHandle, error) {
	mgr := session.NewManager(e.profiles, e.syn, e.opts, e.logger)
	rec, err := mgr.Start(e.hint)
	if err != nil {
		return nil, fmt.Errorf("building identity: %w", err)
	}

	script := e.builder.Build(rec)
	if err := e.builder.Validate(script); err != nil {
		return nil, fmt.Errorf("patch program rejected: %w", err)
	}

	page, err := e.runner.NewSession(ctx, rec, script)
	if err != nil {
		mgr.End()
		return nil, err
	}

	e.logger.Info("Session opened.",
		zap.String("library", library.ID),
		zap.String("session_id", rec.SessionID),
		zap.String("device", rec.Profile.DeviceName))

	return &browserSession{
		exec:    e,
		mgr:     mgr,
		page:    page,
		library: library,
		rec:     rec,
	}, nil
}

type browserSession struct {
	exec    *BrowserExecutor
	mgr     *session.Manager
	page    *browser.Session
	library schemas.LibrarySpec
	rec     schemas.FingerprintRecord
}

// Visit runs one target end to end: navigate, dwell, verify egress, capture.
// Failures degrade the result status instead of propagating.
func (s *browserSession) Visit(ctx context.Context, target schemas.TestTarget) schemas.TestResult {
	started := time.Now()
	result := schemas.TestResult{
		Library:    s.library.ID,
		Target:     target.Name,
		URL:        target.URL,
		DeviceName: s.rec.Profile.DeviceName,
		Enhanced:   s.rec.Enhanced,
		StartedAt:  started,
	}

	if err := s.page.Navigate(ctx, target.URL); err != nil {
		result.Status = schemas.StatusFailed
		result.Error = err.Error()
		result.Elapsed = time.Since(started)
		return result
	}

	s.dwell(ctx, target)

	if s.exec.expected != "" && target.Category == schemas.CategoryIP {
		if html, err := s.page.HTML(ctx); err == nil {
			result.DetectedIP, result.ProxyConfirmed = verify.ProxyConfirmed(html, s.exec.expected)
		} else {
			s.exec.logger.Warn("Egress verification skipped.",
				zap.String("target", target.Name), zap.Error(err))
		}
	}

	outcome := s.exec.capture.Capture(ctx, s.page, s.library.ID, target.Name)
	if outcome.Success {
		result.Status = schemas.StatusSuccess
		result.CapturePath = outcome.Path
		result.CaptureMethod = outcome.Method
	} else {
		result.Status = schemas.StatusPartial
		result.Error = outcome.Error
	}
	result.Elapsed = time.Since(started)
	return result
}

// dwell waits the jittered tier so detection scripts finish their analysis
// before the snapshot. Cancellation cuts the dwell short.
func (s *browserSession) dwell(ctx context.Context, target schemas.TestTarget) {
	wait := s.exec.pacing.Wait(target)
	s.exec.logger.Debug("Dwelling on target.",
		zap.String("target", target.Name), zap.Duration("wait", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *browserSession) Close() {
	s.page.Close()
	s.mgr.End()
}
