package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cloakbench/api/schemas"
	"github.com/xkilldash9x/cloakbench/internal/config"
)

// fakeExecutor scripts session behavior per library id.
type fakeExecutor struct {
	mu           sync.Mutex
	failSessions map[string]error    // library id -> NewSession error
	failVisits   map[string]struct{} // "lib/target" -> forced failure
	visitDelay   time.Duration
	open         atomic.Int32
	maxOpen      atomic.Int32
	sessions     []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		failSessions: make(map[string]error),
		failVisits:   make(map[string]struct{}),
	}
}

func (f *fakeExecutor) NewSession(ctx context.Context, library schemas.LibrarySpec) (SessionHandle, error) {
	if err := f.failSessions[library.ID]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, library.ID)
	f.mu.Unlock()

	open := f.open.Add(1)
	for {
		peak := f.maxOpen.Load()
		if open <= peak || f.maxOpen.CompareAndSwap(peak, open) {
			break
		}
	}
	return &fakeSession{exec: f, library: library.ID}, nil
}

type fakeSession struct {
	exec    *fakeExecutor
	library string
}

func (s *fakeSession) Visit(ctx context.Context, target schemas.TestTarget) schemas.TestResult {
	if s.exec.visitDelay > 0 {
		select {
		case <-time.After(s.exec.visitDelay):
		case <-ctx.Done():
		}
	}
	result := schemas.TestResult{
		Library:       s.library,
		Target:        target.Name,
		URL:           target.URL,
		Status:        schemas.StatusSuccess,
		CapturePath:   "captures/" + s.library + "_" + target.Name + ".png",
		CaptureMethod: "full_page",
		StartedAt:     time.Now(),
	}
	if _, ok := s.exec.failVisits[s.library+"/"+target.Name]; ok {
		result.Status = schemas.StatusFailed
		result.CapturePath = ""
		result.CaptureMethod = ""
		result.Error = "forced failure"
	}
	return result
}

func (s *fakeSession) Close() {
	s.exec.open.Add(-1)
}

func libraries(ids ...string) []schemas.LibrarySpec {
	specs := make([]schemas.LibrarySpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, schemas.LibrarySpec{ID: id, Status: "working"})
	}
	return specs
}

func targets(names ...string) []schemas.TestTarget {
	ts := make([]schemas.TestTarget, 0, len(names))
	for _, name := range names {
		ts = append(ts, schemas.TestTarget{
			Name:     name,
			URL:      "https://example.com/" + name,
			Category: schemas.CategoryIP,
		})
	}
	return ts
}

func TestRun_SequentialProducesOneResultPerPair(t *testing.T) {
	exec := newFakeExecutor()
	o := New(config.OrchestratorConfig{Mode: "sequential"}, exec, nil, zaptest.NewLogger(t))

	report, err := o.Run(context.Background(), libraries("selenium", "playwright"), targets("ip_check", "pixelscan"))
	require.NoError(t, err)

	require.Len(t, report.Results, 4)
	assert.Equal(t, "selenium", report.Results[0].Library)
	assert.Equal(t, "ip_check", report.Results[0].Target)
	assert.Equal(t, "selenium", report.Results[1].Library)
	assert.Equal(t, "pixelscan", report.Results[1].Target)
	assert.Equal(t, "playwright", report.Results[2].Library)
	assert.True(t, report.AllSucceeded())
	assert.Equal(t, []string{"selenium"}, exec.sessions[:1])
}

func TestRun_TargetFailureIsIsolated(t *testing.T) {
	exec := newFakeExecutor()
	exec.failVisits["selenium/ip_check"] = struct{}{}
	o := New(config.OrchestratorConfig{Mode: "sequential"}, exec, nil, zaptest.NewLogger(t))

	report, err := o.Run(context.Background(), libraries("selenium"), targets("ip_check", "pixelscan"))
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, schemas.StatusFailed, report.Results[0].Status)
	assert.Equal(t, schemas.StatusSuccess, report.Results[1].Status)
	assert.False(t, report.AllSucceeded())

	summary := report.Summary["selenium"]
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Total())
}

func TestRun_SessionFailureIsFatal(t *testing.T) {
	exec := newFakeExecutor()
	exec.failSessions["selenium"] = errors.New("browser launch failed")
	o := New(config.OrchestratorConfig{Mode: "sequential"}, exec, nil, zaptest.NewLogger(t))

	_, err := o.Run(context.Background(), libraries("selenium"), targets("ip_check"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selenium")
}

func TestRun_PreflightFailureAbortsBeforeSessions(t *testing.T) {
	exec := newFakeExecutor()
	preflight := func(ctx context.Context) error { return errors.New("proxy unreachable") }
	o := New(config.OrchestratorConfig{Mode: "sequential"}, exec, preflight, zaptest.NewLogger(t))

	_, err := o.Run(context.Background(), libraries("selenium"), targets("ip_check"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pre-flight")
	assert.Empty(t, exec.sessions)
}

func TestRun_EmptySelectionRejected(t *testing.T) {
	o := New(config.OrchestratorConfig{Mode: "sequential"}, newFakeExecutor(), nil, zaptest.NewLogger(t))

	_, err := o.Run(context.Background(), nil, targets("ip_check"))
	assert.Error(t, err)

	_, err = o.Run(context.Background(), libraries("selenium"), nil)
	assert.Error(t, err)
}

func TestRun_ParallelRespectsConcurrencyBudget(t *testing.T) {
	exec := newFakeExecutor()
	exec.visitDelay = 50 * time.Millisecond
	cfg := config.OrchestratorConfig{Mode: "parallel", Concurrency: 2}
	o := New(cfg, exec, nil, zaptest.NewLogger(t))

	report, err := o.Run(context.Background(),
		libraries("a", "b", "c", "d", "e"), targets("ip_check"))
	require.NoError(t, err)

	assert.Len(t, report.Results, 5)
	assert.LessOrEqual(t, exec.maxOpen.Load(), int32(2))
}

func TestRun_ParallelKeepsLibraryOrder(t *testing.T) {
	exec := newFakeExecutor()
	exec.visitDelay = 10 * time.Millisecond
	cfg := config.OrchestratorConfig{Mode: "parallel", Concurrency: 3}
	o := New(cfg, exec, nil, zaptest.NewLogger(t))

	report, err := o.Run(context.Background(),
		libraries("zeta", "alpha", "mid"), targets("ip_check", "pixelscan"))
	require.NoError(t, err)

	require.Len(t, report.Results, 6)
	// Selection order is preserved regardless of completion order.
	assert.Equal(t, "zeta", report.Results[0].Library)
	assert.Equal(t, "zeta", report.Results[1].Library)
	assert.Equal(t, "alpha", report.Results[2].Library)
	assert.Equal(t, "mid", report.Results[4].Library)
}

func TestRun_ParallelSessionFailureCancelsRun(t *testing.T) {
	exec := newFakeExecutor()
	exec.failSessions["b"] = errors.New("browser launch failed")
	cfg := config.OrchestratorConfig{Mode: "parallel", Concurrency: 2}
	o := New(cfg, exec, nil, zaptest.NewLogger(t))

	_, err := o.Run(context.Background(), libraries("a", "b", "c"), targets("ip_check"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser launch failed")
}

func TestRun_SingleLibraryAgainstTargetPair(t *testing.T) {
	exec := newFakeExecutor()
	exec.failVisits["A/comprehensive"] = struct{}{}
	o := New(config.OrchestratorConfig{Mode: "sequential"}, exec, nil, zaptest.NewLogger(t))

	report, err := o.Run(context.Background(), libraries("A"), targets("ip_check", "comprehensive"))
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "ip_check", report.Results[0].Target)
	assert.Equal(t, "comprehensive", report.Results[1].Target)

	// Every attempted pair carries either an artifact or a recorded reason.
	for _, res := range report.Results {
		if res.Status == schemas.StatusSuccess {
			assert.NotEmpty(t, res.CapturePath)
		} else {
			assert.NotEmpty(t, res.Error)
		}
	}
}

func TestRun_SessionTimeoutMarksRemainingTargetsFailed(t *testing.T) {
	exec := newFakeExecutor()
	exec.visitDelay = 80 * time.Millisecond
	cfg := config.OrchestratorConfig{Mode: "sequential", SessionTimeout: 120 * time.Millisecond}
	o := New(cfg, exec, nil, zaptest.NewLogger(t))

	report, err := o.Run(context.Background(),
		libraries("selenium"), targets("one", "two", "three"))
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, schemas.StatusFailed, report.Results[2].Status)
}
