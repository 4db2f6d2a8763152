// Package session owns the single active identity for one test session. Each
// orchestration worker holds its own Manager; identities are never shared
// across workers.
package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
	"github.com/xkilldash9x/cloakbench/internal/fingerprint"
	"github.com/xkilldash9x/cloakbench/internal/profiles"
)

// DefaultPlatformHint is used when Identity is called with no session active.
const DefaultPlatformHint = schemas.PlatformIOS

// Manager binds one fingerprint to one session interval. Starting a new
// session replaces the previous identity wholesale; no external resources are
// held by an identity beyond its in-memory record.
type Manager struct {
	store  *profiles.Store
	syn    *fingerprint.Synthesizer
	opts   fingerprint.BuildOptions
	logger *zap.Logger

	mu     sync.Mutex
	active *schemas.FingerprintRecord
}

// NewManager wires the profile store and synthesizer. opts apply to every
// identity built by this manager.
func NewManager(store *profiles.Store, syn *fingerprint.Synthesizer, opts fingerprint.BuildOptions, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		syn:    syn,
		opts:   opts,
		logger: logger.Named("session"),
	}
}

// Start selects a fresh device for the platform hint and builds the session
// identity, discarding any previous one.
func (m *Manager) Start(hint schemas.PlatformFamily) (schemas.FingerprintRecord, error) {
	profile, err := m.store.Random(hint)
	if err != nil {
		return schemas.FingerprintRecord{}, err
	}

	id := uuid.NewString()
	rec := m.syn.Build(id, profile, m.opts)

	m.mu.Lock()
	m.active = &rec
	m.mu.Unlock()

	m.logger.Info("Session started.",
		zap.String("session_id", id),
		zap.String("device", profile.DeviceName),
		zap.Bool("enhanced", rec.Enhanced))
	return rec, nil
}

// Identity returns the active record, starting a session with the default
// hint if none is active. It never reports "no identity".
func (m *Manager) Identity() (schemas.FingerprintRecord, error) {
	m.mu.Lock()
	if m.active != nil {
		rec := *m.active
		m.mu.Unlock()
		return rec, nil
	}
	m.mu.Unlock()
	return m.Start(DefaultPlatformHint)
}

// Active reports whether a session is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// End clears the session state. Idempotent.
func (m *Manager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.logger.Debug("Session ended.", zap.String("session_id", m.active.SessionID))
		m.active = nil
	}
}
