// Package pacing decides how long a worker dwells on a target before
// capturing. Waits are tiered by detection surface rather than fixed: heavy
// analysis pages get the longest tier, and the tier is jittered with smooth
// noise so dwell times vary organically across a run.
package pacing

import (
	"strings"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

const (
	defaultWait = 30 * time.Second

	// Fraction of the tier the jitter may add or remove.
	jitterRatio = 0.1
	noiseStep   = 0.37
)

// Keyword tiers override the category tier when the target name signals a
// specific surface. Heavier analysis pages need longer settle times.
var keywordWaits = []struct {
	keyword string
	wait    time.Duration
}{
	{"pixelscan", 45 * time.Second},
	{"fingerprint", 45 * time.Second},
	{"ip_check", 35 * time.Second},
	{"bot_check", 35 * time.Second},
	{"creepjs", 30 * time.Second},
	{"workers", 25 * time.Second},
	{"ip", 30 * time.Second},
}

var categoryWaits = map[schemas.TargetCategory]time.Duration{
	schemas.CategoryIP:            30 * time.Second,
	schemas.CategoryBot:           35 * time.Second,
	schemas.CategoryFingerprint:   45 * time.Second,
	schemas.CategoryWorker:        45 * time.Second,
	schemas.CategoryComprehensive: 45 * time.Second,
}

// Policy produces the per-target wait. Safe for concurrent use.
type Policy struct {
	mu    sync.Mutex
	noise *perlin.Perlin
	t     float64
}

// NewPolicy seeds the jitter source. The same seed yields the same jitter
// sequence, which keeps runs reproducible.
func NewPolicy(seed int64) *Policy {
	return &Policy{noise: perlin.NewPerlin(2, 2, 3, seed)}
}

// Tier resolves the base wait for a target: keyword match first, then
// category, then the target's own base wait, then the global default.
func Tier(target schemas.TestTarget) time.Duration {
	name := strings.ToLower(target.Name)
	for _, kw := range keywordWaits {
		if strings.Contains(name, kw.keyword) {
			return kw.wait
		}
	}
	if wait, ok := categoryWaits[target.Category]; ok {
		return wait
	}
	if target.BaseWait > 0 {
		return target.BaseWait
	}
	return defaultWait
}

// Wait returns the jittered dwell time for one visit.
func (p *Policy) Wait(target schemas.TestTarget) time.Duration {
	base := Tier(target)

	p.mu.Lock()
	p.t += noiseStep
	n := p.noise.Noise1D(p.t)
	p.mu.Unlock()

	jitter := time.Duration(float64(base) * jitterRatio * n)
	return base + jitter
}
