// Package fingerprint builds the session identity: one device profile
// baseline plus optional generated navigator, GPU and screen attributes,
// merged under invariants that keep the presented device consistent.
package fingerprint

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

// ErrGeneratorUnavailable signals the passthrough generator. Callers treat it
// as the normal degraded path, never as a failure.
var ErrGeneratorUnavailable = errors.New("fingerprint: generator unavailable")

// Request constrains attribute generation to the selected device: its
// platform family and a tolerance band around its screen geometry.
type Request struct {
	Platform  schemas.PlatformFamily
	MinWidth  int
	MaxWidth  int
	MinHeight int
	MaxHeight int
}

// Attributes is the generated overlay. Only the fields a generator is allowed
// to vary appear here; viewport, rendering seeds, timezone and battery state
// are deliberately absent.
type Attributes struct {
	UserAgent           string
	NavigatorPlatform   string
	HardwareConcurrency int
	DeviceMemory        int
	MaxTouchPoints      int
	Language            string
	Languages           []string
	WebGLVendor         string
	WebGLRenderer       string
	ScreenWidth         int
	ScreenHeight        int
}

// Generator produces supplemental identity attributes. Implementations are
// selected once at startup; callers never branch on availability.
type Generator interface {
	Generate(req Request) (Attributes, error)
}

// Passthrough is the generator used when no generative capability is
// configured. Every call reports ErrGeneratorUnavailable, which the
// synthesizer degrades to the unmodified baseline.
type Passthrough struct{}

func (Passthrough) Generate(Request) (Attributes, error) {
	return Attributes{}, ErrGeneratorUnavailable
}

// Statistical is a self-contained generator that samples plausible attribute
// combinations for the requested platform family. Deterministic per seed.
type Statistical struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewStatistical returns a generator seeded for reproducibility; seed 0 picks
// a random seed.
func NewStatistical(seed int64) *Statistical {
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Statistical{rng: rand.New(rand.NewSource(seed))}
}

var (
	iosVersions = []string{"16_6", "17_0", "17_4", "17_5", "18_0"}

	androidReleases = []struct {
		os     string
		model  string
		chrome string
	}{
		{"12", "SM-S906B", "118.0.0.0"},
		{"13", "Pixel 7", "120.0.0.0"},
		{"13", "SM-S918B", "121.0.6167.101"},
		{"14", "Pixel 8 Pro", "124.0.0.0"},
		{"14", "SM-S921B", "125.0.6422.72"},
	}

	languagePacks = [][]string{
		{"en-US", "en"},
		{"en-GB", "en"},
		{"en-US", "en", "es"},
	}

	androidGPUs = []struct{ vendor, renderer string }{
		{"Qualcomm", "Adreno (TM) 730"},
		{"Qualcomm", "Adreno (TM) 740"},
		{"ARM", "Mali-G710"},
		{"ARM", "Mali-G715-Immortalis MC11"},
	}
)

// Generate samples one coherent attribute set inside the request's screen
// band and platform family.
func (g *Statistical) Generate(req Request) (Attributes, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if req.MinWidth <= 0 || req.MaxWidth < req.MinWidth || req.MinHeight <= 0 || req.MaxHeight < req.MinHeight {
		return Attributes{}, fmt.Errorf("fingerprint: invalid screen band %dx%d..%dx%d",
			req.MinWidth, req.MinHeight, req.MaxWidth, req.MaxHeight)
	}

	attrs := Attributes{
		ScreenWidth:  g.between(req.MinWidth, req.MaxWidth),
		ScreenHeight: g.between(req.MinHeight, req.MaxHeight),
	}
	langs := languagePacks[g.rng.Intn(len(languagePacks))]
	attrs.Language = langs[0]
	attrs.Languages = append([]string(nil), langs...)
	attrs.MaxTouchPoints = 5

	switch req.Platform {
	case schemas.PlatformAndroid:
		rel := androidReleases[g.rng.Intn(len(androidReleases))]
		attrs.UserAgent = fmt.Sprintf(
			"Mozilla/5.0 (Linux; Android %s; %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Mobile Safari/537.36",
			rel.os, rel.model, rel.chrome)
		attrs.NavigatorPlatform = "Linux armv8l"
		attrs.HardwareConcurrency = 8
		attrs.DeviceMemory = []int{6, 8, 12}[g.rng.Intn(3)]
		gpu := androidGPUs[g.rng.Intn(len(androidGPUs))]
		attrs.WebGLVendor = gpu.vendor
		attrs.WebGLRenderer = gpu.renderer
	default:
		ver := iosVersions[g.rng.Intn(len(iosVersions))]
		attrs.UserAgent = fmt.Sprintf(
			"Mozilla/5.0 (iPhone; CPU iPhone OS %s like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/%s Mobile/15E148 Safari/604.1",
			ver, majorDot(ver))
		attrs.NavigatorPlatform = "iPhone"
		attrs.HardwareConcurrency = 6
		attrs.DeviceMemory = []int{4, 6, 8}[g.rng.Intn(3)]
		attrs.WebGLVendor = "Apple Inc."
		attrs.WebGLRenderer = "Apple GPU"
	}
	return attrs, nil
}

func (g *Statistical) between(lo, hi int) int {
	if hi == lo {
		return lo
	}
	return lo + g.rng.Intn(hi-lo+1)
}

// majorDot turns "17_4" into "17.4" for the Safari Version token.
func majorDot(osVersion string) string {
	out := []byte(osVersion)
	for i, c := range out {
		if c == '_' {
			out[i] = '.'
		}
	}
	return string(out)
}
