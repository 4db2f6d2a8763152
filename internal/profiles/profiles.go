// Package profiles loads and serves the device profile catalog. Profiles come
// from per-platform CSV files when a catalog directory is configured, falling
// back to a built-in set of real device rows. The store is read-only after
// construction and safe for concurrent use.
package profiles

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

const (
	iphoneCSV  = "iphone_profiles.csv"
	androidCSV = "android_profiles.csv"
)

// Store holds the loaded device catalog.
type Store struct {
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand

	iphone  []schemas.DeviceProfile
	android []schemas.DeviceProfile
}

// NewStore builds a catalog from dir (optional; empty means built-ins only).
// A CSV that is missing or malformed falls back to the built-in rows for that
// platform rather than failing the run. seed fixes the random selection order
// for reproducible runs; pass 0 for a time-derived seed.
func NewStore(dir string, seed int64, logger *zap.Logger) *Store {
	s := &Store{
		logger: logger.Named("profiles"),
		rng:    newRNG(seed),
	}

	s.iphone = s.loadPlatform(dir, iphoneCSV, schemas.PlatformIOS, defaultIPhoneProfiles())
	s.android = s.loadPlatform(dir, androidCSV, schemas.PlatformAndroid, defaultAndroidProfiles())

	s.logger.Info("Device catalog loaded.",
		zap.Int("iphone", len(s.iphone)),
		zap.Int("android", len(s.android)))
	return s
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return rand.New(rand.NewSource(seed))
}

func (s *Store) loadPlatform(dir, file string, platform schemas.PlatformFamily, fallback []schemas.DeviceProfile) []schemas.DeviceProfile {
	if dir == "" {
		return fallback
	}
	path := filepath.Join(dir, file)
	rows, err := s.loadCSV(path, platform)
	if err != nil {
		s.logger.Warn("Falling back to built-in profiles.",
			zap.String("path", path), zap.Error(err))
		return fallback
	}
	if len(rows) == 0 {
		return fallback
	}
	return rows
}

// loadCSV parses a header-keyed profile CSV into DeviceProfile rows.
func (s *Store) loadCSV(path string, platform schemas.PlatformFamily) ([]schemas.DeviceProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.TrimSpace(strings.ToLower(name))] = i
	}

	var profiles []schemas.DeviceProfile
	for _, rec := range records[1:] {
		get := func(col string) string {
			idx, ok := header[col]
			if !ok || idx >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx])
		}
		p, err := rowToProfile(get, platform, s.seedValue())
		if err != nil {
			s.logger.Warn("Skipping malformed profile row.",
				zap.String("path", path), zap.Error(err))
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// rowToProfile converts one CSV row into a profile, applying the same defaults
// the built-in rows use for absent columns.
func rowToProfile(get func(string) string, platform schemas.PlatformFamily, fallbackSeed int64) (schemas.DeviceProfile, error) {
	name := get("device_name")
	ua := get("user_agent")
	if name == "" || ua == "" {
		return schemas.DeviceProfile{}, fmt.Errorf("device_name and user_agent are required")
	}

	p := schemas.DeviceProfile{
		DeviceName:          name,
		Platform:            platform,
		NavigatorPlatform:   orDefault(get("platform"), "iPhone"),
		OSVersion:           orDefault(get("os_version"), "14.0"),
		UserAgent:           ua,
		Viewport:            schemas.Viewport{Width: atoiDefault(get("viewport_width"), 390), Height: atoiDefault(get("viewport_height"), 844)},
		PixelRatio:          atofDefault(get("device_scale_factor"), 3.0),
		HardwareConcurrency: atoiDefault(get("hardware_concurrency"), 4),
		DeviceMemory:        atoiDefault(get("device_memory"), 4),
		MaxTouchPoints:      atoiDefault(get("max_touch_points"), 5),
		WebGLVendor:         orDefault(get("webgl_vendor"), "Apple Inc."),
		WebGLRenderer:       orDefault(get("webgl_renderer"), "Apple GPU"),
		Timezone:            orDefault(get("timezone"), "America/Los_Angeles"),
		Language:            orDefault(get("language"), "en-US"),
		BatteryLevel:        atofDefault(get("battery_level"), 0.85),
		BatteryCharging:     strings.EqualFold(get("battery_charging"), "true"),
	}

	langs := orDefault(get("languages"), "en-US,en")
	for _, l := range strings.Split(langs, ",") {
		if l = strings.TrimSpace(l); l != "" {
			p.Languages = append(p.Languages, l)
		}
	}

	// Rendering seeds stay with the device row when present so a device's
	// canvas and audio noise are stable across sessions.
	p.CanvasSeed = atoi64Default(get("canvas_seed"), fallbackSeed)
	p.AudioSeed = atoi64Default(get("audio_seed"), fallbackSeed)
	return p, nil
}

// seedValue produces a plausible rendering seed for rows that omit one.
func (s *Store) seedValue() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(1000 + s.rng.Intn(9000))
}

// Random picks a profile uniformly from the requested platform family. An
// empty family subset falls back to the built-in defaults rather than
// failing.
func (s *Store) Random(platform schemas.PlatformFamily) (schemas.DeviceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pool []schemas.DeviceProfile
	switch platform {
	case schemas.PlatformIOS:
		pool = s.iphone
	case schemas.PlatformAndroid:
		pool = s.android
	default:
		pool = append(append([]schemas.DeviceProfile{}, s.iphone...), s.android...)
	}
	if len(pool) == 0 {
		s.logger.Warn("No profiles loaded for platform, using built-ins.",
			zap.String("platform", string(platform)))
		switch platform {
		case schemas.PlatformAndroid:
			pool = defaultAndroidProfiles()
		default:
			pool = defaultIPhoneProfiles()
		}
	}
	return pool[s.rng.Intn(len(pool))], nil
}

// ByName returns the profile whose device name matches, case-insensitively.
func (s *Store) ByName(name string) (schemas.DeviceProfile, bool) {
	for _, p := range s.All() {
		if strings.EqualFold(p.DeviceName, name) {
			return p, true
		}
	}
	return schemas.DeviceProfile{}, false
}

// All returns every loaded profile, iPhone rows first.
func (s *Store) All() []schemas.DeviceProfile {
	out := make([]schemas.DeviceProfile, 0, len(s.iphone)+len(s.android))
	out = append(out, s.iphone...)
	out = append(out, s.android...)
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func atoi64Default(v string, def int64) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func atofDefault(v string, def float64) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
