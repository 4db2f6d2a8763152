// Package schemas defines the shared data model for cloakbench: device
// profiles, session fingerprints, test targets and run results. Types here
// are plain data carriers shared across internal packages; behavior lives in
// the owning components.
package schemas

import (
	"sort"
	"time"
)

// PlatformFamily identifies the mobile OS family a device profile emulates.
type PlatformFamily string

const (
	PlatformIOS     PlatformFamily = "ios"
	PlatformAndroid PlatformFamily = "android"
)

// TargetCategory classifies the detection surface a test target exercises.
// The orchestrator's wait tiering keys off this.
type TargetCategory string

const (
	CategoryFingerprint   TargetCategory = "fingerprint"
	CategoryIP            TargetCategory = "ip"
	CategoryBot           TargetCategory = "bot"
	CategoryWorker        TargetCategory = "worker"
	CategoryComprehensive TargetCategory = "comprehensive"
)

// ResultStatus is the terminal state of one (library, target) execution.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusPartial ResultStatus = "partial"
	StatusFailed  ResultStatus = "failed"
)

// ExecutionMode selects sequential or bounded-parallel orchestration.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

// Viewport is the CSS-pixel viewport of an emulated device.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DeviceProfile is one row of the device catalog: the full set of attributes
// describing a single physical device model. Loaded once, read-only, shared
// freely across sessions.
type DeviceProfile struct {
	DeviceName          string         `json:"device_name"`
	Platform            PlatformFamily `json:"platform"`
	NavigatorPlatform   string         `json:"navigator_platform"` // e.g. "iPhone", "Linux armv8l"
	OSVersion           string         `json:"os_version"`
	UserAgent           string         `json:"user_agent"`
	Viewport            Viewport       `json:"viewport"`
	PixelRatio          float64        `json:"pixel_ratio"`
	HardwareConcurrency int            `json:"hardware_concurrency"`
	DeviceMemory        int            `json:"device_memory"`
	MaxTouchPoints      int            `json:"max_touch_points"`
	WebGLVendor         string         `json:"webgl_vendor"`
	WebGLRenderer       string         `json:"webgl_renderer"`
	CanvasSeed          int64          `json:"canvas_seed"`
	AudioSeed           int64          `json:"audio_seed"`
	Timezone            string         `json:"timezone"`
	Language            string         `json:"language"`
	Languages           []string       `json:"languages"`
	BatteryLevel        float64        `json:"battery_level"` // 0..1
	BatteryCharging     bool           `json:"battery_charging"`
}

// Geolocation is a spoofed physical location, aligned with the proxy egress.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// FingerprintRecord is the session-scoped identity: a DeviceProfile baseline
// plus optional generated overrides, frozen for the lifetime of one session.
//
// Invariant: Viewport, CanvasSeed, AudioSeed, Timezone and battery state are
// always taken from the baseline profile so the presented device never
// contradicts itself, regardless of enhancement.
type FingerprintRecord struct {
	SessionID string        `json:"session_id"`
	Profile   DeviceProfile `json:"profile"`

	// Effective (possibly generated) navigator attributes.
	UserAgent           string   `json:"user_agent"`
	NavigatorPlatform   string   `json:"navigator_platform"`
	HardwareConcurrency int      `json:"hardware_concurrency"`
	DeviceMemory        int      `json:"device_memory"`
	MaxTouchPoints      int      `json:"max_touch_points"`
	Language            string   `json:"language"`
	Languages           []string `json:"languages"`
	WebGLVendor         string   `json:"webgl_vendor"`
	WebGLRenderer       string   `json:"webgl_renderer"`
	ScreenWidth         int      `json:"screen_width"`
	ScreenHeight        int      `json:"screen_height"`

	// Environment alignment derived from the proxy egress, when known.
	Timezone    string       `json:"timezone"`
	Geolocation *Geolocation `json:"geolocation,omitempty"`

	// Metadata controlling script synthesis.
	Enhanced     bool   `json:"enhanced"`
	MaskWebRTC   bool   `json:"mask_webrtc"`
	ProxyAddress string `json:"proxy_address,omitempty"`
}

// TestTarget is one detection-surface page exercised per test.
type TestTarget struct {
	Name     string         `json:"name"`
	URL      string         `json:"url"`
	Category TargetCategory `json:"category"`
	BaseWait time.Duration  `json:"base_wait"`
}

// LibrarySpec describes one automation technique under evaluation, taken from
// the library matrix catalog.
type LibrarySpec struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Status   string   `json:"status"` // working | testing | issues
	Flags    []string `json:"flags,omitempty"`
}

// CaptureOutcome reports the result of the capture fallback chain.
type CaptureOutcome struct {
	Success bool   `json:"success"`
	Method  string `json:"method,omitempty"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestResult records one (library, target) execution. Created once, never
// mutated after creation.
type TestResult struct {
	Library        string        `json:"library"`
	Target         string        `json:"target"`
	URL            string        `json:"url"`
	Status         ResultStatus  `json:"status"`
	CapturePath    string        `json:"capture_path,omitempty"`
	CaptureMethod  string        `json:"capture_method,omitempty"`
	DetectedIP     string        `json:"detected_ip,omitempty"`
	ProxyConfirmed bool          `json:"proxy_confirmed"`
	DeviceName     string        `json:"device_name,omitempty"`
	Enhanced       bool          `json:"enhanced"`
	Elapsed        time.Duration `json:"elapsed"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
}

// LibrarySummary aggregates result counts for one library.
type LibrarySummary struct {
	Success int `json:"success"`
	Partial int `json:"partial"`
	Failed  int `json:"failed"`
}

// Total returns the number of results summarized.
func (s LibrarySummary) Total() int { return s.Success + s.Partial + s.Failed }

// RunReport is the aggregate outcome of one orchestrated run. Results are
// ordered by library then target.
type RunReport struct {
	RunID      string                    `json:"run_id"`
	Mode       ExecutionMode             `json:"mode"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Results    []TestResult              `json:"results"`
	Summary    map[string]LibrarySummary `json:"summary"`
}

// Aggregate recomputes the per-library summary from Results.
func (r *RunReport) Aggregate() {
	r.Summary = make(map[string]LibrarySummary, 4)
	for _, res := range r.Results {
		s := r.Summary[res.Library]
		switch res.Status {
		case StatusSuccess:
			s.Success++
		case StatusPartial:
			s.Partial++
		default:
			s.Failed++
		}
		r.Summary[res.Library] = s
	}
}

// AllSucceeded reports whether every result reached StatusSuccess. The CLI
// exit status is zero only in that case.
func (r *RunReport) AllSucceeded() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// Libraries returns the distinct library ids present in the report, sorted.
func (r *RunReport) Libraries() []string {
	seen := make(map[string]struct{})
	var libs []string
	for _, res := range r.Results {
		if _, ok := seen[res.Library]; !ok {
			seen[res.Library] = struct{}{}
			libs = append(libs, res.Library)
		}
	}
	sort.Strings(libs)
	return libs
}
