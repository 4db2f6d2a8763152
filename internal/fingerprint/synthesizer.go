package fingerprint

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

// screenTolerance bounds how far a generated screen may drift from the
// device's viewport, in pixels per dimension.
const screenTolerance = 10

// BuildOptions controls one identity build.
type BuildOptions struct {
	Enhance      bool
	ProxyAddress string
	MaskWebRTC   bool

	// Optional proxy-egress alignment. Zero values keep the profile's own
	// timezone and omit the geolocation override.
	Timezone    string
	Geolocation *schemas.Geolocation
}

// Synthesizer merges a device baseline with generated attributes into an
// immutable FingerprintRecord.
type Synthesizer struct {
	gen    Generator
	logger *zap.Logger
}

// NewSynthesizer wires the generator capability chosen at startup. gen must
// not be nil; pass Passthrough{} when no generative capability exists.
func NewSynthesizer(gen Generator, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{gen: gen, logger: logger.Named("fingerprint")}
}

// Build produces the session identity for one baseline profile. Generator
// failure is the expected degraded path: the baseline is returned unchanged
// with Enhanced=false, and the error never reaches the caller.
func (s *Synthesizer) Build(sessionID string, base schemas.DeviceProfile, opts BuildOptions) schemas.FingerprintRecord {
	rec := baselineRecord(sessionID, base)
	rec.ProxyAddress = opts.ProxyAddress
	rec.MaskWebRTC = opts.MaskWebRTC && opts.ProxyAddress != ""
	if opts.Timezone != "" {
		rec.Timezone = opts.Timezone
	}
	rec.Geolocation = opts.Geolocation

	if !opts.Enhance {
		return rec
	}

	attrs, err := s.gen.Generate(Request{
		Platform:  base.Platform,
		MinWidth:  base.Viewport.Width - screenTolerance,
		MaxWidth:  base.Viewport.Width + screenTolerance,
		MinHeight: base.Viewport.Height - screenTolerance,
		MaxHeight: base.Viewport.Height + screenTolerance,
	})
	if err != nil {
		if err != ErrGeneratorUnavailable {
			s.logger.Warn("Fingerprint generation failed, using baseline profile.",
				zap.String("device", base.DeviceName), zap.Error(err))
		}
		return rec
	}

	// Merge the overlay. Viewport, rendering seeds, timezone and battery
	// state always stay with the baseline device.
	rec.Enhanced = true
	rec.UserAgent = attrs.UserAgent
	rec.NavigatorPlatform = attrs.NavigatorPlatform
	rec.HardwareConcurrency = attrs.HardwareConcurrency
	rec.DeviceMemory = attrs.DeviceMemory
	rec.MaxTouchPoints = attrs.MaxTouchPoints
	rec.Language = attrs.Language
	rec.Languages = append([]string(nil), attrs.Languages...)
	rec.WebGLVendor = attrs.WebGLVendor
	rec.WebGLRenderer = attrs.WebGLRenderer
	rec.ScreenWidth = clamp(attrs.ScreenWidth, base.Viewport.Width-screenTolerance, base.Viewport.Width+screenTolerance)
	rec.ScreenHeight = clamp(attrs.ScreenHeight, base.Viewport.Height-screenTolerance, base.Viewport.Height+screenTolerance)

	s.logger.Debug("Enhanced fingerprint built.",
		zap.String("device", base.DeviceName),
		zap.String("user_agent", rec.UserAgent))
	return rec
}

// baselineRecord wraps the profile unchanged, screen equal to the viewport.
func baselineRecord(sessionID string, base schemas.DeviceProfile) schemas.FingerprintRecord {
	return schemas.FingerprintRecord{
		SessionID:           sessionID,
		Profile:             base,
		UserAgent:           base.UserAgent,
		NavigatorPlatform:   base.NavigatorPlatform,
		HardwareConcurrency: base.HardwareConcurrency,
		DeviceMemory:        base.DeviceMemory,
		MaxTouchPoints:      base.MaxTouchPoints,
		Language:            base.Language,
		Languages:           append([]string(nil), base.Languages...),
		WebGLVendor:         base.WebGLVendor,
		WebGLRenderer:       base.WebGLRenderer,
		ScreenWidth:         base.Viewport.Width,
		ScreenHeight:        base.Viewport.Height,
		Timezone:            base.Timezone,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
