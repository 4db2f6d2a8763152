package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

// ApplyIdentity returns the action sequence that imprints one session
// identity onto a fresh browser context: network headers, emulation
// overrides, and the runtime patch program registered before any page script
// runs.
func ApplyIdentity(rec schemas.FingerprintRecord, script string, logger *zap.Logger) chromedp.Action {
	l := logger.Named("identity")
	return chromedp.Tasks{
		network.Enable(),
		setAcceptLanguage(rec, l),
		setUserAgent(rec, l),
		setDeviceMetrics(rec, l),
		setEnvironment(rec, l),
		registerPatchScript(script, l),
		page.SetWebLifecycleState(page.SetWebLifecycleStateStateActive),
		chromedp.ActionFunc(func(ctx context.Context) error {
			l.Debug("Identity applied.",
				zap.String("session_id", rec.SessionID),
				zap.String("device", rec.Profile.DeviceName))
			return nil
		}),
	}
}

func setAcceptLanguage(rec schemas.FingerprintRecord, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(rec.Languages) == 0 {
			return nil
		}
		formatted := rec.Languages[0]
		for i := 1; i < len(rec.Languages); i++ {
			q := 1.0 - float64(i)*0.1
			if q < 0.7 {
				q = 0.7
			}
			formatted += fmt.Sprintf(",%s;q=%.1f", rec.Languages[i], q)
		}
		headers := map[string]interface{}{"Accept-Language": formatted}
		if err := network.SetExtraHTTPHeaders(network.Headers(headers)).Do(ctx); err != nil {
			return fmt.Errorf("setting accept-language header: %w", err)
		}
		return nil
	})
}

func setUserAgent(rec schemas.FingerprintRecord, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		override := emulation.SetUserAgentOverride(rec.UserAgent).
			WithPlatform(rec.NavigatorPlatform).
			WithAcceptLanguage(strings.Join(rec.Languages, ","))

		if meta := clientHints(rec); meta != nil {
			override = override.WithUserAgentMetadata(meta)
		}
		if err := override.Do(ctx); err != nil {
			return fmt.Errorf("setting user agent override: %w", err)
		}
		return nil
	})
}

// clientHints derives Sec-CH-UA metadata from the platform family so the
// high-entropy hint surface agrees with the user agent string.
func clientHints(rec schemas.FingerprintRecord) *emulation.UserAgentMetadata {
	switch rec.Profile.Platform {
	case schemas.PlatformAndroid:
		return &emulation.UserAgentMetadata{
			Platform:        "Android",
			PlatformVersion: rec.Profile.OSVersion,
			Model:           rec.Profile.DeviceName,
			Mobile:          true,
			Architecture:    "",
			Bitness:         "",
		}
	case schemas.PlatformIOS:
		return &emulation.UserAgentMetadata{
			Platform:        "iOS",
			PlatformVersion: rec.Profile.OSVersion,
			Mobile:          true,
		}
	default:
		return nil
	}
}

func setDeviceMetrics(rec schemas.FingerprintRecord, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		vp := rec.Profile.Viewport
		if vp.Width <= 0 || vp.Height <= 0 {
			return nil
		}
		orientation := emulation.OrientationTypePortraitPrimary
		if vp.Width > vp.Height {
			orientation = emulation.OrientationTypeLandscapePrimary
		}
		err := emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), rec.Profile.PixelRatio, true).
			WithScreenOrientation(&emulation.ScreenOrientation{Type: orientation, Angle: 0}).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("setting device metrics: %w", err)
		}
		err = emulation.SetTouchEmulationEnabled(true).
			WithMaxTouchPoints(int64(rec.MaxTouchPoints)).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("enabling touch emulation: %w", err)
		}
		return nil
	})
}

func setEnvironment(rec schemas.FingerprintRecord, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if rec.Timezone != "" {
			if err := emulation.SetTimezoneOverride(rec.Timezone).Do(ctx); err != nil {
				return fmt.Errorf("setting timezone override: %w", err)
			}
		}
		if rec.Language != "" {
			locale := strings.ReplaceAll(rec.Language, "_", "-")
			if err := emulation.SetLocaleOverride().WithLocale(locale).Do(ctx); err != nil {
				return fmt.Errorf("setting locale override: %w", err)
			}
		}
		if geo := rec.Geolocation; geo != nil {
			err := emulation.SetGeolocationOverride().
				WithLatitude(geo.Latitude).
				WithLongitude(geo.Longitude).
				WithAccuracy(geo.Accuracy).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("setting geolocation override: %w", err)
			}
		}
		return nil
	})
}

func registerPatchScript(script string, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if script == "" {
			return nil
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("registering patch script: %w", err)
		}
		logger.Debug("Patch script registered.", zap.Int("bytes", len(script)))
		return nil
	})
}
