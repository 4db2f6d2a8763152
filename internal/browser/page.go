package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// forceFontsJS collapses pending font loads so captures never stall on slow
// font fetches.
const forceFontsJS = `(function() {
if (document.fonts && document.fonts.ready) {
try { Object.defineProperty(document.fonts, 'ready', { value: Promise.resolve() }); } catch (e) {}
}
document.querySelectorAll('link[rel="stylesheet"]').forEach(function(link) {
if (link.href && link.href.indexOf('font') !== -1) { link.remove(); }
});
})();`

// Session is one isolated, identity-bound browser context. It satisfies the
// capture engine's page capability.
type Session struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	navRetries int
	logger     *zap.Logger
}

// run executes actions on the session tab, honoring the caller's deadline.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a target URL, retrying transient failures a bounded number
// of times. The identity was imprinted at session creation, so every
// navigation presents the same fingerprint.
func (s *Session) Navigate(ctx context.Context, url string) error {
	attempts := uint(s.navRetries + 1)
	err := retry.Do(
		func() error {
			navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
			defer cancel()
			return s.run(navCtx, chromedp.Navigate(url))
		},
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("Navigation retry.",
				zap.String("url", url), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// HTML returns the rendered document markup for egress verification.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page html: %w", err)
	}
	return html, nil
}

// Evaluate runs an expression in the page, discarding the result when res is
// nil.
func (s *Session) Evaluate(ctx context.Context, expr string, res any) error {
	return s.run(ctx, chromedp.Evaluate(expr, res))
}

// FullPage captures the whole document after forcing font readiness.
func (s *Session) FullPage(ctx context.Context, path string) error {
	var buf []byte
	err := s.run(ctx,
		chromedp.Evaluate(forceFontsJS, nil),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Viewport captures only the visible viewport.
func (s *Session) Viewport(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Element captures the first matching element.
func (s *Session) Element(ctx context.Context, selector, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.ByQuery)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Binary is the last-resort capture through the raw CDP command.
func (s *Session) Binary(ctx context.Context, path string) error {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, err := page.CaptureScreenshot().Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Close tears down the tab. Idempotent.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
