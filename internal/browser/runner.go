// Package browser drives headless Chrome through chromedp. The Runner owns
// the allocator; each test session gets its own isolated context carrying one
// identity.
package browser

import (
	"context"
	"fmt"
	"net/url"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
	"github.com/xkilldash9x/cloakbench/internal/config"
	"github.com/xkilldash9x/cloakbench/internal/proxycheck"
)

// Runner manages the browser executable and creates identity-bound sessions.
type Runner struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewRunner starts the exec allocator. proxy may be nil for direct egress.
func NewRunner(ctx context.Context, cfg config.BrowserConfig, proxy *proxycheck.Spec, logger *zap.Logger) (*Runner, error) {
	r := &Runner{cfg: cfg, logger: logger.Named("browser")}

	opts, err := r.allocatorOptions(proxy)
	if err != nil {
		return nil, err
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(ctx, opts...)

	r.logger.Info("Browser runner initialized.",
		zap.Bool("headless", cfg.Headless),
		zap.Bool("proxied", proxy != nil))
	return r, nil
}

func (r *Runner) allocatorOptions(proxy *proxycheck.Spec) ([]chromedp.ExecAllocatorOption, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if r.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}

	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", r.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", r.cfg.IgnoreTLSErrors),
	)

	for _, arg := range r.cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	if proxy != nil {
		server := proxy.ServerURL()
		if _, err := url.Parse(server); err != nil {
			return nil, fmt.Errorf("invalid proxy server %q: %w", server, err)
		}
		opts = append(opts, chromedp.ProxyServer(server))
	}
	return opts, nil
}

// NewSession creates an isolated browser context and imprints the identity
// before any navigation. Launch failure here is fatal to the enclosing run.
func (r *Runner) NewSession(ctx context.Context, rec schemas.FingerprintRecord, script string) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(r.logger.Sugar().Debugf),
		chromedp.WithErrorf(r.logger.Sugar().Errorf),
	)

	// Tie the tab to the caller's lifetime.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-tabCtx.Done():
		}
	}()

	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("launching browser context: %w", err)
	}
	if err := chromedp.Run(tabCtx, ApplyIdentity(rec, script, r.logger)); err != nil {
		cancel()
		return nil, fmt.Errorf("applying session identity: %w", err)
	}

	return &Session{
		ctx:        tabCtx,
		cancel:     cancel,
		navTimeout: r.cfg.NavTimeout,
		navRetries: r.cfg.NavRetries,
		logger:     r.logger.Named("session"),
	}, nil
}

// Shutdown stops the allocator and every remaining context under it.
func (r *Runner) Shutdown() {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	r.logger.Debug("Browser runner shut down.")
}
