package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
	"github.com/xkilldash9x/cloakbench/internal/browser"
	"github.com/xkilldash9x/cloakbench/internal/capture"
	"github.com/xkilldash9x/cloakbench/internal/catalog"
	"github.com/xkilldash9x/cloakbench/internal/config"
	"github.com/xkilldash9x/cloakbench/internal/fingerprint"
	"github.com/xkilldash9x/cloakbench/internal/injection"
	"github.com/xkilldash9x/cloakbench/internal/observability"
	"github.com/xkilldash9x/cloakbench/internal/orchestrator"
	"github.com/xkilldash9x/cloakbench/internal/pacing"
	"github.com/xkilldash9x/cloakbench/internal/profiles"
	"github.com/xkilldash9x/cloakbench/internal/proxycheck"
	"github.com/xkilldash9x/cloakbench/internal/report"
	"github.com/xkilldash9x/cloakbench/internal/store"
)

var runFlags struct {
	library string
	all     bool
	status  string
	mode    string
	device  string
	seed    int64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stealth evaluation matrix.",
	Long: `Run evaluates the selected automation libraries against the detection
target catalog. Each library gets a fresh device identity and an isolated
browser session; every (library, target) pair produces exactly one result.`,
	RunE: runMatrix,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.library, "library", "l", "", "evaluate a single library by id")
	runCmd.Flags().BoolVar(&runFlags.all, "all", false, "evaluate every library in the matrix")
	runCmd.Flags().StringVar(&runFlags.status, "status", "", "evaluate libraries with this matrix status (working|testing|issues)")
	runCmd.Flags().StringVar(&runFlags.mode, "mode", "", "execution mode override (sequential|parallel)")
	runCmd.Flags().StringVar(&runFlags.device, "device", "", "device platform hint (ios|android)")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 0, "seed for device selection and jitter (0 = random)")
}

func runMatrix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()
	logger := observability.GetLogger()
	defer observability.Sync()

	if runFlags.library == "" && !runFlags.all && runFlags.status == "" {
		return errors.New("select libraries with --library, --status or --all")
	}

	hint, err := parseDeviceHint(runFlags.device)
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.Catalog.Targets, cfg.Catalog.Libraries, logger)
	if err != nil {
		return err
	}
	selected, err := cat.SelectLibraries(runFlags.library, runFlags.status)
	if err != nil {
		return err
	}
	targets := cat.Targets()

	proxy, expectedIP, opts, err := resolveEgress(ctx, cfg, logger)
	if err != nil {
		return err
	}
	opts.Enhance = cfg.Orchestrator.Enhanced
	opts.MaskWebRTC = cfg.Orchestrator.MaskWebRTC

	captureEngine, err := capture.NewEngine(cfg.Capture, logger)
	if err != nil {
		return err
	}
	reportWriter, err := report.NewWriter(cfg.Report, logger)
	if err != nil {
		return err
	}

	runner, err := browser.NewRunner(ctx, cfg.Browser, proxy, logger)
	if err != nil {
		return err
	}
	defer runner.Shutdown()

	executor := orchestrator.NewBrowserExecutor(orchestrator.BrowserExecutorDeps{
		Runner:      runner,
		Profiles:    profiles.NewStore(cfg.Catalog.Devices, runFlags.seed, logger),
		Synthesizer: fingerprint.NewSynthesizer(fingerprint.NewStatistical(runFlags.seed), logger),
		Builder:     injection.NewBuilder(logger),
		Capture:     captureEngine,
		Pacing:      pacing.NewPolicy(runFlags.seed),
		Options:     opts,
		DeviceHint:  hint,
		ExpectedIP:  expectedIP,
	}, logger)

	orchCfg := cfg.Orchestrator
	if runFlags.mode != "" {
		orchCfg.Mode = runFlags.mode
	}

	var preflight orchestrator.Preflight
	if proxy != nil && !cfg.Proxy.SkipPreflight {
		validator := proxycheck.NewValidator(cfg.Proxy.PreflightDial, logger)
		spec := *proxy
		preflight = func(ctx context.Context) error {
			return validator.Preflight(ctx, spec)
		}
	}

	runReport, err := orchestrator.New(orchCfg, executor, preflight, logger).
		Run(ctx, selected, targets)
	if err != nil {
		return err
	}

	if _, err := reportWriter.Write(runReport); err != nil {
		return err
	}
	persistRun(ctx, cfg.Store, runReport, logger)

	if !runReport.AllSucceeded() {
		return fmt.Errorf("run %s finished with non-success results", runReport.RunID)
	}
	return nil
}

// resolveEgress settles the proxy and the identity environment derived from
// its exit node. Running without a proxy is allowed unless required.
func resolveEgress(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*proxycheck.Spec, string, fingerprint.BuildOptions, error) {
	var opts fingerprint.BuildOptions

	spec, err := proxycheck.Resolve(cfg.Proxy.Address)
	if errors.Is(err, proxycheck.ErrNoProxy) {
		if cfg.Proxy.Required {
			return nil, "", opts, errors.New("proxy required but none configured")
		}
		logger.Warn("No proxy configured; running with direct egress.")
		return nil, "", opts, nil
	}
	if err != nil {
		return nil, "", opts, err
	}

	resolver := proxycheck.NewGeoResolver(cfg.GeoIP.CityDB, logger)
	defer resolver.Close()
	exit := resolver.Resolve(ctx, spec)

	// The candidate rewrite substitutes this value into the address slot of
	// every masked ICE candidate, so it must be a bare IP (or at worst a bare
	// hostname when DNS fails), never host:port.
	maskAddr := exit.IP
	if maskAddr == "" {
		maskAddr = spec.Host
	}
	opts.ProxyAddress = maskAddr
	opts.Timezone = exit.Timezone
	opts.Geolocation = exit.Geolocation()

	logger.Info("Proxy egress resolved.",
		zap.String("endpoint", spec.Endpoint()),
		zap.String("exit_ip", exit.IP),
		zap.String("timezone", exit.Timezone),
		zap.String("method", exit.Method))
	return &spec, exit.IP, opts, nil
}

// persistRun ships the report to the optional Postgres sink. Failures are
// logged, never fatal: the JSON artifact is already on disk.
func persistRun(ctx context.Context, cfg config.StoreConfig, runReport *schemas.RunReport, logger *zap.Logger) {
	if cfg.URL == "" {
		return
	}
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		logger.Warn("Results sink unavailable.", zap.Error(err))
		return
	}
	defer pool.Close()

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		logger.Warn("Results sink unavailable.", zap.Error(err))
		return
	}
	if err := s.PersistRun(ctx, runReport); err != nil {
		logger.Warn("Failed to persist run.", zap.Error(err))
		return
	}
	logger.Info("Run persisted.", zap.String("run_id", runReport.RunID))
}

func parseDeviceHint(device string) (schemas.PlatformFamily, error) {
	switch device {
	case "":
		return "", nil
	case "ios":
		return schemas.PlatformIOS, nil
	case "android":
		return schemas.PlatformAndroid, nil
	default:
		return "", fmt.Errorf("unknown device platform %q (want ios or android)", device)
	}
}
