package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/internal/config"
	"github.com/xkilldash9x/cloakbench/internal/observability"
)

// Version is injected at build time.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "cloakbench",
	Short:   "Cloakbench evaluates browser automation stealth against detection surfaces.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		if err := config.Load(viper.GetViper()); err != nil {
			observability.InitializeLogger(config.LoggerConfig{
				Level: "info", Format: "console", ServiceName: "cloakbench",
			})
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg := config.Get()
		if verbose {
			cfg.Logger.Level = "debug"
		}
		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting cloakbench",
			zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with a context so signals shut the run down
// gracefully.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "force debug-level logging")
	rootCmd.AddCommand(runCmd)
}

// initializeConfig reads the config file and environment variables.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CLOAKBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("store.url", "CLOAKBENCH_STORE_URL")
	_ = viper.BindEnv("proxy.address", "CLOAKBENCH_PROXY_ADDRESS")
	_ = viper.BindEnv("geoip.city_db", "CLOAKBENCH_GEOIP_CITY_DB")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
