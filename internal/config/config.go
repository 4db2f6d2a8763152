// The application's root configuration.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger"`
	Proxy        ProxyConfig        `mapstructure:"proxy"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Browser      BrowserConfig      `mapstructure:"browser"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Capture      CaptureConfig      `mapstructure:"capture"`
	Report       ReportConfig       `mapstructure:"report"`
	Store        StoreConfig        `mapstructure:"store"`
	GeoIP        GeoIPConfig        `mapstructure:"geoip"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// ProxyConfig holds the upstream proxy settings. Address takes either
// "host:port" or "user:pass@host:port"; when empty the PROXY_HOST family of
// environment variables is consulted instead.
type ProxyConfig struct {
	Address       string        `mapstructure:"address"`
	PreflightDial time.Duration `mapstructure:"preflight_dial"`
	SkipPreflight bool          `mapstructure:"skip_preflight"`
	Required      bool          `mapstructure:"required"`
}

// CatalogConfig points at the data files driving a run. Every file is
// optional; built-in defaults cover the missing ones.
type CatalogConfig struct {
	Devices   string `mapstructure:"devices"`
	Targets   string `mapstructure:"targets"`
	Libraries string `mapstructure:"libraries"`
}

// BrowserConfig holds settings for the headless browser.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
	ExecPath        string        `mapstructure:"exec_path"`
	Args            []string      `mapstructure:"args"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	NavRetries      int           `mapstructure:"nav_retries"`
}

// OrchestratorConfig holds settings for run execution.
type OrchestratorConfig struct {
	Mode           string        `mapstructure:"mode"` // sequential | parallel
	Concurrency    int           `mapstructure:"concurrency"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	Enhanced       bool          `mapstructure:"enhanced"`
	MaskWebRTC     bool          `mapstructure:"mask_webrtc"`
}

// CaptureConfig holds settings for the capture fallback chain.
type CaptureConfig struct {
	Dir            string        `mapstructure:"dir"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MinBytes       int64         `mapstructure:"min_bytes"`
}

// ReportConfig holds settings for run report artifacts.
type ReportConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

// StoreConfig holds settings for the optional Postgres results sink.
type StoreConfig struct {
	URL string `mapstructure:"url"`
}

// GeoIPConfig points at an optional GeoLite2-City database used to align the
// session timezone and geolocation with the proxy exit node.
type GeoIPConfig struct {
	CityDB string `mapstructure:"city_db"`
}

// SetDefaults registers a default for every key so a bare config file still
// yields a runnable setup.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "cloakbench")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("proxy.preflight_dial", 5*time.Second)
	v.SetDefault("proxy.skip_preflight", false)
	v.SetDefault("proxy.required", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.nav_timeout", 45*time.Second)
	v.SetDefault("browser.nav_retries", 2)

	v.SetDefault("orchestrator.mode", "sequential")
	v.SetDefault("orchestrator.concurrency", 3)
	v.SetDefault("orchestrator.session_timeout", 5*time.Minute)
	v.SetDefault("orchestrator.enhanced", true)
	v.SetDefault("orchestrator.mask_webrtc", true)

	v.SetDefault("capture.dir", "captures")
	v.SetDefault("capture.attempt_timeout", 10*time.Second)
	v.SetDefault("capture.min_bytes", 1024)

	v.SetDefault("report.dir", "reports")
	v.SetDefault("report.prefix", "stealth_run")
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
