package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	keyWorkers       = "workers"
	keyBackend       = "backend"
	keyLogLevel      = "log-level"
	keyLogFormat     = "log-format"
	keyQueueCapacity = "queue-capacity"
	keyRetries       = "retries"
	keyRetryDelay    = "retry-delay"
	keyRateLimit     = "rate-limit"
	keyBurst         = "burst"

	backendGoroutine = "goroutine"
	backendProcess   = "process"
)

// Settings are the pool and logging settings shared by every command.
type Settings struct {
	Workers       int           `mapstructure:"workers"`
	Backend       string        `mapstructure:"backend"`
	LogLevel      string        `mapstructure:"log-level"`
	LogFormat     string        `mapstructure:"log-format"`
	QueueCapacity int           `mapstructure:"queue-capacity"`
	Retries       int           `mapstructure:"retries"`
	RetryDelay    time.Duration `mapstructure:"retry-delay"`
	RateLimit     float64       `mapstructure:"rate-limit"`
	Burst         int           `mapstructure:"burst"`
}

// addSettingsFlags defines one flag per Settings field. Flag names double as viper keys.
func addSettingsFlags(fs *pflag.FlagSet) {
	fs.Int(keyWorkers, 0, "number of workers (0 = GOMAXPROCS)")
	fs.String(keyBackend, backendGoroutine, "worker backend: goroutine or process")
	fs.String(keyLogLevel, "warn", "log level: debug, info, warn, error")
	fs.String(keyLogFormat, "console", "log format: console or json")
	fs.Int(keyQueueCapacity, 0, "bounded queue capacity (0 = unbounded)")
	fs.Int(keyRetries, 1, "attempts per task, including the first")
	fs.Duration(keyRetryDelay, 0, "delay before the first retry")
	fs.Float64(keyRateLimit, 0, "maximum tasks started per second (0 = unlimited)")
	fs.Int(keyBurst, 1, "rate limiter burst size")
}

// loadSettings resolves Settings from bound flags, POOLME_* variables, cfgFile and
// defaults, in that order.
func loadSettings(v *viper.Viper, cfgFile string) (Settings, error) {
	v.SetEnvPrefix("POOLME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyBackend, backendGoroutine)
	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyLogFormat, "console")
	v.SetDefault(keyRetries, 1)
	v.SetDefault(keyBurst, 1)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	switch {
	case s.Backend != backendGoroutine && s.Backend != backendProcess:
		return fmt.Errorf("unknown backend %q, want %s or %s", s.Backend, backendGoroutine, backendProcess)
	case s.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", s.Workers)
	case s.QueueCapacity < 0:
		return fmt.Errorf("queue capacity must not be negative, got %d", s.QueueCapacity)
	case s.Retries < 1:
		return fmt.Errorf("retries must be at least 1, got %d", s.Retries)
	case s.RateLimit < 0:
		return fmt.Errorf("rate limit must not be negative, got %v", s.RateLimit)
	case s.RateLimit > 0 && s.Burst < 1:
		return fmt.Errorf("burst must be at least 1 with a rate limit, got %d", s.Burst)
	case s.LogFormat != "console" && s.LogFormat != "json":
		return fmt.Errorf("unknown log format %q", s.LogFormat)
	}
	return nil
}

// newLogger builds a zap logger writing to stderr so that logs never mix with
// command output.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel

	return cfg.Build()
}
