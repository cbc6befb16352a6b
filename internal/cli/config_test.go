package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Backend != backendGoroutine || s.Retries != 1 || s.LogLevel != "warn" || s.LogFormat != "console" {
		t.Errorf("unexpected defaults %+v", s)
	}
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poolme.yaml")
	content := `
workers: 3
backend: process
retries: 4
retry-delay: 250ms
rate-limit: 10
burst: 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := loadSettings(viper.New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Workers != 3 || s.Backend != backendProcess || s.Retries != 4 {
		t.Errorf("unexpected settings %+v", s)
	}
	if s.RetryDelay != 250*time.Millisecond || s.RateLimit != 10 || s.Burst != 2 {
		t.Errorf("unexpected retry or rate settings %+v", s)
	}
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poolme.yaml")
	if err := os.WriteFile(path, []byte("workers: 3\nlog-level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POOLME_WORKERS", "7")
	t.Setenv("POOLME_LOG_LEVEL", "debug")

	s, err := loadSettings(viper.New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Workers != 7 || s.LogLevel != "debug" {
		t.Errorf("expected env to win, got %+v", s)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	if _, err := loadSettings(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestSettings_Validate(t *testing.T) {
	valid := Settings{Backend: backendGoroutine, Retries: 1, Burst: 1, LogFormat: "console"}

	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"valid", func(*Settings) {}, ""},
		{"backend", func(s *Settings) { s.Backend = "threads" }, "unknown backend"},
		{"workers", func(s *Settings) { s.Workers = -1 }, "workers"},
		{"queue", func(s *Settings) { s.QueueCapacity = -1 }, "queue capacity"},
		{"retries", func(s *Settings) { s.Retries = 0 }, "retries"},
		{"rate", func(s *Settings) { s.RateLimit = -1 }, "rate limit"},
		{"burst", func(s *Settings) { s.RateLimit = 5; s.Burst = 0 }, "burst"},
		{"format", func(s *Settings) { s.LogFormat = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		if _, err := newLogger("info", format); err != nil {
			t.Errorf("%s: unexpected error: %v", format, err)
		}
	}
	if _, err := newLogger("loud", "console"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestLoadSettings_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("POOLME_BACKEND", "process")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addSettingsFlags(fs)
	if err := fs.Parse([]string{"--backend", "goroutine", "--retries", "3"}); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		t.Fatal(err)
	}

	s, err := loadSettings(v, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Backend != backendGoroutine || s.Retries != 3 {
		t.Errorf("expected flags to win, got %+v", s)
	}
}
