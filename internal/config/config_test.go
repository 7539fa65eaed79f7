package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	return &fakeBinder{fs: fs}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Paths.VoicePath != "voices/nitech_jp_atr503_m001.htsvoice" {
		t.Errorf("Paths.VoicePath = %q", cfg.Paths.VoicePath)
	}
	if cfg.Runtime.Workers != 2 {
		t.Errorf("Runtime.Workers = %d; want 2", cfg.Runtime.Workers)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Synth.Interpolation != InterpolationNone {
		t.Errorf("Synth.Interpolation = %q; want %q", cfg.Synth.Interpolation, InterpolationNone)
	}
	if cfg.Synth.SpeechSpeedRate != 1.0 {
		t.Errorf("Synth.SpeechSpeedRate = %v; want 1.0", cfg.Synth.SpeechSpeedRate)
	}
	if !cfg.Synth.UseGV {
		t.Error("Synth.UseGV = false; want true")
	}
	if cfg.Synth.Alpha != 0.42 {
		t.Errorf("Synth.Alpha = %v; want 0.42", cfg.Synth.Alpha)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

func TestNormalizeInterpolation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"none lowercase", "none", "none", false},
		{"equal uppercase", "EQUAL", "equal", false},
		{"custom with spaces", "  custom  ", "custom", false},
		{"empty defaults to none", "", "none", false},
		{"invalid value", "bogus", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeInterpolation(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeInterpolation(%q) = %q, nil; want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Errorf("NormalizeInterpolation(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeInterpolation(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"paths-voice-path", "voices/nitech_jp_atr503_m001.htsvoice"},
		{"server-listen-addr", ":8080"},
		{"alpha", "0.42"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}
		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.VoicePath != defaults.Paths.VoicePath {
		t.Errorf("VoicePath = %q; want %q", cfg.Paths.VoicePath, defaults.Paths.VoicePath)
	}
	if cfg.Synth.Alpha != defaults.Synth.Alpha {
		t.Errorf("Alpha = %v; want %v", cfg.Synth.Alpha, defaults.Synth.Alpha)
	}
	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, defaults.LogLevel)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse([]string{
		"--alpha=0.55",
		"--server-workers=8",
		"--log-level=debug",
	}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Synth.Alpha != 0.55 {
		t.Errorf("Synth.Alpha = %v; want 0.55", cfg.Synth.Alpha)
	}
	if cfg.Server.Workers != 8 {
		t.Errorf("Server.Workers = %d; want 8", cfg.Server.Workers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("JBONSAI_LOG_LEVEL", "warn")
	t.Setenv("JBONSAI_SERVER_LISTEN_ADDR", ":9999")

	defaults := DefaultConfig()
	cfg, err := Load(LoadOptions{
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}
	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "jbonsai.yaml")
	content := `
log_level: error
server:
  workers: 16
  listen_addr: ":7777"
synth:
  alpha: 0.55
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	if err := fs.Parse([]string{
		"--log-level=error",
		"--server-workers=16",
		"--server-listen-addr=:7777",
		"--alpha=0.55",
	}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:        &fakeBinder{fs: fs},
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}
	if cfg.Server.Workers != 16 {
		t.Errorf("Server.Workers = %d; want 16", cfg.Server.Workers)
	}
	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":7777")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/jbonsai.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestLoad_NilCmd(t *testing.T) {
	cfg, err := Load(LoadOptions{
		Cmd:      nil,
		Defaults: DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_ = cfg.Paths.VoicePath
	_ = cfg.Server.Workers
}
