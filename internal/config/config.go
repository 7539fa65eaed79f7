package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved synthesizer configuration: where the voice
// bundle and labels live, how many goroutines the parameter-generation and
// vocoder stages may use, the optional HTTP server, and the DSP knobs that
// shape the rendered waveform.
type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Server   ServerConfig  `mapstructure:"server"`
	Synth    SynthConfig   `mapstructure:"synth"`
	LogLevel string        `mapstructure:"log_level"`
}

// PathsConfig locates the on-disk inputs.
type PathsConfig struct {
	VoicePath    string `mapstructure:"voice_path"`
	VoiceManifest string `mapstructure:"voice_manifest"`
	LabelPath    string `mapstructure:"label_path"`
}

// RuntimeConfig controls concurrency and determinism knobs.
type RuntimeConfig struct {
	Workers     int  `mapstructure:"workers"`
	DeterministicSeed bool `mapstructure:"deterministic_seed"`
}

// ServerConfig configures the optional HTTP synthesis server.
type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_secs"`
	MaxLabelBytes   int    `mapstructure:"max_label_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout_secs"`
}

// SynthConfig exposes the Engine's per-call tunables (spec 4.6 setters).
type SynthConfig struct {
	Voice                string    `mapstructure:"voice"`
	Interpolation        string    `mapstructure:"interpolation"`
	InterpolationWeights []float64 `mapstructure:"interpolation_weights"`
	SpeechSpeedRate      float64   `mapstructure:"speech_speed_rate"`
	AdditionalHalfTone   float64   `mapstructure:"additional_half_tone"`
	MSDThreshold         float64   `mapstructure:"msd_threshold"`
	GVWeight             float64   `mapstructure:"gv_weight"`
	UseGV                bool      `mapstructure:"use_gv"`
	Alpha                float64   `mapstructure:"alpha"`
	Beta                 float64   `mapstructure:"postfilter_beta"`
	Stage                int       `mapstructure:"stage"`
	UseLogGain           bool      `mapstructure:"use_log_gain"`
	VolumeGain           float64   `mapstructure:"volume"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			VoicePath:     "voices/nitech_jp_atr503_m001.htsvoice",
			VoiceManifest: "",
			LabelPath:     "",
		},
		Runtime: RuntimeConfig{
			Workers:           2,
			DeterministicSeed: true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			ShutdownTimeout: 30,
			MaxLabelBytes:   1 << 20,
			RequestTimeout:  60,
		},
		Synth: SynthConfig{
			Voice:              "",
			Interpolation:      InterpolationNone,
			SpeechSpeedRate:    1.0,
			AdditionalHalfTone: 0.0,
			MSDThreshold:       0.5,
			GVWeight:           1.0,
			UseGV:              true,
			Alpha:              0.42,
			Beta:               0.0,
			Stage:              0,
			UseLogGain:         false,
			VolumeGain:         1.0,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-voice-path", defaults.Paths.VoicePath, "Path to a .htsvoice bundle")
	fs.String("paths-voice-manifest", defaults.Paths.VoiceManifest, "Path to a JSON manifest of named voices")
	fs.String("paths-label-path", defaults.Paths.LabelPath, "Path to a full-context label file (- for stdin)")
	fs.Int("workers", defaults.Runtime.Workers, "Worker count stored as runtime.workers (not read by the synthesis pipeline)")
	fs.Bool("deterministic-seed", defaults.Runtime.DeterministicSeed, "Reset the excitation PRNG seed at the start of every synthesis call")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent synthesis requests")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain timeout in seconds")
	fs.Int("max-label-bytes", defaults.Server.MaxLabelBytes, "Maximum POST /synthesize label size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis timeout in seconds")
	fs.String("voice", defaults.Synth.Voice, "Voice id to select from the manifest (overrides paths-voice-path)")
	fs.String("interpolation", defaults.Synth.Interpolation, "Voice interpolation mode (none|equal|custom)")
	fs.Float64Slice("interpolation-weights", defaults.Synth.InterpolationWeights, "Per-voice weights for interpolation=custom, applied to duration and every stream (must sum to 1)")
	fs.Float64("speech-speed-rate", defaults.Synth.SpeechSpeedRate, "Speech speed multiplier (>1 faster, <1 slower)")
	fs.Float64("additional-half-tone", defaults.Synth.AdditionalHalfTone, "F0 shift applied in log-F0 half-tone units")
	fs.Float64("msd-threshold", defaults.Synth.MSDThreshold, "Voiced/unvoiced MSD probability threshold")
	fs.Float64("gv-weight", defaults.Synth.GVWeight, "Global variance weight (0 disables GV re-conditioning)")
	fs.Bool("use-gv", defaults.Synth.UseGV, "Enable global-variance re-conditioning")
	fs.Float64("alpha", defaults.Synth.Alpha, "Mel warping coefficient for the MLSA/MGLSA filter")
	fs.Float64("postfilter-beta", defaults.Synth.Beta, "Spectral postfilter sharpening coefficient (0 disables)")
	fs.Int("stage", defaults.Synth.Stage, "MGLSA gamma stage (0 selects MLSA/log-gain mode)")
	fs.Bool("use-log-gain", defaults.Synth.UseLogGain, "Use log gain output from the duration/parameter models")
	fs.Float64("volume", defaults.Synth.VolumeGain, "Linear output volume multiplier")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("JBONSAI")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("jbonsai")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.voice_path", c.Paths.VoicePath)
	v.SetDefault("paths.voice_manifest", c.Paths.VoiceManifest)
	v.SetDefault("paths.label_path", c.Paths.LabelPath)
	v.SetDefault("runtime.workers", c.Runtime.Workers)
	v.SetDefault("runtime.deterministic_seed", c.Runtime.DeterministicSeed)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout_secs", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_label_bytes", c.Server.MaxLabelBytes)
	v.SetDefault("server.request_timeout_secs", c.Server.RequestTimeout)
	v.SetDefault("synth.voice", c.Synth.Voice)
	v.SetDefault("synth.interpolation", c.Synth.Interpolation)
	v.SetDefault("synth.interpolation_weights", c.Synth.InterpolationWeights)
	v.SetDefault("synth.speech_speed_rate", c.Synth.SpeechSpeedRate)
	v.SetDefault("synth.additional_half_tone", c.Synth.AdditionalHalfTone)
	v.SetDefault("synth.msd_threshold", c.Synth.MSDThreshold)
	v.SetDefault("synth.gv_weight", c.Synth.GVWeight)
	v.SetDefault("synth.use_gv", c.Synth.UseGV)
	v.SetDefault("synth.alpha", c.Synth.Alpha)
	v.SetDefault("synth.postfilter_beta", c.Synth.Beta)
	v.SetDefault("synth.stage", c.Synth.Stage)
	v.SetDefault("synth.use_log_gain", c.Synth.UseLogGain)
	v.SetDefault("synth.volume", c.Synth.VolumeGain)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.voice_path", "paths-voice-path")
	v.RegisterAlias("paths.voice_manifest", "paths-voice-manifest")
	v.RegisterAlias("paths.label_path", "paths-label-path")
	v.RegisterAlias("runtime.workers", "workers")
	v.RegisterAlias("runtime.deterministic_seed", "deterministic-seed")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "server-workers")
	v.RegisterAlias("server.shutdown_timeout_secs", "shutdown-timeout")
	v.RegisterAlias("server.max_label_bytes", "max-label-bytes")
	v.RegisterAlias("server.request_timeout_secs", "request-timeout")
	v.RegisterAlias("synth.voice", "voice")
	v.RegisterAlias("synth.interpolation", "interpolation")
	v.RegisterAlias("synth.interpolation_weights", "interpolation-weights")
	v.RegisterAlias("synth.speech_speed_rate", "speech-speed-rate")
	v.RegisterAlias("synth.additional_half_tone", "additional-half-tone")
	v.RegisterAlias("synth.msd_threshold", "msd-threshold")
	v.RegisterAlias("synth.gv_weight", "gv-weight")
	v.RegisterAlias("synth.use_gv", "use-gv")
	v.RegisterAlias("synth.alpha", "alpha")
	v.RegisterAlias("synth.postfilter_beta", "postfilter-beta")
	v.RegisterAlias("synth.stage", "stage")
	v.RegisterAlias("synth.use_log_gain", "use-log-gain")
	v.RegisterAlias("synth.volume", "volume")
	v.RegisterAlias("log_level", "log-level")
}
