// Package config handles loading and validating the voiceover configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the voiceover CLI and daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Narration  NarrationConfig  `mapstructure:"narration"`
	Lock       LockConfig       `mapstructure:"lock"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC health transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP API transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NarrationConfig holds the defaults applied to every narration job.
type NarrationConfig struct {
	OutputBase       string        `mapstructure:"output_base"`
	VoicesDir        string        `mapstructure:"voices_dir"`
	Language         string        `mapstructure:"language"`
	Speed            float64       `mapstructure:"speed"`
	SampleSpeed      float64       `mapstructure:"sample_speed"`
	ParagraphTimeout time.Duration `mapstructure:"paragraph_timeout"` // 0 disables the per-paragraph deadline
}

// LockConfig selects and configures the durable exclusion lock.
type LockConfig struct {
	Backend    string        `mapstructure:"backend"` // "file" or "sqlite"
	Path       string        `mapstructure:"path"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	Name       string        `mapstructure:"name"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// TTSConfig selects and configures the speech synthesis backend.
type TTSConfig struct {
	Backend            string        `mapstructure:"backend"` // "command", "piper" or "yandex"
	Model              string        `mapstructure:"model"`
	Device             string        `mapstructure:"device"`
	RemoveTrailingDots bool          `mapstructure:"remove_trailing_dots"`
	Command            CommandConfig `mapstructure:"command"`
	Piper              PiperConfig   `mapstructure:"piper"`
	Yandex             YandexConfig  `mapstructure:"yandex"`
}

// CommandConfig describes an external synthesis program.
//
// Args may reference {text}, {text_file}, {out}, {lang}, {voice}, {speed},
// {model} and {device}; each placeholder is substituted per paragraph.
type CommandConfig struct {
	Path string   `mapstructure:"path"`
	Args []string `mapstructure:"args"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. If both are set, Endpoints takes
// precedence and Endpoint is the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`  // Default Wyoming TCP endpoint (host:port)
	Endpoints map[string]string `mapstructure:"endpoints"` // ISO-639-1 language code -> Wyoming TCP endpoint
	Voices    map[string]string `mapstructure:"voices"`    // ISO-639-1 language code -> Piper voice model name
}

// YandexConfig holds Yandex SpeechKit v3 settings.
type YandexConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	FolderID string `mapstructure:"folder_id"`
	Voice    string `mapstructure:"voice"`
	Model    string `mapstructure:"model"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// DefaultCommandArgs invokes the Coqui TTS CLI with an XTTS model, once per
// sentence unit. The CLI has no speaking-rate option, so narration.speed only
// reaches engines whose Args reference {speed} (e.g. a helper script around
// the XTTS Python API).
var DefaultCommandArgs = []string{
	"--model_name", "{model}",
	"--text", "{text}",
	"--out_path", "{out}",
	"--speaker_wav", "{voice}",
	"--language_idx", "{lang}",
	"--device", "{device}",
}

// Load reads the configuration from .env, file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./voiceover.yaml, ./configs/voiceover.yaml, /etc/voiceover/voiceover.yaml.
func Load(configFile string) (*Config, error) {
	// .env is optional; values already present in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voiceover")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/voiceover")
	}

	// Environment variables: VOICEOVER_LOCK_STALE_AFTER, VOICEOVER_TTS_BACKEND, etc.
	v.SetEnvPrefix("VOICEOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${YANDEX_API_KEY}")
	cfg.TTS.Yandex.APIKey = resolveEnvRef(cfg.TTS.Yandex.APIKey)
	cfg.TTS.Yandex.FolderID = resolveEnvRef(cfg.TTS.Yandex.FolderID)

	if len(cfg.TTS.Command.Args) == 0 {
		cfg.TTS.Command.Args = append([]string(nil), DefaultCommandArgs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("narration.output_base", "./output")
	v.SetDefault("narration.voices_dir", "./voices")
	v.SetDefault("narration.language", "en")
	v.SetDefault("narration.speed", 0.85)
	v.SetDefault("narration.sample_speed", 0.9)
	v.SetDefault("narration.paragraph_timeout", "15m")
	v.SetDefault("lock.backend", "file")
	v.SetDefault("lock.path", filepath.Join(StateDir(), "voiceover.lock"))
	v.SetDefault("lock.sqlite_path", filepath.Join(StateDir(), "voiceover.db"))
	v.SetDefault("lock.name", "narration")
	v.SetDefault("lock.stale_after", "600s")
	v.SetDefault("tts.backend", "command")
	v.SetDefault("tts.model", "tts_models/multilingual/multi-dataset/xtts_v2")
	v.SetDefault("tts.device", "cuda")
	v.SetDefault("tts.remove_trailing_dots", true)
	v.SetDefault("tts.command.path", "tts")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.yandex.endpoint", "tts.api.cloud.yandex.net:443")
	v.SetDefault("tts.yandex.voice", "marina")
	v.SetDefault("tts.yandex.model", "general")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// StateDir is the per-user directory holding the lock record. It does not
// depend on the working directory, so every process of a user meets the
// same lock.
func StateDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "voiceover")
}

// Validate rejects settings the rest of the program cannot run with.
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	if c.Lock.StaleAfter <= 0 {
		return fmt.Errorf("lock.stale_after must be positive, got %s", c.Lock.StaleAfter)
	}
	switch c.TTS.Backend {
	case "command", "piper", "yandex":
	default:
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}
	if c.Narration.ParagraphTimeout < 0 {
		return fmt.Errorf("narration.paragraph_timeout must not be negative")
	}
	if c.Narration.Speed <= 0 {
		return fmt.Errorf("narration.speed must be positive, got %v", c.Narration.Speed)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
