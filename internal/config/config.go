// Package config handles loading and validating the autoconnect configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingSecret is returned by Validate when a provider credential is absent.
var ErrMissingSecret = errors.New("missing required secret")

// Config is the root configuration for the autoconnect server.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	TTS         TTSConfig         `mapstructure:"tts"`
	Edge        EdgeConfig        `mapstructure:"edge"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the health check and metrics server settings.
type ServerConfig struct {
	HealthPort int  `mapstructure:"health_port"`
	Metrics    bool `mapstructure:"metrics"` // expose /metrics on the health port
}

// HTTPConfig configures the public chat API.
type HTTPConfig struct {
	Port           int             `mapstructure:"port"`
	MaxUploadBytes int64           `mapstructure:"max_upload_bytes"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For, X-Real-IP
	// or True-Client-IP. Enable it only behind an edge that overwrites them.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// RateLimitConfig bounds how many pipeline requests one client IP may make per window.
// A zero Requests value disables limiting.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// InterpreterConfig holds settings for the OpenAI-compatible API used for both
// transcription and chat completion (Groq by default).
type InterpreterConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	CompletionModel    string        `mapstructure:"completion_model"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// TTSConfig holds ElevenLabs text-to-speech settings.
type TTSConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	VoiceID      string        `mapstructure:"voice_id"`
	ModelID      string        `mapstructure:"model_id"`
	OutputFormat string        `mapstructure:"output_format"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// EdgeConfig names the request headers the hosting platform's edge layer uses
// to describe the caller. Every header is optional at request time.
type EdgeConfig struct {
	CountryHeader   string `mapstructure:"country_header"`
	RegionHeader    string `mapstructure:"region_header"`
	CityHeader      string `mapstructure:"city_header"`
	TimezoneHeader  string `mapstructure:"timezone_header"`
	RequestIDHeader string `mapstructure:"request_id_header"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./autoconnect.yaml, ./configs/autoconnect.yaml, /etc/autoconnect/autoconnect.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.metrics", true)
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.max_upload_bytes", 25<<20)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.trust_proxy_headers", false)
	v.SetDefault("http.rate_limit.requests", 20)
	v.SetDefault("http.rate_limit.window", time.Minute)
	v.SetDefault("interpreter.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("interpreter.transcription_model", "whisper-large-v3")
	v.SetDefault("interpreter.completion_model", "llama3-8b-8192")
	v.SetDefault("interpreter.timeout", 60*time.Second)
	v.SetDefault("tts.base_url", "https://api.elevenlabs.io/v1")
	v.SetDefault("tts.voice_id", "cgSgspJ2msm6clMCkdW9") // "Jessica"
	v.SetDefault("tts.model_id", "eleven_turbo_v2_5")
	v.SetDefault("tts.output_format", "mp3_44100_128")
	v.SetDefault("tts.timeout", 60*time.Second)
	v.SetDefault("edge.country_header", "x-vercel-ip-country")
	v.SetDefault("edge.region_header", "x-vercel-ip-country-region")
	v.SetDefault("edge.city_header", "x-vercel-ip-city")
	v.SetDefault("edge.timezone_header", "x-vercel-ip-timezone")
	v.SetDefault("edge.request_id_header", "x-vercel-id")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("autoconnect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/autoconnect")
	}

	// Environment variables: AUTOCONNECT_HTTP_PORT, AUTOCONNECT_TTS_VOICE_ID, etc.
	v.SetEnvPrefix("AUTOCONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The provider credentials also answer to their conventional names.
	_ = v.BindEnv("interpreter.api_key", "AUTOCONNECT_INTERPRETER_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("tts.api_key", "AUTOCONNECT_TTS_API_KEY", "ELEVENLABS_API_KEY")

	// Read config file (optional: env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${GROQ_API_KEY}")
	cfg.Interpreter.APIKey = resolveEnvRef(cfg.Interpreter.APIKey)
	cfg.TTS.APIKey = resolveEnvRef(cfg.TTS.APIKey)

	return &cfg, nil
}

// Validate reports configuration the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Interpreter.APIKey) == "" {
		return fmt.Errorf("%w: GROQ_API_KEY (interpreter.api_key)", ErrMissingSecret)
	}
	if strings.TrimSpace(c.TTS.APIKey) == "" {
		return fmt.Errorf("%w: ELEVENLABS_API_KEY (tts.api_key)", ErrMissingSecret)
	}
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unresolvable reference yields an empty string so Validate can reject it.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
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
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
