// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables always win over file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// TTS backend tags, selectable per call via the offer request.
const (
	TTSDeepgram = "deepgram"
	TTSEdge     = "edge"
)

// Config holds the service configuration.
type Config struct {
	HTTPAddress string `yaml:"http_address"`
	LogLevel    string `yaml:"log_level"`

	GoogleAPIKey   string `yaml:"-"`
	GeminiModel    string `yaml:"gemini_model"`
	DeepgramAPIKey string `yaml:"-"`

	STTLanguage   string `yaml:"stt_language"`
	STTModel      string `yaml:"stt_model"`
	DefaultTTS    string `yaml:"default_tts"`
	DeepgramVoice string `yaml:"deepgram_voice"`
	EdgeVoice     string `yaml:"edge_voice"`

	TURN  TURN  `yaml:"turn"`
	Redis Redis `yaml:"redis"`
}

// TURN configures the optional TURN relay for clients behind NAT.
type TURN struct {
	URL        string `yaml:"url"`
	Username   string `yaml:"username"`
	Credential string `yaml:"credential"`
}

// Redis configures the optional Redis snapshot store. When Address is empty
// the service uses the in-memory store.
type Redis struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddress:   ":8080",
		LogLevel:      "info",
		GeminiModel:   "gemini-2.5-flash",
		STTLanguage:   "hi",
		STTModel:      "nova-2",
		DefaultTTS:    TTSDeepgram,
		DeepgramVoice: "aura-2-helena-en",
		EdgeVoice:     "hi-IN-SwaraNeural",
		Redis:         Redis{TTL: 24 * time.Hour},
	}
}

// Load reads the optional YAML file at path (empty path skips the file),
// then applies environment overrides. A .env file in the working directory
// is honored if present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.DefaultTTS != TTSDeepgram && cfg.DefaultTTS != TTSEdge {
		return Config{}, fmt.Errorf("unknown default tts backend %q", cfg.DefaultTTS)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString(&cfg.HTTPAddress, "HTTP_ADDRESS")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	envString(&cfg.GoogleAPIKey, "GOOGLE_API_KEY")
	envString(&cfg.GeminiModel, "GEMINI_MODEL")
	envString(&cfg.DeepgramAPIKey, "DEEPGRAM_API_KEY")
	envString(&cfg.STTLanguage, "STT_LANGUAGE")
	envString(&cfg.STTModel, "STT_MODEL")
	envString(&cfg.DefaultTTS, "DEFAULT_TTS")
	envString(&cfg.DeepgramVoice, "DEEPGRAM_VOICE")
	envString(&cfg.EdgeVoice, "EDGE_VOICE")
	envString(&cfg.TURN.URL, "TURN_URL")
	envString(&cfg.TURN.Username, "TURN_USERNAME")
	envString(&cfg.TURN.Credential, "TURN_CREDENTIAL")
	envString(&cfg.Redis.Address, "REDIS_ADDRESS")
	envString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTPAddress = ":" + v
	}
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
