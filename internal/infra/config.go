package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents application configuration loaded from environment
// variables, optionally layered over a YAML file.
type Config struct {
	AppEnv            string        `yaml:"app_env"`
	Port              string        `yaml:"port"`
	DatabaseURL       string        `yaml:"database_url"`
	CredentialsDBPath string        `yaml:"credentials_db_path"`
	StoragePath       string        `yaml:"storage_path"`
	StorageBaseURL    string        `yaml:"storage_base_url"`
	GeoIPDBPath       string        `yaml:"geoip_db_path"`
	Gemini            GeminiConfig  `yaml:"gemini"`
	OpenAI            OpenAIConfig  `yaml:"openai"`
	Pipeline          PipelineLimit `yaml:"pipeline"`
	Video             VideoConfig   `yaml:"video"`
	GenerationPerMin  int           `yaml:"generation_rate_per_minute"`
	HTTPReadTimeout   time.Duration `yaml:"-"`
	HTTPWriteTimeout  time.Duration `yaml:"-"`
	HTTPIdleTimeout   time.Duration `yaml:"-"`
	RateLimitPerMin   int           `yaml:"rate_limit_per_minute"`
	CORSOrigins       []string      `yaml:"cors_allowed_origins"`
	JobTimeout        time.Duration `yaml:"-"`
}

// GeminiConfig names the Gemini endpoint and the model per workload.
type GeminiConfig struct {
	BaseURL       string `yaml:"base_url"`
	TextModel     string `yaml:"text_model"`
	ImageModel    string `yaml:"image_model"`
	ImageProModel string `yaml:"image_pro_model"`
	VideoModel    string `yaml:"video_model"`
}

// OpenAIConfig configures the secondary analysis provider. An empty APIKey
// leaves the secondary unconfigured.
type OpenAIConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Org     string `yaml:"org"`
}

// PipelineLimit bounds the resolve pipeline.
type PipelineLimit struct {
	MaxSources      int           `yaml:"max_sources"`
	MaxExtracted    int           `yaml:"max_extracted"`
	PerSourceChars  int           `yaml:"per_source_chars"`
	MaxContextChars int           `yaml:"max_context_chars"`
	MaxExclusions   int           `yaml:"max_exclusions"`
	ExtractTimeout  time.Duration `yaml:"-"`
	ExtractTimeoutS int           `yaml:"extract_timeout_seconds"`
}

// VideoConfig controls long-running video polling.
type VideoConfig struct {
	PollIntervalS int           `yaml:"poll_interval_seconds"`
	PollTimeoutS  int           `yaml:"poll_timeout_seconds"`
	PollInterval  time.Duration `yaml:"-"`
	PollTimeout   time.Duration `yaml:"-"`
}

// LoadConfig loads configuration from .env files, the optional YAML file named
// by ORACLE_CONFIG_FILE and environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("ORACLE_CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.overlayEnv()

	cfg.Video.PollInterval = time.Duration(cfg.Video.PollIntervalS) * time.Second
	cfg.Video.PollTimeout = time.Duration(cfg.Video.PollTimeoutS) * time.Second
	cfg.Pipeline.ExtractTimeout = time.Duration(cfg.Pipeline.ExtractTimeoutS) * time.Second

	if cfg.Video.PollInterval <= 0 {
		return nil, fmt.Errorf("VIDEO_POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.Pipeline.MaxSources <= 0 || cfg.Pipeline.MaxContextChars <= 0 {
		return nil, errors.New("pipeline limits must be positive")
	}
	if cfg.CredentialsDBPath == "" {
		return nil, fmt.Errorf("CREDENTIALS_DB_PATH is required")
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		AppEnv:            "development",
		Port:              "8080",
		CredentialsDBPath: "data/credentials.db",
		StorageBaseURL:    "",
		Gemini: GeminiConfig{
			BaseURL:       "https://generativelanguage.googleapis.com/v1beta",
			TextModel:     "gemini-2.5-flash",
			ImageModel:    "gemini-2.5-flash-image",
			ImageProModel: "gemini-3-pro-image-preview",
			VideoModel:    "veo-3.1-fast-generate-preview",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Pipeline: PipelineLimit{
			MaxSources:      5,
			MaxExtracted:    2,
			PerSourceChars:  2000,
			MaxContextChars: 15000,
			MaxExclusions:   15,
			ExtractTimeoutS: 10,
		},
		Video: VideoConfig{
			PollIntervalS: 10,
			PollTimeoutS:  900,
		},
		GenerationPerMin: 60,
		HTTPReadTimeout:  15 * time.Second,
		HTTPWriteTimeout: 30 * time.Second,
		HTTPIdleTimeout:  60 * time.Second,
		RateLimitPerMin:  30,
		CORSOrigins:      []string{"http://localhost:5173"},
		JobTimeout:       3 * time.Minute,
	}
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.Port = getEnv("PORT", c.Port)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.CredentialsDBPath = getEnv("CREDENTIALS_DB_PATH", c.CredentialsDBPath)
	c.StoragePath = getEnv("STORAGE_PATH", c.StoragePath)
	c.StorageBaseURL = getEnv("STORAGE_BASE_URL", c.StorageBaseURL)
	if c.StorageBaseURL == "" && c.StoragePath != "" {
		c.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", c.Port)
	}
	c.GeoIPDBPath = getEnv("GEOIP_DB_PATH", c.GeoIPDBPath)

	c.Gemini.BaseURL = getEnv("GEMINI_BASE_URL", c.Gemini.BaseURL)
	c.Gemini.TextModel = getEnv("GEMINI_TEXT_MODEL", c.Gemini.TextModel)
	c.Gemini.ImageModel = getEnv("GEMINI_IMAGE_MODEL", c.Gemini.ImageModel)
	c.Gemini.ImageProModel = getEnv("GEMINI_IMAGE_PRO_MODEL", c.Gemini.ImageProModel)
	c.Gemini.VideoModel = getEnv("GEMINI_VIDEO_MODEL", c.Gemini.VideoModel)

	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = getEnv("OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.Org = getEnv("OPENAI_ORG", c.OpenAI.Org)

	c.Pipeline.ExtractTimeoutS = getEnvInt("EXTRACT_TIMEOUT_SECONDS", c.Pipeline.ExtractTimeoutS)
	c.Video.PollIntervalS = getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", c.Video.PollIntervalS)
	c.Video.PollTimeoutS = getEnvInt("VIDEO_POLL_TIMEOUT_SECONDS", c.Video.PollTimeoutS)
	c.GenerationPerMin = getEnvInt("GENERATION_RATE_PER_MINUTE", c.GenerationPerMin)

	c.HTTPReadTimeout = getEnvSeconds("HTTP_READ_TIMEOUT_SECONDS", c.HTTPReadTimeout)
	c.HTTPWriteTimeout = getEnvSeconds("HTTP_WRITE_TIMEOUT_SECONDS", c.HTTPWriteTimeout)
	c.HTTPIdleTimeout = getEnvSeconds("HTTP_IDLE_TIMEOUT_SECONDS", c.HTTPIdleTimeout)
	c.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMin)
	c.JobTimeout = getEnvSeconds("MEDIA_JOB_TIMEOUT_SECONDS", c.JobTimeout)
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.CORSOrigins = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
