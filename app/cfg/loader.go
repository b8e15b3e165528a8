package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"digest_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"digest_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"forum_digest" description:"Database name"`

	// Forum configuration
	ForumBaseUrl  string `long:"forum-base-url" env:"FORUM_BASE_URL" default:"https://forum.zcashcommunity.com" description:"Forum base URL (Discourse-compatible JSON API)"`
	PageDelay     int    `long:"page-delay" env:"PAGE_DELAY" default:"500" description:"Delay between topic page fetches in milliseconds"`
	MaxTopicPages int    `long:"max-topic-pages" env:"MAX_TOPIC_PAGES" default:"1" description:"Maximum post pages fetched per topic (1 = first page only)"`

	// Inference server configuration
	OllamaBaseUrl string `long:"ollama-base-url" env:"OLLAMA_BASE_URL" default:"http://127.0.0.1:11434" description:"Ollama base URL"`
	Model         string `long:"model" env:"LLM_MODEL" default:"qwen2.5:latest" description:"Model identifier used for summarization"`
	LLMTimeout    int    `long:"llm-timeout" env:"LLM_TIMEOUT" default:"120" description:"Overall wall-clock budget per summarization call in seconds"`

	// Application configuration
	ProfilePath    string `long:"profile" env:"PROFILE_PATH" default:"./profile.yml" description:"Path to the summarization profile YAML file"`
	Port           string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl        string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://digest.example.com)"`
	DigestInterval int    `long:"digest-interval" env:"DIGEST_INTERVAL" default:"1800" description:"Interval between digest runs in seconds"`
	APIAccessKey   string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Forum Digest/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:         raw.DBHost,
		DBPort:         raw.DBPort,
		DBUser:         raw.DBUser,
		DBPassword:     raw.DBPassword,
		DBName:         raw.DBName,
		ForumBaseUrl:   raw.ForumBaseUrl,
		PageDelay:      raw.PageDelay,
		MaxTopicPages:  raw.MaxTopicPages,
		OllamaBaseUrl:  raw.OllamaBaseUrl,
		Model:          raw.Model,
		LLMTimeout:     raw.LLMTimeout,
		ProfilePath:    raw.ProfilePath,
		Port:           raw.Port,
		BaseUrl:        raw.BaseUrl,
		DigestInterval: raw.DigestInterval,
		APIAccessKey:   raw.APIAccessKey,
		UserAgent:      raw.UserAgent,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if cfg.LLMTimeout <= 0 {
		return nil, fmt.Errorf("llm-timeout must be positive, got %d", cfg.LLMTimeout)
	}
	if cfg.MaxTopicPages < 1 {
		return nil, fmt.Errorf("max-topic-pages must be at least 1, got %d", cfg.MaxTopicPages)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
