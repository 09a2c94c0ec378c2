package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/query"
	"github.com/KaramelBytes/worklens-cli/internal/utils"
)

// Global configuration structure.
type Global struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model       string  `mapstructure:"model" yaml:"model,omitempty"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`

	// HTTP/Retry configuration
	HTTPTimeoutSec    int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	CallTimeoutSec    int `mapstructure:"call_timeout_sec" yaml:"call_timeout_sec"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs  int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs   int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	MinCallIntervalMs int `mapstructure:"min_call_interval_ms" yaml:"min_call_interval_ms"`

	// Answer context bounds
	DetailRows       int      `mapstructure:"detail_rows" yaml:"detail_rows"`
	ProseRows        int      `mapstructure:"prose_rows" yaml:"prose_rows"`
	PromptTokenLimit int      `mapstructure:"prompt_token_limit" yaml:"prompt_token_limit"`
	Vocabulary       []string `mapstructure:"vocabulary" yaml:"vocabulary,omitempty"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// HTTP API
	ServerHost string `mapstructure:"server_host" yaml:"server_host"`
	ServerPort int    `mapstructure:"server_port" yaml:"server_port"`
}

// Keys lists the settable configuration keys.
var Keys = []string{
	"provider", "api_key", "base_url", "model", "temperature", "max_tokens",
	"http_timeout_sec", "call_timeout_sec", "retry_max_attempts", "retry_base_delay_ms",
	"retry_max_delay_ms", "min_call_interval_ms", "detail_rows", "prose_rows",
	"prompt_token_limit", "vocabulary", "ollama_host", "server_host", "server_port",
}

// providerKeyEnv names the provider-specific API key variable.
var providerKeyEnv = map[string]string{
	ai.ProviderGroq:       "GROQ_API_KEY",
	ai.ProviderOpenAI:     "OPENAI_API_KEY",
	ai.ProviderOpenRouter: "OPENROUTER_API_KEY",
	ai.ProviderAnthropic:  "ANTHROPIC_API_KEY",
}

// Dir returns ~/.worklens.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".worklens"), nil
}

// Path returns cfgFile or the default config.yaml location.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.worklens/config.yaml.
func Save(c *Global, cfgFile string) error {
	path, err := Path(cfgFile)
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ai.ProviderGroq)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 1500)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("call_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 1000)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("min_call_interval_ms", 1000)
	v.SetDefault("detail_rows", query.DefaultDetailRows)
	v.SetDefault("prose_rows", query.DefaultProseRows)
	v.SetDefault("prompt_token_limit", 6000)
	v.SetDefault("vocabulary", query.DefaultVocabulary)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)
}

// Load loads configuration from .env, file, env and defaults.
// Precedence: env > config file > defaults; flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("WORKLENS")
	v.AutomaticEnv()
	for _, k := range Keys {
		_ = v.BindEnv(k)
	}
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	return &c, nil
}

// ResolveAPIKey returns the configured key, then CHATBOT_API_KEY, then the
// provider's own variable.
func (c *Global) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if v := os.Getenv("CHATBOT_API_KEY"); v != "" {
		return v
	}
	if env, ok := providerKeyEnv[c.Provider]; ok {
		return os.Getenv(env)
	}
	return ""
}

// ResolveModel returns the configured model or the provider default.
func (c *Global) ResolveModel() string {
	if c.Model != "" {
		return c.Model
	}
	return ai.DefaultModel(c.Provider)
}

// RuntimeConfig maps the configuration onto runtime settings.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: seconds(c.HTTPTimeoutSec),
		APIKey:      c.ResolveAPIKey(),
		BaseURL:     c.BaseURL,
		Host:        c.OllamaHost,
	}
}

func (c *Global) CallTimeout() time.Duration { return seconds(c.CallTimeoutSec) }

func (c *Global) MinCallInterval() time.Duration {
	return time.Duration(c.MinCallIntervalMs) * time.Millisecond
}

func (c *Global) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c *Global) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
