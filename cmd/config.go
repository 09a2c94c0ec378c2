package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/worklens-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set WorkLens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "provider: %s\n", cfg.Provider)
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.ResolveAPIKey()))
		if cfg.BaseURL != "" {
			fmt.Fprintf(out, "base_url: %s\n", cfg.BaseURL)
		}
		fmt.Fprintf(out, "model: %s\n", cfg.ResolveModel())
		fmt.Fprintf(out, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(out, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "call_timeout_sec: %d\n", cfg.CallTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Fprintf(out, "min_call_interval_ms: %d\n", cfg.MinCallIntervalMs)
		fmt.Fprintf(out, "detail_rows: %d\n", cfg.DetailRows)
		fmt.Fprintf(out, "prose_rows: %d\n", cfg.ProseRows)
		fmt.Fprintf(out, "prompt_token_limit: %d\n", cfg.PromptTokenLimit)
		fmt.Fprintf(out, "vocabulary: %d terms\n", len(cfg.Vocabulary))
		if cfg.Provider == ai.ProviderOllama {
			fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		}
		fmt.Fprintf(out, "server: %s:%d\n", cfg.ServerHost, cfg.ServerPort)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "provider":
		p := strings.ToLower(strings.TrimSpace(val))
		if !slices.Contains(ai.Providers, p) {
			return fmt.Errorf("invalid provider: %s (use %s)", val, strings.Join(ai.Providers, "|"))
		}
		c.Provider = p
	case "api_key":
		c.APIKey = val
	case "base_url":
		c.BaseURL = val
	case "model":
		c.Model = val
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return fmt.Errorf("invalid float for temperature: %w", perr)
		}
		c.Temperature = f
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "call_timeout_sec":
		c.CallTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	case "min_call_interval_ms":
		c.MinCallIntervalMs, err = atoi()
	case "detail_rows":
		c.DetailRows, err = atoi()
	case "prose_rows":
		c.ProseRows, err = atoi()
	case "prompt_token_limit":
		c.PromptTokenLimit, err = atoi()
	case "vocabulary":
		var terms []string
		for _, t := range strings.Split(val, ",") {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
		c.Vocabulary = terms
	case "ollama_host":
		c.OllamaHost = val
	case "server_host":
		c.ServerHost = val
	case "server_port":
		c.ServerPort, err = atoi()
	default:
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(cfgpkg.Keys, ", "))
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
