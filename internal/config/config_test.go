package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WORKLENS_API_KEY", "WORKLENS_MODEL", "WORKLENS_PROVIDER", "CHATBOT_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearKeys(t)
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ai.ProviderGroq, c.Provider)
	assert.Equal(t, 0.7, c.Temperature)
	assert.Equal(t, 1500, c.MaxTokens)
	assert.Equal(t, 3, c.RetryMaxAttempts)
	assert.Equal(t, time.Second, c.RetryBaseDelay())
	assert.Equal(t, 4*time.Second, c.RetryMaxDelay())
	assert.Equal(t, time.Second, c.MinCallInterval())
	assert.Equal(t, 60*time.Second, c.CallTimeout())
	assert.Equal(t, 10, c.DetailRows)
	assert.Equal(t, 5, c.ProseRows)
	assert.Contains(t, c.Vocabulary, "frontend")
	assert.Equal(t, "llama-3.3-70b-versatile", c.ResolveModel())
}

func TestSaveThenLoadWithEnvOverride(t *testing.T) {
	clearKeys(t)
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	c.Provider = ai.ProviderOpenAI
	c.Model = "gpt-4o"
	c.ServerPort = 9090
	require.NoError(t, Save(c, path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	t.Setenv("WORKLENS_MODEL", "gpt-4o-mini")
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderOpenAI, got.Provider)
	assert.Equal(t, 9090, got.ServerPort)
	assert.Equal(t, "gpt-4o-mini", got.ResolveModel(), "env wins over the file")
}

func TestResolveAPIKeyPrecedence(t *testing.T) {
	clearKeys(t)
	c := &Global{Provider: ai.ProviderGroq}
	assert.Empty(t, c.ResolveAPIKey())

	t.Setenv("GROQ_API_KEY", "gsk_provider")
	assert.Equal(t, "gsk_provider", c.ResolveAPIKey())

	t.Setenv("CHATBOT_API_KEY", "chatbot")
	assert.Equal(t, "chatbot", c.ResolveAPIKey())

	c.APIKey = "explicit"
	assert.Equal(t, "explicit", c.ResolveAPIKey())
	assert.Equal(t, "explicit", c.RuntimeConfig().APIKey)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	clearKeys(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
