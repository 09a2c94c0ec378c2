package ai

// Model metadata used to pick defaults and to bound prompt size.
// Prices are illustrative and should be verified against provider docs.

type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var defaultModels = map[string]string{
	ProviderGroq:       "llama-3.3-70b-versatile",
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderOpenRouter: "meta-llama/llama-3.3-70b-instruct",
	ProviderAnthropic:  "claude-3-5-haiku-latest",
	ProviderOllama:     "llama3.1:8b-instruct",
}

var models = map[string]ModelInfo{
	"llama-3.3-70b-versatile": {
		Name:          "llama-3.3-70b-versatile",
		Provider:      ProviderGroq,
		ContextTokens: 128000,
		InputPerK:     0.00059,
		OutputPerK:    0.00079,
	},
	"llama-3.1-8b-instant": {
		Name:          "llama-3.1-8b-instant",
		Provider:      ProviderGroq,
		ContextTokens: 128000,
		InputPerK:     0.00005,
		OutputPerK:    0.00008,
	},
	"gpt-4o-mini": {
		Name:          "gpt-4o-mini",
		Provider:      ProviderOpenAI,
		ContextTokens: 128000,
		InputPerK:     0.00015,
		OutputPerK:    0.0006,
	},
	"gpt-4o": {
		Name:          "gpt-4o",
		Provider:      ProviderOpenAI,
		ContextTokens: 128000,
		InputPerK:     0.0025,
		OutputPerK:    0.01,
	},
	"meta-llama/llama-3.3-70b-instruct": {
		Name:          "meta-llama/llama-3.3-70b-instruct",
		Provider:      ProviderOpenRouter,
		ContextTokens: 131072,
	},
	"openai/gpt-4o-mini": {
		Name:          "openai/gpt-4o-mini",
		Provider:      ProviderOpenRouter,
		ContextTokens: 128000,
		InputPerK:     0.00015,
		OutputPerK:    0.0006,
	},
	"claude-3-5-haiku-latest": {
		Name:          "claude-3-5-haiku-latest",
		Provider:      ProviderAnthropic,
		ContextTokens: 200000,
		InputPerK:     0.0008,
		OutputPerK:    0.004,
	},
	"claude-sonnet-4-0": {
		Name:          "claude-sonnet-4-0",
		Provider:      ProviderAnthropic,
		ContextTokens: 200000,
		InputPerK:     0.003,
		OutputPerK:    0.015,
	},
	// Common local (Ollama) tags
	"llama3.1:8b-instruct": {
		Name:          "llama3.1:8b-instruct",
		Provider:      ProviderOllama,
		ContextTokens: 8192,
	},
	"mistral:7b-instruct": {
		Name:          "mistral:7b-instruct",
		Provider:      ProviderOllama,
		ContextTokens: 8192,
	},
	"phi3:mini-4k-instruct": {
		Name:          "phi3:mini-4k-instruct",
		Provider:      ProviderOllama,
		ContextTokens: 4096,
	},
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return defaultModels[ProviderGroq]
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}
