package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	openAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIClient serves OpenAI-compatible chat completion endpoints, Groq
// included.
type OpenAIClient struct {
	client   *openai.Client
	provider string
	baseURL  string
	hasKey   bool
}

// NewOpenAIClient returns a client for provider. An empty baseURL selects the
// provider's public endpoint.
func NewOpenAIClient(provider, apiKey, baseURL string, httpTimeout time.Duration) *OpenAIClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if baseURL == "" {
		baseURL = openAIBaseURL
		if provider == ProviderGroq {
			baseURL = groqBaseURL
		}
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		provider: provider,
		baseURL:  cfg.BaseURL,
		hasKey:   apiKey != "",
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if !c.hasKey {
		return nil, missingKey(c.provider, strings.ToUpper(c.provider)+"_API_KEY")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	out := &GenerateResponse{
		ID: resp.ID,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RequestID: requestID(resp.Header()),
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: ch.Message.Role, Content: ch.Message.Content}})
	}
	return out, nil
}

func (c *OpenAIClient) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		switch v := apiErr.Code.(type) {
		case string:
			code = v
		case float64:
			code = fmt.Sprintf("%.0f", v)
		}
		if code == "" {
			code = apiErr.Type
		}
		se := Classify(c.provider, apiErr.HTTPStatusCode, code, apiErr.Message, nil)
		se.Err = err
		return se
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		se := Classify(c.provider, reqErr.HTTPStatusCode, "", string(reqErr.Body), nil)
		se.Err = err
		return se
	}
	return Unreachable(c.provider, c.baseURL, err)
}
