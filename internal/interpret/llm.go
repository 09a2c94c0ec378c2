// Package interpret infers how a sheet is laid out: which columns carry which
// concepts, and whether the sheet tracks work at all. Both steps ask a
// generation runtime first and fall back to header heuristics.
package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/retry"
)

// Sources of an interpretation.
const (
	SourceAI        = "ai"
	SourceHeuristic = "heuristic"
)

// JSON calls are kept cold and short.
const (
	jsonTemperature = 0.1
	jsonMaxTokens   = 500
)

// ErrNoRuntime is returned by JSON calls made without a runtime.
var ErrNoRuntime = errors.New("no generation runtime configured")

// Options is shared by the interpreters.
type Options struct {
	Model  string
	Retry  *retry.Policy
	Logger *zap.Logger
}

type caller struct {
	rt     ai.Runtime
	model  string
	policy retry.Policy
	log    *zap.Logger
}

func newCaller(rt ai.Runtime, opts Options, name string) caller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Model == "" {
		opts.Model = ai.DefaultModel(ai.ProviderGroq)
	}
	policy := retry.Default(ai.IsRateLimited)
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	if policy.Retryable == nil {
		policy.Retryable = ai.IsRateLimited
	}
	if policy.RetryAfter == nil {
		policy.RetryAfter = ai.RetryAfter
	}
	return caller{rt: rt, model: opts.Model, policy: policy, log: opts.Logger.Named(name)}
}

// callJSON sends one prompt and decodes the JSON object in the reply into out.
func (c caller) callJSON(ctx context.Context, system, user string, out any) error {
	if c.rt == nil {
		return ErrNoRuntime
	}
	req := ai.Chat(c.model, system, user, jsonTemperature, jsonMaxTokens)
	var text string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.rt.Generate(ctx, req)
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return err
	}
	raw, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("invalid JSON: %w (response: %s)", err, truncateForError(raw))
	}
	return nil
}

// JSONCaller sends prompts that expect one JSON object back. It shares the
// retry policy and low temperature used by the interpreters.
type JSONCaller struct {
	caller
}

// NewJSONCaller returns a caller logging under name. A nil runtime makes
// every call fail with ErrNoRuntime.
func NewJSONCaller(rt ai.Runtime, opts Options, name string) *JSONCaller {
	return &JSONCaller{caller: newCaller(rt, opts, name)}
}

// CallJSON decodes the JSON object in the reply to system and user into out.
func (c *JSONCaller) CallJSON(ctx context.Context, system, user string, out any) error {
	return c.callJSON(ctx, system, user, out)
}

// Logger returns the caller's named logger.
func (c *JSONCaller) Logger() *zap.Logger { return c.log }

// extractJSON strips markdown fences and returns the outermost object.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) > 2 {
			end := len(lines) - 1
			for i := len(lines) - 1; i > 0; i-- {
				if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
					end = i
					break
				}
			}
			text = strings.Join(lines[1:end], "\n")
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response: %s", truncateForError(text))
	}
	return text[start : end+1], nil
}

func truncateForError(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
