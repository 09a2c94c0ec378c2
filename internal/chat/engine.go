// Package chat answers questions about a dataset, using a generation runtime
// when one is available and a deterministic composer otherwise.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
	"github.com/KaramelBytes/worklens-cli/internal/query"
	"github.com/KaramelBytes/worklens-cli/internal/retry"
	"github.com/KaramelBytes/worklens-cli/internal/utils"
)

// Source records where an answer came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Answer thresholds, in characters.
const (
	minUsefulAnswer = 20
	shortAnswer     = 50
)

var errMalformed = errors.New("malformed response")

// Answer is the engine's reply to one question.
type Answer struct {
	Text     string    `json:"answer"`
	Source   Source    `json:"source"`
	Keywords []string  `json:"keywords,omitempty"`
	Matched  int       `json:"matched"`
	Total    int       `json:"total"`
	Usage    *ai.Usage `json:"usage,omitempty"`
	// Reason says why the fallback was used.
	Reason string `json:"fallback_reason,omitempty"`
	Err    error  `json:"-"`
}

// Exchange is one entry of the session history.
type Exchange struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Source   Source    `json:"source"`
	At       time.Time `json:"at"`
}

// Options configures an Engine. Zero values pick defaults except
// MinInterval, where zero disables throttling.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int

	CallTimeout      time.Duration
	MinInterval      time.Duration
	PromptTokenLimit int

	Retry   *retry.Policy
	Builder *query.Builder
	Clock   clockwork.Clock
	Logger  *zap.Logger
}

// Engine answers questions. It never returns an error: every failure below
// it degrades to a composed answer. Answer calls are serialised; history and
// throttle state belong to the instance.
type Engine struct {
	rt       ai.Runtime
	opts     Options
	builder  *query.Builder
	policy   retry.Policy
	throttle *Throttle
	clock    clockwork.Clock
	log      *zap.Logger

	callMu sync.Mutex

	histMu  sync.Mutex
	history []Exchange
}

// NewEngine returns an Engine; a nil runtime always answers with the fallback.
func NewEngine(rt ai.Runtime, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Builder == nil {
		opts.Builder = query.NewBuilder(nil)
	}
	if opts.Model == "" {
		opts.Model = ai.DefaultModel(ai.ProviderGroq)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1500
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	e := &Engine{
		rt:       rt,
		opts:     opts,
		builder:  opts.Builder,
		throttle: NewThrottle(opts.Clock, opts.MinInterval),
		clock:    opts.Clock,
		log:      opts.Logger.Named("chat"),
	}
	if opts.Retry != nil {
		e.policy = *opts.Retry
	} else {
		e.policy = retry.Default(ai.IsRateLimited)
		e.policy.Clock = opts.Clock
	}
	if e.policy.Retryable == nil {
		e.policy.Retryable = ai.IsRateLimited
	}
	if e.policy.RetryAfter == nil {
		e.policy.RetryAfter = ai.RetryAfter
	}
	if e.policy.OnRetry == nil {
		e.policy.OnRetry = func(attempt int, err error, wait time.Duration) {
			e.log.Info("generation rate limited, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
	}
	return e
}

// Answer resolves one question against ds.
func (e *Engine) Answer(ctx context.Context, question string, ds *dataset.Dataset, schema dataset.ColumnSchema) Answer {
	e.callMu.Lock()
	defer e.callMu.Unlock()

	if ds == nil {
		ds = dataset.New("", nil, nil)
	}
	qc := e.builder.Build(question, ds, schema)
	ans := Answer{Keywords: qc.Keywords, Matched: qc.Matched, Total: qc.Total}

	text, usage, err := e.generate(ctx, qc)
	switch {
	case err != nil:
		ans.Reason = err.Error()
		ans.Err = err
		ans.Text = query.Compose(qc)
		ans.Source = SourceFallback
	default:
		if qc.Targeted() && utf8.RuneCountInString(text) < shortAnswer {
			text = query.MatchSummary(qc) + "\n\n" + text
		}
		ans.Text = text
		ans.Source = SourceAI
		ans.Usage = usage
	}

	e.record(question, ans)
	return ans
}

func (e *Engine) generate(ctx context.Context, qc *query.QueryContext) (string, *ai.Usage, error) {
	if e.rt == nil {
		return "", nil, errors.New("no generation runtime configured")
	}
	system := query.SystemPrompt(qc)
	user := query.UserPrompt(qc)
	user, cut := utils.FitUserPrompt(system, user, e.opts.PromptTokenLimit)
	if cut {
		e.log.Debug("user prompt truncated", zap.Int("limit", e.opts.PromptTokenLimit))
	}
	size := utils.MeasurePrompt(system, user)
	e.log.Debug("prompt prepared",
		zap.Int("system_tokens", size.System),
		zap.Int("user_tokens", size.User),
		zap.Int("keywords", len(qc.Keywords)),
		zap.Int("matched", qc.Matched))

	req := ai.Chat(e.opts.Model, system, user, e.opts.Temperature, e.opts.MaxTokens)
	var resp *ai.GenerateResponse
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		if err := e.throttle.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
		defer cancel()
		r, err := e.rt.Generate(callCtx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		e.log.Warn("generation failed, using fallback answer",
			zap.Bool("rate_limited", ai.IsRateLimited(err)),
			zap.Error(err))
		return "", nil, err
	}

	text := resp.Text()
	if Malformed(text) {
		e.log.Warn("malformed generation response, using fallback answer", zap.Int("length", len(text)))
		return "", nil, errMalformed
	}
	usage := resp.Usage
	return text, &usage, nil
}

// Malformed reports whether a generated answer is unusable: empty, raw
// structured data, or too short to be an answer.
func Malformed(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return true
	}
	return utf8.RuneCountInString(text) < minUsefulAnswer
}

func (e *Engine) record(question string, ans Answer) {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	e.history = append(e.history, Exchange{
		ID:       uuid.New(),
		Question: question,
		Answer:   ans.Text,
		Source:   ans.Source,
		At:       e.clock.Now(),
	})
}

// History returns a copy of the session history, oldest first.
func (e *Engine) History() []Exchange {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	out := make([]Exchange, len(e.history))
	copy(out, e.history)
	return out
}

// ClearHistory empties the session history.
func (e *Engine) ClearHistory() {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	e.history = nil
}
