package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/chat"
	cfgpkg "github.com/KaramelBytes/worklens-cli/internal/config"
	"github.com/KaramelBytes/worklens-cli/internal/dashboard"
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
	"github.com/KaramelBytes/worklens-cli/internal/interpret"
	"github.com/KaramelBytes/worklens-cli/internal/query"
	"github.com/KaramelBytes/worklens-cli/internal/retry"
)

// sheetOptions are the flags shared by commands that open one sheet.
type sheetOptions struct {
	Sheet    string
	User     string
	Mappings []string
	NoAI     bool
}

// workspace is one opened sheet with its interpreted schema.
type workspace struct {
	cfg    *cfgpkg.Global
	ds     *dataset.Dataset
	schema dataset.ColumnSchema
	source string
	rt     ai.Runtime
	model  string
}

// openWorkspace loads path, picks the sheet, interprets its columns and
// applies the --user filter.
func openWorkspace(ctx context.Context, path string, opts sheetOptions, warn io.Writer) (*workspace, error) {
	c, err := currentConfig()
	if err != nil {
		return nil, err
	}
	wb, err := dataset.LoadWorkbook(path)
	if err != nil {
		return nil, err
	}
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}
	ds := wb.Sheets[0]
	if opts.Sheet != "" {
		s, ok := wb.Sheet(opts.Sheet)
		if !ok {
			return nil, fmt.Errorf("sheet %q not found (available: %s)", opts.Sheet, strings.Join(wb.Names(), ", "))
		}
		ds = s
	}

	overrides, err := interpret.ParseOverrides(opts.Mappings)
	if err != nil {
		return nil, err
	}

	ws := &workspace{cfg: c, ds: ds}
	ws.rt, ws.model = newRuntimeUnless(opts.NoAI, c, warn)

	ci := interpret.NewColumnInterpreter(ws.rt, interpretOptions(c, ws.model))
	ci.Overrides = overrides
	res, err := ci.Interpret(ctx, ds, ds.Name)
	if err != nil {
		return nil, err
	}
	ws.schema, ws.source = res.Schema, res.Source

	if opts.User != "" {
		col, ok := ws.schema.Column(dataset.ConceptAssignee)
		if !ok {
			fmt.Fprintln(warn, "⚠ No assignee column found; --user ignored.")
		} else {
			ws.ds = dataset.FilterForUser(ws.ds, opts.User, col)
			logger.Debug("filtered by user", zap.String("column", col), zap.Int("rows", ws.ds.Len()))
		}
	}
	return ws, nil
}

// newRuntime builds the configured runtime. Missing credentials leave it nil,
// which makes every answer use the built-in summary.
func newRuntime(c *cfgpkg.Global, warn io.Writer) (ai.Runtime, string) {
	provider := strings.ToLower(strings.TrimSpace(c.Provider))
	if provider == "" {
		provider = ai.ProviderGroq
	}
	rc := c.RuntimeConfig()
	if provider != ai.ProviderOllama && rc.APIKey == "" {
		fmt.Fprintf(warn, "⚠ No API key for %s; answering from the built-in summary. Set CHATBOT_API_KEY or run: worklens config set api_key <key>\n", provider)
		return nil, ""
	}
	rt, ok := ai.GetRuntime(provider, rc)
	if !ok {
		fmt.Fprintf(warn, "⚠ Unknown provider %q (use %s); answering from the built-in summary.\n", provider, strings.Join(ai.Providers, "|"))
		return nil, ""
	}
	model := c.Model
	if model == "" {
		model = ai.DefaultModel(provider)
	}
	logger.Debug("runtime ready", zap.String("provider", provider), zap.String("model", model))
	return rt, model
}

func newRuntimeUnless(noAI bool, c *cfgpkg.Global, warn io.Writer) (ai.Runtime, string) {
	if noAI {
		return nil, ""
	}
	return newRuntime(c, warn)
}

func retryPolicy(c *cfgpkg.Global) *retry.Policy {
	p := retry.Default(ai.IsRateLimited)
	p.RetryAfter = ai.RetryAfter
	if c.RetryMaxAttempts > 0 {
		p.MaxAttempts = c.RetryMaxAttempts
	}
	if d := c.RetryBaseDelay(); d > 0 {
		p.InitialInterval = d
	}
	if d := c.RetryMaxDelay(); d > 0 {
		p.MaxInterval = d
	}
	return &p
}

func interpretOptions(c *cfgpkg.Global, model string) interpret.Options {
	return interpret.Options{Model: model, Retry: retryPolicy(c), Logger: logger}
}

// newEngine returns a fresh engine, one per conversation.
func (ws *workspace) newEngine() *chat.Engine {
	c := ws.cfg
	b := query.NewBuilder(c.Vocabulary)
	if c.DetailRows > 0 {
		b.DetailRows = c.DetailRows
	}
	if c.ProseRows > 0 {
		b.ProseRows = c.ProseRows
	}
	return chat.NewEngine(ws.rt, chat.Options{
		Model:            ws.model,
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		CallTimeout:      c.CallTimeout(),
		MinInterval:      c.MinCallInterval(),
		PromptTokenLimit: c.PromptTokenLimit,
		Retry:            retryPolicy(c),
		Builder:          b,
		Logger:           logger,
	})
}

// designDashboard classifies the sheet and lays out its dashboard.
func (ws *workspace) designDashboard(ctx context.Context) (dashboard.Config, error) {
	opts := interpretOptions(ws.cfg, ws.model)
	cl, err := interpret.NewSheetClassifier(ws.rt, opts).Classify(ctx, ws.ds.Name, ws.ds)
	if err != nil {
		return dashboard.Config{}, err
	}
	return dashboard.NewDesigner(ws.rt, opts).Design(ctx, ws.ds.Name, cl.SheetType, ws.ds.Len(), ws.schema), nil
}
