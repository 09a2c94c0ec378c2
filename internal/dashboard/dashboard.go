// Package dashboard designs the overview of a sheet: headline metrics,
// charts over the status, errors and priority dimensions, and a focused task
// table. A runtime may propose the layout from the column mapping and row
// count; every value shown is computed locally.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
	"github.com/KaramelBytes/worklens-cli/internal/interpret"
)

// Metric intents.
const (
	IntentCount     = "count"
	IntentCondition = "condition"
)

// Chart types.
const (
	ChartBar = "bar"
	ChartPie = "pie"
)

// Table focus values.
const (
	FocusPending = "pending"
	FocusAll     = "all"
	FocusIssues  = "issues"
)

// MaxCharts bounds the charts kept in a design.
const MaxCharts = 2

// Chartable dimensions, in default order.
var dimensions = []dataset.Concept{dataset.ConceptStatus, dataset.ConceptErrors, dataset.ConceptPriority}

const designSystem = `You are designing a dashboard for a working professional.

Your task:
1. Decide what metrics are useful
2. Decide what charts (if any) make sense
3. Decide what table view is helpful

Return ONLY valid JSON in this format:

{
  "title": "Dashboard title",
  "metrics": [
    { "label": "Total Tasks", "intent": "count" },
    { "label": "Pending Tasks", "intent": "condition" }
  ],
  "charts": [
    { "type": "bar" or "pie", "dimension": "status" or "errors" or "priority" }
  ],
  "table": {
    "show": true or false,
    "focus": "pending" or "all" or "issues"
  }
}

Do not include UI code.
Do not reference column names directly.`

type Metric struct {
	Label  string `json:"label"`
	Intent string `json:"intent"`
}

type Chart struct {
	Type      string `json:"type"`
	Dimension string `json:"dimension"`
}

type Table struct {
	Show  bool   `json:"show"`
	Focus string `json:"focus"`
}

// Config is a dashboard layout. It names concepts, never columns; the
// mapping travels alongside for rendering.
type Config struct {
	Title          string            `json:"title"`
	Metrics        []Metric          `json:"metrics"`
	Charts         []Chart           `json:"charts"`
	Table          Table             `json:"table"`
	ColumnMappings map[string]string `json:"column_mappings"`
	Source         string            `json:"source"`
	Reason         string            `json:"reason,omitempty"`
}

// Designer proposes dashboard layouts.
type Designer struct {
	caller *interpret.JSONCaller
	log    *zap.Logger
}

func NewDesigner(rt ai.Runtime, opts interpret.Options) *Designer {
	c := interpret.NewJSONCaller(rt, opts, "dashboard")
	return &Designer{caller: c, log: c.Logger()}
}

// Design returns the layout for a sheet. Only the sheet name, type, row count
// and bound concepts are sent to the runtime. Failures fall back to Default.
func (d *Designer) Design(ctx context.Context, sheet, sheetType string, rows int, schema dataset.ColumnSchema) Config {
	cfg, err := d.fromRuntime(ctx, sheet, sheetType, rows, schema)
	if err != nil {
		if !errors.Is(err, interpret.ErrNoRuntime) {
			d.log.Warn("dashboard design failed, using default layout",
				zap.String("sheet", sheet), zap.Error(err))
		}
		cfg = Default(sheet, schema)
		cfg.Reason = err.Error()
	}
	return cfg
}

func (d *Designer) fromRuntime(ctx context.Context, sheet, sheetType string, rows int, schema dataset.ColumnSchema) (Config, error) {
	var available []string
	for _, c := range dataset.Concepts {
		if _, ok := schema.Column(c); ok {
			available = append(available, string(c))
		}
	}
	if sheetType == "" {
		sheetType = interpret.TypeTaskTracking
	}
	prompt := fmt.Sprintf(`Design a dashboard for this sheet:

Sheet: %s
Type: %s
Total Rows: %d

Available Data Dimensions:
%s

What metrics, charts, and table views would be most useful?`,
		sheet, sheetType, rows, strings.Join(available, ", "))

	var reply struct {
		Title   string   `json:"title"`
		Metrics []Metric `json:"metrics"`
		Charts  []Chart  `json:"charts"`
		Table   *Table   `json:"table"`
	}
	if err := d.caller.CallJSON(ctx, designSystem, prompt, &reply); err != nil {
		return Config{}, err
	}
	cfg := Config{Title: reply.Title, Metrics: reply.Metrics, Charts: reply.Charts, Source: interpret.SourceAI}
	if reply.Table != nil {
		cfg.Table = *reply.Table
	} else {
		cfg.Table = defaultTable(schema)
	}
	cfg = normalize(cfg, sheet, schema)
	if len(cfg.Metrics) == 0 && len(cfg.Charts) == 0 {
		return Config{}, errors.New("dashboard design has no usable metrics or charts")
	}
	return cfg, nil
}

// Default lays out a dashboard from the bound concepts alone.
func Default(sheet string, schema dataset.ColumnSchema) Config {
	cfg := Config{
		Metrics: []Metric{{Label: "Total Tasks", Intent: IntentCount}},
		Table:   defaultTable(schema),
		Source:  interpret.SourceHeuristic,
	}
	if _, ok := schema.Column(dataset.ConceptStatus); ok {
		cfg.Metrics = append(cfg.Metrics, Metric{Label: "Pending Tasks", Intent: IntentCondition})
	}
	for _, dim := range dimensions {
		if _, ok := schema.Column(dim); !ok {
			continue
		}
		typ := ChartBar
		if dim == dataset.ConceptStatus {
			typ = ChartPie
		}
		cfg.Charts = append(cfg.Charts, Chart{Type: typ, Dimension: string(dim)})
	}
	return normalize(cfg, sheet, schema)
}

func defaultTable(schema dataset.ColumnSchema) Table {
	if _, ok := schema.Column(dataset.ConceptStatus); ok {
		return Table{Show: true, Focus: FocusPending}
	}
	return Table{Show: true, Focus: FocusAll}
}

// normalize drops what cannot be rendered against schema: unknown intents,
// charts over unbound or unknown dimensions, and table focuses without their
// column.
func normalize(cfg Config, sheet string, schema dataset.ColumnSchema) Config {
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.Title == "" {
		cfg.Title = "Task Overview"
		if sheet != "" {
			cfg.Title = sheet + " Overview"
		}
	}

	metrics := make([]Metric, 0, len(cfg.Metrics))
	for _, m := range cfg.Metrics {
		m.Intent = strings.ToLower(strings.TrimSpace(m.Intent))
		if m.Intent == "" {
			m.Intent = IntentCount
		}
		if m.Intent != IntentCount && m.Intent != IntentCondition {
			continue
		}
		if m.Intent == IntentCondition {
			if _, ok := schema.Column(dataset.ConceptStatus); !ok {
				continue
			}
		}
		if m.Label = strings.TrimSpace(m.Label); m.Label == "" {
			m.Label = "Metric"
		}
		metrics = append(metrics, m)
	}
	cfg.Metrics = metrics

	charts := make([]Chart, 0, MaxCharts)
	seen := map[string]bool{}
	for _, ch := range cfg.Charts {
		dim := strings.ToLower(strings.TrimSpace(ch.Dimension))
		if !chartable(dim) || seen[dim] {
			continue
		}
		if _, ok := schema.Column(dataset.Concept(dim)); !ok {
			continue
		}
		typ := strings.ToLower(strings.TrimSpace(ch.Type))
		if typ != ChartPie {
			typ = ChartBar
		}
		seen[dim] = true
		charts = append(charts, Chart{Type: typ, Dimension: dim})
		if len(charts) == MaxCharts {
			break
		}
	}
	cfg.Charts = charts

	focus := strings.ToLower(strings.TrimSpace(cfg.Table.Focus))
	switch focus {
	case FocusPending:
		if _, ok := schema.Column(dataset.ConceptStatus); !ok {
			focus = FocusAll
		}
	case FocusIssues:
		if _, ok := schema.Column(dataset.ConceptErrors); !ok {
			focus = FocusAll
		}
	default:
		focus = FocusAll
	}
	cfg.Table.Focus = focus

	cfg.ColumnMappings = schema.Map()
	return cfg
}

func chartable(dim string) bool {
	for _, d := range dimensions {
		if string(d) == dim {
			return true
		}
	}
	return false
}
