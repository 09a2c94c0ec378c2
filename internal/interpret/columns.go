package interpret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
)

const columnSampleRows = 5

const columnsSystem = `You are interpreting a spreadsheet used to track work.

Identify which columns represent the following concepts:
- assignee: who the task is assigned to
- status: progress or state of the task
- errors: issues, mistakes, rejections, or problem count
- notes: comments or remarks
- title: task name or description
- date: when task was created or due
- priority: importance level

If a concept does not exist, return "none".

Return ONLY valid JSON in this format:

{
  "assignee": "<column name or 'none'>",
  "status": "<column name or 'none'>",
  "errors": "<column name or 'none'>",
  "notes": "<column name or 'none'>",
  "title": "<column name or 'none'>",
  "date": "<column name or 'none'>",
  "priority": "<column name or 'none'>"
}`

// Header fragments per concept, in binding order. A column is bound to at
// most one concept.
var headerHints = []struct {
	concept dataset.Concept
	hints   []string
}{
	{dataset.ConceptStatus, []string{"status", "state", "progress"}},
	{dataset.ConceptPriority, []string{"priority", "severity", "urgency"}},
	{dataset.ConceptErrors, []string{"error", "bug", "defect", "rejection", "mistake", "issue"}},
	{dataset.ConceptDate, []string{"date", "due", "deadline", "created", "updated"}},
	{dataset.ConceptAssignee, []string{"assignee", "assigned", "owner", "responsible", "developer", "member", "person"}},
	{dataset.ConceptNotes, []string{"note", "comment", "remark"}},
	{dataset.ConceptTitle, []string{"title", "task", "summary", "subject", "description", "item", "name"}},
}

// Result is an interpreted column schema.
type Result struct {
	Schema dataset.ColumnSchema `json:"schema"`
	Source string               `json:"source"`
	// Reason is set when the heuristics were used because generation failed.
	Reason string `json:"reason,omitempty"`
}

// ColumnInterpreter maps concepts onto the columns of a sheet.
type ColumnInterpreter struct {
	caller
	// Overrides are concept -> column bindings applied last; "none" unbinds.
	Overrides map[string]string
}

func NewColumnInterpreter(rt ai.Runtime, opts Options) *ColumnInterpreter {
	return &ColumnInterpreter{caller: newCaller(rt, opts, "columns")}
}

// Interpret returns the schema for ds. Only a masked sample of the first
// rows is sent to the runtime; any failure falls back to header heuristics.
func (c *ColumnInterpreter) Interpret(ctx context.Context, ds *dataset.Dataset, sheet string) (Result, error) {
	if ds == nil {
		return Result{}, errors.New("interpret columns: nil dataset")
	}
	res, err := c.fromRuntime(ctx, ds, sheet)
	if err != nil {
		if !errors.Is(err, ErrNoRuntime) {
			c.log.Warn("column interpretation failed, using header heuristics",
				zap.String("sheet", sheet), zap.Error(err))
		}
		res = Result{Schema: HeuristicSchema(ds), Source: SourceHeuristic, Reason: err.Error()}
	}
	res.Schema = ApplyOverrides(res.Schema, c.Overrides, ds)
	c.log.Debug("columns interpreted",
		zap.String("sheet", sheet),
		zap.String("source", res.Source),
		zap.Int("bound", res.Schema.Bound()))
	return res, nil
}

func (c *ColumnInterpreter) fromRuntime(ctx context.Context, ds *dataset.Dataset, sheet string) (Result, error) {
	sample := dataset.SampleForAI(ds, columnSampleRows)
	prompt := fmt.Sprintf(`Analyze this spreadsheet:

Sheet: %s

Columns: %s

Sample Rows (first %d):
%s

Which columns represent: assignee, status, errors, notes, title, date, priority?`,
		sheet, strings.Join(sample.Columns, ", "), columnSampleRows, sample.Format())

	var raw map[string]any
	if err := c.callJSON(ctx, columnsSystem, prompt, &raw); err != nil {
		return Result{}, err
	}
	mapping := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			mapping[k] = s
		}
	}
	schema := dataset.NewColumnSchema(mapping, ds)
	if schema.Bound() == 0 && len(ds.Columns()) > 0 {
		return Result{}, errors.New("runtime mapped no known column")
	}
	return Result{Schema: schema, Source: SourceAI}, nil
}

// HeuristicSchema binds concepts by header name. The errors concept also
// requires a numeric column; a datetime column is used for date when no
// header says so.
func HeuristicSchema(ds *dataset.Dataset) dataset.ColumnSchema {
	kinds := map[string]string{}
	for _, p := range dataset.Profile(ds) {
		kinds[p.Name] = p.Kind
	}
	used := map[string]bool{}
	mapping := map[string]string{}
	for _, h := range headerHints {
		for _, col := range ds.Columns() {
			if used[col] || !containsAny(strings.ToLower(col), h.hints) {
				continue
			}
			if h.concept == dataset.ConceptErrors && kinds[col] != dataset.KindNumeric {
				continue
			}
			mapping[string(h.concept)] = col
			used[col] = true
			break
		}
	}
	if _, ok := mapping[string(dataset.ConceptDate)]; !ok {
		for _, col := range ds.Columns() {
			if !used[col] && kinds[col] == dataset.KindDatetime {
				mapping[string(dataset.ConceptDate)] = col
				used[col] = true
				break
			}
		}
	}
	return dataset.NewColumnSchema(mapping, ds)
}

// ApplyOverrides binds each concept -> column pair onto s.
func ApplyOverrides(s dataset.ColumnSchema, overrides map[string]string, ds *dataset.Dataset) dataset.ColumnSchema {
	for k, col := range overrides {
		if c, ok := dataset.ParseConcept(k); ok {
			s = s.With(c, strings.TrimSpace(col), ds)
		}
	}
	return s
}

// ParseOverrides reads "concept=column" pairs.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("invalid mapping %q: expected concept=column", p)
		}
		c, ok := dataset.ParseConcept(k)
		if !ok {
			return nil, fmt.Errorf("unknown concept %q", strings.TrimSpace(k))
		}
		out[string(c)] = strings.TrimSpace(v)
	}
	return out, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
