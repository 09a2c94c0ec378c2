package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
	"github.com/KaramelBytes/worklens-cli/internal/interpret"
	"github.com/KaramelBytes/worklens-cli/internal/query"
	"github.com/KaramelBytes/worklens-cli/internal/retry"
)

type scriptedRuntime struct {
	mu      sync.Mutex
	replies []any // string or error, the last one repeats
	prompts []string
}

func (s *scriptedRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req.Messages[len(req.Messages)-1].Content)
	next := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	if err, ok := next.(error); ok {
		return nil, err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: next.(string)}}}}, nil
}

func (s *scriptedRuntime) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func testOptions(t *testing.T) interpret.Options {
	return interpret.Options{
		Retry:  &retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 2, MaxInterval: 4 * time.Millisecond},
		Logger: zaptest.NewLogger(t),
	}
}

func sprint() (*dataset.Dataset, dataset.ColumnSchema) {
	cols := []string{"Task", "Owner", "Email", "Status", "Errors", "Priority"}
	rows := []dataset.Row{
		{"Task": "Login", "Owner": "Alice", "Email": "alice@example.com", "Status": "Done", "Errors": 0.0, "Priority": "High"},
		{"Task": "Payment", "Owner": "Bob", "Email": "bob@example.com", "Status": "Pending", "Errors": 2.0, "Priority": "Medium"},
		{"Task": "Search", "Owner": "Alice", "Email": "alice@example.com", "Status": "In Progress", "Errors": 1.0, "Priority": "High"},
		{"Task": "Checkout", "Owner": "Bob", "Email": "bob@example.com", "Status": "Done", "Errors": 0.0, "Priority": "Low"},
		{"Task": "Admin", "Owner": "Alice", "Email": "alice@example.com", "Status": "Blocked", "Errors": 3.0, "Priority": "High"},
		{"Task": "Reports", "Owner": "Bob", "Email": "bob@example.com", "Status": "Open", "Errors": 0.0, "Priority": "Medium"},
	}
	ds := dataset.New("Sprint", cols, rows)
	schema := dataset.NewColumnSchema(map[string]string{
		"title": "Task", "assignee": "Owner", "status": "Status", "errors": "Errors", "priority": "Priority",
	}, ds)
	return ds, schema
}

func TestDefaultFromSchema(t *testing.T) {
	_, schema := sprint()
	cfg := Default("Sprint", schema)
	assert.Equal(t, Config{
		Title: "Sprint Overview",
		Metrics: []Metric{
			{Label: "Total Tasks", Intent: IntentCount},
			{Label: "Pending Tasks", Intent: IntentCondition},
		},
		Charts: []Chart{
			{Type: ChartPie, Dimension: "status"},
			{Type: ChartBar, Dimension: "errors"},
		},
		Table:          Table{Show: true, Focus: FocusPending},
		ColumnMappings: schema.Map(),
		Source:         interpret.SourceHeuristic,
	}, cfg)
}

func TestDefaultWithoutStatus(t *testing.T) {
	ds, _ := sprint()
	schema := dataset.NewColumnSchema(map[string]string{"title": "Task"}, ds)
	cfg := Default("", schema)
	assert.Equal(t, "Task Overview", cfg.Title)
	assert.Equal(t, []Metric{{Label: "Total Tasks", Intent: IntentCount}}, cfg.Metrics)
	assert.Empty(t, cfg.Charts)
	assert.Equal(t, Table{Show: true, Focus: FocusAll}, cfg.Table)
}

func TestDesignFromRuntime(t *testing.T) {
	ds, schema := sprint()
	reply := "```json\n" + `{
  "title": " Sprint Health ",
  "metrics": [
    {"label": "Open Work", "intent": "CONDITION"},
    {"label": "Everything", "intent": ""},
    {"label": "Velocity", "intent": "trend"}
  ],
  "charts": [
    {"type": "pie", "dimension": "priority"},
    {"type": "bar", "dimension": "notes"},
    {"type": "line", "dimension": "status"},
    {"type": "bar", "dimension": "errors"}
  ],
  "table": {"show": true, "focus": "issues"}
}` + "\n```"
	rt := &scriptedRuntime{replies: []any{reply}}

	cfg := NewDesigner(rt, testOptions(t)).Design(context.Background(), "Sprint", interpret.TypeIssueTracking, ds.Len(), schema)

	assert.Equal(t, interpret.SourceAI, cfg.Source)
	assert.Empty(t, cfg.Reason)
	assert.Equal(t, "Sprint Health", cfg.Title)
	assert.Equal(t, []Metric{
		{Label: "Open Work", Intent: IntentCondition},
		{Label: "Everything", Intent: IntentCount},
	}, cfg.Metrics)
	assert.Equal(t, []Chart{
		{Type: ChartPie, Dimension: "priority"},
		{Type: ChartBar, Dimension: "status"},
	}, cfg.Charts)
	assert.Equal(t, Table{Show: true, Focus: FocusIssues}, cfg.Table)
	assert.Equal(t, "Task", cfg.ColumnMappings["title"])

	require.Equal(t, 1, rt.calls())
	prompt := rt.prompts[0]
	assert.Contains(t, prompt, "Type: issue_tracking")
	assert.Contains(t, prompt, "Total Rows: 6")
	assert.Contains(t, prompt, "assignee, status, errors, title, priority")
	assert.NotContains(t, prompt, "Owner")
	assert.NotContains(t, prompt, "alice@example.com")
}

func TestDesignFallsBackToDefault(t *testing.T) {
	ds, schema := sprint()
	for name, reply := range map[string]any{
		"garbage":        "Here is a lovely dashboard for you",
		"nothing usable": `{"metrics": [{"label": "Velocity", "intent": "trend"}], "charts": [{"type": "bar", "dimension": "date"}]}`,
		"auth failure":   &ai.ServiceError{Kind: ai.KindOther, Reason: ai.ReasonAuth, StatusCode: 401},
	} {
		t.Run(name, func(t *testing.T) {
			rt := &scriptedRuntime{replies: []any{reply}}
			cfg := NewDesigner(rt, testOptions(t)).Design(context.Background(), "Sprint", "", ds.Len(), schema)
			assert.Equal(t, interpret.SourceHeuristic, cfg.Source)
			assert.NotEmpty(t, cfg.Reason)
			assert.Equal(t, 1, rt.calls())
			want := Default("Sprint", schema)
			want.Reason = cfg.Reason
			assert.Equal(t, want, cfg)
		})
	}
}

func TestDesignWithoutRuntime(t *testing.T) {
	ds, schema := sprint()
	cfg := NewDesigner(nil, testOptions(t)).Design(context.Background(), "Sprint", "", ds.Len(), schema)
	assert.Equal(t, interpret.SourceHeuristic, cfg.Source)
	assert.Equal(t, interpret.ErrNoRuntime.Error(), cfg.Reason)
}

func TestDesignRetriesRateLimit(t *testing.T) {
	ds, schema := sprint()
	limited := &ai.ServiceError{Kind: ai.KindRateLimited, Reason: ai.ReasonRateLimit, StatusCode: 429}
	rt := &scriptedRuntime{replies: []any{limited, `{"title": "Team", "metrics": [{"label": "All", "intent": "count"}]}`}}
	cfg := NewDesigner(rt, testOptions(t)).Design(context.Background(), "Sprint", "", ds.Len(), schema)
	assert.Equal(t, interpret.SourceAI, cfg.Source)
	assert.Equal(t, 2, rt.calls())
	assert.Equal(t, Table{Show: true, Focus: FocusPending}, cfg.Table)
}

func TestRender(t *testing.T) {
	ds, schema := sprint()
	v := Render(Default("Sprint", schema), ds, schema, nil)

	assert.Equal(t, "Sprint Overview", v.Title)
	assert.Equal(t, []MetricValue{
		{Label: "Total Tasks", Intent: IntentCount, Value: 6},
		{Label: "Pending Tasks", Intent: IntentCondition, Value: 3},
	}, v.Metrics)

	require.Len(t, v.Charts, 2)
	assert.Equal(t, "Status", v.Charts[0].Column)
	assert.Equal(t, ChartPie, v.Charts[0].Type)
	assert.Equal(t, dataset.ValueCount{Value: "Done", Count: 2}, v.Charts[0].Points[0])
	assert.Equal(t, []dataset.ValueCount{
		{Value: "0", Count: 3}, {Value: "2", Count: 1}, {Value: "1", Count: 1}, {Value: "3", Count: 1},
	}, v.Charts[1].Points)

	require.NotNil(t, v.Table)
	assert.Equal(t, FocusPending, v.Table.Focus)
	assert.Equal(t, 3, v.Table.Total)
	require.Len(t, v.Table.Rows, 3)
	assert.Equal(t, "Payment", v.Table.Rows[0]["Task"])
	assert.Equal(t, dataset.MaskedValue, v.Table.Rows[0]["Email"])
	assert.Equal(t, "bob@example.com", ds.Value(1, "Email"), "source rows are not modified")
}

func TestRenderHiddenTable(t *testing.T) {
	ds, schema := sprint()
	cfg := Default("Sprint", schema)
	cfg.Table.Show = false
	assert.Nil(t, Render(cfg, ds, schema, nil).Table)
}

func TestFocused(t *testing.T) {
	ds, schema := sprint()
	agg := query.NewAggregator()

	issues := Focused(ds, schema, FocusIssues, agg)
	require.Equal(t, 3, issues.Len())
	assert.Equal(t, "Payment", issues.Value(0, "Task"))
	assert.Equal(t, "Search", issues.Value(1, "Task"))
	assert.Equal(t, "Admin", issues.Value(2, "Task"))

	assert.Equal(t, 6, Focused(ds, schema, FocusAll, agg).Len())

	noStatus := dataset.NewColumnSchema(map[string]string{"title": "Task"}, ds)
	assert.Equal(t, 6, Focused(ds, noStatus, FocusPending, agg).Len())
}

func TestComputeMetrics(t *testing.T) {
	st := query.Statistics{Total: 9, StatusBuckets: map[string]int{query.BucketPending: 4}}
	got := ComputeMetrics([]Metric{
		{Label: "All", Intent: IntentCount},
		{Label: "Waiting", Intent: IntentCondition},
		{Label: "Other", Intent: "trend"},
	}, st)
	assert.Equal(t, []MetricValue{
		{Label: "All", Intent: IntentCount, Value: 9},
		{Label: "Waiting", Intent: IntentCondition, Value: 4},
		{Label: "Other", Intent: "trend", Value: 0},
	}, got)
}
