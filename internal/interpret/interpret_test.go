package interpret

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
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

func testOptions(t *testing.T) Options {
	return Options{
		Retry:  &retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 2, MaxInterval: 4 * time.Millisecond},
		Logger: zaptest.NewLogger(t),
	}
}

func tracker() *dataset.Dataset {
	cols := []string{"Task Title", "Assigned To", "Email", "Status", "Error Count", "Notes", "Due Date", "Priority"}
	var rows []dataset.Row
	for i := 0; i < 8; i++ {
		rows = append(rows, dataset.Row{
			"Task Title":  fmt.Sprintf("Task %d", i+1),
			"Assigned To": []string{"Alice", "Bob"}[i%2],
			"Email":       fmt.Sprintf("user%d@example.com", i),
			"Status":      []string{"Done", "Pending"}[i%2],
			"Error Count": float64(i % 3),
			"Notes":       "n/a",
			"Due Date":    "2026-03-0" + fmt.Sprint(i+1),
			"Priority":    "High",
		})
	}
	return dataset.New("Tracker", cols, rows)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
		wantErr        bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"chatter", `Sure! Here it is: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`, false},
		{"none", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretFromRuntime(t *testing.T) {
	ds := tracker()
	rt := &scriptedRuntime{replies: []any{"```json\n" + `{"assignee":"Assigned To","status":"Status","errors":"Error Count",
		"notes":"none","title":"Task Title","date":"Deadline","priority":"Priority"}` + "\n```"}}
	res, err := NewColumnInterpreter(rt, testOptions(t)).Interpret(context.Background(), ds, "Tracker")
	require.NoError(t, err)

	assert.Equal(t, SourceAI, res.Source)
	m := res.Schema.Map()
	assert.Equal(t, "Assigned To", m["assignee"])
	assert.Equal(t, "Error Count", m["errors"])
	assert.Equal(t, dataset.Absent, m["notes"])
	assert.Equal(t, dataset.Absent, m["date"], "columns the sheet lacks are dropped")

	require.Equal(t, 1, rt.calls())
	prompt := rt.prompts[0]
	assert.Contains(t, prompt, "Sheet: Tracker")
	assert.Contains(t, prompt, "Row 5:")
	assert.NotContains(t, prompt, "Row 6:")
	assert.NotContains(t, prompt, "@example.com")
	assert.Contains(t, prompt, dataset.MaskedValue)
}

func TestInterpretFallsBackToHeuristics(t *testing.T) {
	ds := tracker()
	for name, reply := range map[string]any{
		"garbage":       "I cannot help with that",
		"empty mapping": `{"assignee":"none","status":"none"}`,
		"auth failure":  &ai.ServiceError{Kind: ai.KindOther, Reason: ai.ReasonAuth, StatusCode: 401},
	} {
		t.Run(name, func(t *testing.T) {
			rt := &scriptedRuntime{replies: []any{reply}}
			res, err := NewColumnInterpreter(rt, testOptions(t)).Interpret(context.Background(), ds, "Tracker")
			require.NoError(t, err)
			assert.Equal(t, SourceHeuristic, res.Source)
			assert.NotEmpty(t, res.Reason)
			assert.Equal(t, 1, rt.calls())
			col, ok := res.Schema.Column(dataset.ConceptStatus)
			assert.True(t, ok)
			assert.Equal(t, "Status", col)
		})
	}
}

func TestInterpretRetriesRateLimit(t *testing.T) {
	limited := &ai.ServiceError{Kind: ai.KindRateLimited, Reason: ai.ReasonRateLimit, StatusCode: 429}
	rt := &scriptedRuntime{replies: []any{limited, `{"status":"Status","title":"Task Title"}`}}
	res, err := NewColumnInterpreter(rt, testOptions(t)).Interpret(context.Background(), tracker(), "Tracker")
	require.NoError(t, err)
	assert.Equal(t, SourceAI, res.Source)
	assert.Equal(t, 2, rt.calls())
}

func TestHeuristicSchema(t *testing.T) {
	m := HeuristicSchema(tracker()).Map()
	assert.Equal(t, map[string]string{
		"assignee": "Assigned To",
		"status":   "Status",
		"errors":   "Error Count",
		"notes":    "Notes",
		"title":    "Task Title",
		"date":     "Due Date",
		"priority": "Priority",
	}, m)
}

func TestHeuristicErrorsMustBeNumeric(t *testing.T) {
	ds := dataset.New("t", []string{"Issue", "Owner", "Opened"}, []dataset.Row{
		{"Issue": "Login broken", "Owner": "Alice", "Opened": "2026-01-02"},
		{"Issue": "Slow search", "Owner": "Bob", "Opened": "2026-01-05"},
	})
	s := HeuristicSchema(ds)
	_, ok := s.Column(dataset.ConceptErrors)
	assert.False(t, ok)
	col, _ := s.Column(dataset.ConceptDate)
	assert.Equal(t, "Opened", col, "datetime column used when no header hints at a date")
}

func TestInterpretWithoutRuntimeAppliesOverrides(t *testing.T) {
	ci := NewColumnInterpreter(nil, Options{})
	ci.Overrides = map[string]string{"notes": "none", "title": "Email", "date": "Missing"}
	res, err := ci.Interpret(context.Background(), tracker(), "Tracker")
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, res.Source)
	m := res.Schema.Map()
	assert.Equal(t, dataset.Absent, m["notes"])
	assert.Equal(t, "Email", m["title"])
	assert.Equal(t, "Due Date", m["date"], "unknown override column leaves the binding alone")
}

func TestInterpretNilDataset(t *testing.T) {
	_, err := NewColumnInterpreter(nil, Options{}).Interpret(context.Background(), nil, "x")
	assert.Error(t, err)
}

func TestParseOverrides(t *testing.T) {
	got, err := ParseOverrides([]string{"Status = State", "errors=Bugs"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "State", "errors": "Bugs"}, got)

	_, err = ParseOverrides([]string{"status"})
	assert.Error(t, err)
	_, err = ParseOverrides([]string{"owner=Alice"})
	assert.Error(t, err)
}

func TestClassifyFromRuntime(t *testing.T) {
	rt := &scriptedRuntime{replies: []any{`{"relevant": "true", "sheet_type": "Issue_Tracking", "description": "bug list"}`}}
	c, err := NewSheetClassifier(rt, testOptions(t)).Classify(context.Background(), "Bugs", tracker())
	require.NoError(t, err)
	assert.Equal(t, Classification{
		Sheet: "Bugs", Relevant: true, SheetType: TypeIssueTracking, Description: "bug list",
		Rows: 8, Columns: 8, Source: SourceAI,
	}, c)
	assert.Contains(t, rt.prompts[0], "Total Rows: 8")
	assert.NotContains(t, rt.prompts[0], "Row 4:")
}

func TestClassifyUnknownType(t *testing.T) {
	rt := &scriptedRuntime{replies: []any{`{"relevant": false, "sheet_type": "lookup", "description": "codes"}`}}
	c, err := NewSheetClassifier(rt, testOptions(t)).Classify(context.Background(), "Codes", tracker())
	require.NoError(t, err)
	assert.False(t, c.Relevant)
	assert.Equal(t, TypeIrrelevant, c.SheetType)
}

func TestClassifyHeuristic(t *testing.T) {
	rt := &scriptedRuntime{replies: []any{errors.New("connection refused")}}
	sc := NewSheetClassifier(rt, testOptions(t))

	c, err := sc.Classify(context.Background(), "Tracker", tracker())
	require.NoError(t, err)
	assert.True(t, c.Relevant)
	assert.Equal(t, TypeTaskTracking, c.SheetType)
	assert.Equal(t, SourceHeuristic, c.Source)

	lookup := dataset.New("Rates", []string{"Currency", "Rate"}, []dataset.Row{{"Currency": "EUR", "Rate": 1.1}})
	c, err = sc.Classify(context.Background(), "Rates", lookup)
	require.NoError(t, err)
	assert.False(t, c.Relevant)
	assert.Equal(t, TypeIrrelevant, c.SheetType)

	c, err = sc.Classify(context.Background(), "Empty", dataset.New("Empty", []string{"Status"}, nil))
	require.NoError(t, err)
	assert.False(t, c.Relevant)
	assert.Equal(t, "sheet has no rows", c.Description)
}
