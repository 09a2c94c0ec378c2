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

const classifySampleRows = 3

// Sheet types.
const (
	TypeTaskTracking  = "task_tracking"
	TypeIssueTracking = "issue_tracking"
	TypeReport        = "report"
	TypeSummary       = "summary"
	TypeIrrelevant    = "irrelevant"
)

var sheetTypes = []string{TypeTaskTracking, TypeIssueTracking, TypeReport, TypeSummary, TypeIrrelevant}

const classifySystem = `You are analyzing a spreadsheet workbook.

Your task:
1. Decide whether this sheet is relevant for tracking work, tasks, issues, or progress.
2. Identify what type of data the sheet contains.

Return ONLY valid JSON in this format:

{
  "relevant": true or false,
  "sheet_type": "task_tracking" or "issue_tracking" or "report" or "summary" or "irrelevant",
  "description": "short explanation"
}

Do not guess.
If the sheet does not look useful, mark relevant=false.`

// Classification describes one sheet.
type Classification struct {
	Sheet       string `json:"sheet_name"`
	Relevant    bool   `json:"relevant"`
	SheetType   string `json:"sheet_type"`
	Description string `json:"description"`
	Rows        int    `json:"num_rows"`
	Columns     int    `json:"num_columns"`
	Source      string `json:"source"`
}

// SheetClassifier decides whether a sheet tracks work.
type SheetClassifier struct {
	caller
}

func NewSheetClassifier(rt ai.Runtime, opts Options) *SheetClassifier {
	return &SheetClassifier{caller: newCaller(rt, opts, "classify")}
}

// Classify labels a sheet; generation failures use the heuristic.
func (s *SheetClassifier) Classify(ctx context.Context, sheet string, ds *dataset.Dataset) (Classification, error) {
	if ds == nil {
		return Classification{}, errors.New("classify sheet: nil dataset")
	}
	c, err := s.fromRuntime(ctx, sheet, ds)
	if err != nil {
		if !errors.Is(err, ErrNoRuntime) {
			s.log.Warn("sheet classification failed, using heuristic",
				zap.String("sheet", sheet), zap.Error(err))
		}
		c = HeuristicClassification(ds)
	}
	c.Sheet = sheet
	c.Rows = ds.Len()
	c.Columns = len(ds.Columns())
	return c, nil
}

type classifyReply struct {
	Relevant    any    `json:"relevant"`
	SheetType   string `json:"sheet_type"`
	Description string `json:"description"`
}

func (s *SheetClassifier) fromRuntime(ctx context.Context, sheet string, ds *dataset.Dataset) (Classification, error) {
	sample := dataset.SampleForAI(ds, classifySampleRows)
	prompt := fmt.Sprintf(`Analyze this sheet:

Sheet Name: %s

Columns: %s

Sample Rows (first %d):
%s

Total Rows: %d

Is this sheet relevant for work tracking? What type is it?`,
		sheet, strings.Join(sample.Columns, ", "), classifySampleRows, sample.Format(), sample.Total)

	var r classifyReply
	if err := s.callJSON(ctx, classifySystem, prompt, &r); err != nil {
		return Classification{}, err
	}
	relevant, ok := asBool(r.Relevant)
	if !ok {
		return Classification{}, fmt.Errorf("unexpected relevant value %v", r.Relevant)
	}
	typ := strings.ToLower(strings.TrimSpace(r.SheetType))
	if !known(typ) {
		typ = TypeIrrelevant
		if relevant {
			typ = TypeTaskTracking
		}
	}
	return Classification{
		Relevant:    relevant,
		SheetType:   typ,
		Description: strings.TrimSpace(r.Description),
		Source:      SourceAI,
	}, nil
}

// HeuristicClassification marks a sheet as task tracking when it has a status
// column, or both an assignee and a title column.
func HeuristicClassification(ds *dataset.Dataset) Classification {
	c := Classification{SheetType: TypeIrrelevant, Source: SourceHeuristic, Description: "no work-tracking columns found"}
	if ds.Len() == 0 {
		c.Description = "sheet has no rows"
		return c
	}
	schema := HeuristicSchema(ds)
	_, status := schema.Column(dataset.ConceptStatus)
	_, assignee := schema.Column(dataset.ConceptAssignee)
	_, title := schema.Column(dataset.ConceptTitle)
	if status || (assignee && title) {
		c.Relevant = true
		c.SheetType = TypeTaskTracking
		c.Description = "columns look like a task tracker"
	}
	return c
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

func known(typ string) bool {
	for _, t := range sheetTypes {
		if t == typ {
			return true
		}
	}
	return false
}
