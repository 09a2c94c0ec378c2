package query

import (
	"strings"

	"github.com/KaramelBytes/worklens-cli/internal/dataset"
)

// Default row limits for a QueryContext.
const (
	DefaultDetailRows = 10
	DefaultProseRows  = 5
)

// Field is one non-empty column/value pair of a matched row.
type Field struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// TaskDetail is a matched row reduced to its non-empty fields, in column order.
type TaskDetail struct {
	Fields []Field `json:"fields"`
}

// Lookup finds the field for column (case-insensitive).
func (t TaskDetail) Lookup(column string) (Field, bool) {
	for _, f := range t.Fields {
		if strings.EqualFold(f.Column, column) {
			return f, true
		}
	}
	return Field{}, false
}

// Get returns the value of column (case-insensitive).
func (t TaskDetail) Get(column string) (string, bool) {
	f, ok := t.Lookup(column)
	return f.Value, ok
}

// QueryContext is the bounded summary handed to the answering step.
// Statistics always describe the full dataset; Tasks only the first matches.
type QueryContext struct {
	Question  string               `json:"question"`
	Total     int                  `json:"total_rows"`
	Columns   []string             `json:"columns"`
	Schema    dataset.ColumnSchema `json:"column_mappings"`
	Keywords  []string             `json:"search_keywords,omitempty"`
	Matched   int                  `json:"filtered_rows"`
	Tasks     []TaskDetail         `json:"matching_tasks,omitempty"`
	Stats     Statistics           `json:"statistics"`
	ProseRows int                  `json:"-"`
}

// Targeted reports whether the question named specific keywords.
func (q *QueryContext) Targeted() bool { return len(q.Keywords) > 0 }

// ProseTasks returns the tasks shown in composed prose.
func (q *QueryContext) ProseTasks() []TaskDetail {
	n := q.ProseRows
	if n <= 0 || n > len(q.Tasks) {
		n = len(q.Tasks)
	}
	return q.Tasks[:n]
}

// Builder assembles QueryContexts.
type Builder struct {
	Extractor  *KeywordExtractor
	Aggregator *Aggregator
	DetailRows int
	ProseRows  int
}

// NewBuilder returns a Builder with default limits and bucket tables.
func NewBuilder(vocabulary []string) *Builder {
	return &Builder{
		Extractor:  NewKeywordExtractor(vocabulary),
		Aggregator: NewAggregator(),
		DetailRows: DefaultDetailRows,
		ProseRows:  DefaultProseRows,
	}
}

// Build extracts keywords, filters rows and aggregates statistics over the
// whole dataset. Only the first DetailRows matches are materialised.
func (b *Builder) Build(question string, ds *dataset.Dataset, schema dataset.ColumnSchema) *QueryContext {
	detail := b.DetailRows
	if detail <= 0 {
		detail = DefaultDetailRows
	}
	prose := b.ProseRows
	if prose <= 0 || prose > detail {
		prose = min(DefaultProseRows, detail)
	}
	qc := &QueryContext{
		Question:  question,
		Total:     ds.Len(),
		Columns:   ds.Columns(),
		Schema:    schema,
		Keywords:  b.Extractor.Extract(question),
		Stats:     b.Aggregator.Aggregate(ds, schema),
		ProseRows: prose,
	}
	if qc.Targeted() {
		matched := Filter(ds, qc.Keywords)
		qc.Matched = matched.Len()
		head := matched.Head(detail)
		masked := map[string]bool{}
		for _, col := range dataset.SensitiveColumns(ds) {
			masked[col] = true
		}
		for i := 0; i < head.Len(); i++ {
			qc.Tasks = append(qc.Tasks, taskDetail(head, i, qc.Columns, masked))
		}
	} else {
		qc.Matched = ds.Len()
	}
	return qc
}

// taskDetail keeps the non-empty fields of row i; masked columns keep their
// name but not their value.
func taskDetail(ds *dataset.Dataset, i int, cols []string, masked map[string]bool) TaskDetail {
	var td TaskDetail
	for _, col := range cols {
		v := strings.TrimSpace(dataset.Stringify(ds.Value(i, col)))
		if v == "" {
			continue
		}
		if masked[col] {
			v = dataset.MaskedValue
		}
		td.Fields = append(td.Fields, Field{Column: col, Value: v})
	}
	return td
}
