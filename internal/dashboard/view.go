package dashboard

import (
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
	"github.com/KaramelBytes/worklens-cli/internal/query"
)

// MaxTableRows bounds the rows carried by a rendered table.
const MaxTableRows = 50

type MetricValue struct {
	Label  string `json:"label"`
	Intent string `json:"intent"`
	Value  int    `json:"value"`
}

// Series is the data behind one chart.
type Series struct {
	Type      string               `json:"type"`
	Dimension string               `json:"dimension"`
	Column    string               `json:"column"`
	Points    []dataset.ValueCount `json:"points"`
}

// TableView holds the focused rows, masked and capped at MaxTableRows.
type TableView struct {
	Focus   string        `json:"focus"`
	Columns []string      `json:"columns"`
	Rows    []dataset.Row `json:"rows"`
	Total   int           `json:"total"`
}

// View is a Config filled with values from one dataset.
type View struct {
	Title   string        `json:"title"`
	Metrics []MetricValue `json:"metrics"`
	Charts  []Series      `json:"charts"`
	Table   *TableView    `json:"table,omitempty"`
}

// ComputeMetrics resolves metric intents against st: count is the row total
// and condition the pending bucket.
func ComputeMetrics(metrics []Metric, st query.Statistics) []MetricValue {
	out := make([]MetricValue, 0, len(metrics))
	for _, m := range metrics {
		v := 0
		switch m.Intent {
		case IntentCount:
			v = st.Total
		case IntentCondition:
			v = st.Pending()
		}
		out = append(out, MetricValue{Label: m.Label, Intent: m.Intent, Value: v})
	}
	return out
}

// Render computes every value cfg asks for over ds.
func Render(cfg Config, ds *dataset.Dataset, schema dataset.ColumnSchema, agg *query.Aggregator) View {
	if agg == nil {
		agg = query.NewAggregator()
	}
	st := agg.Aggregate(ds, schema)
	v := View{Title: cfg.Title, Metrics: ComputeMetrics(cfg.Metrics, st), Charts: []Series{}}

	for _, ch := range cfg.Charts {
		concept := dataset.Concept(ch.Dimension)
		col, ok := schema.Column(concept)
		if !ok || !ds.HasColumn(col) {
			continue
		}
		var points []dataset.ValueCount
		switch concept {
		case dataset.ConceptStatus:
			points = st.StatusDistribution
		case dataset.ConceptPriority:
			points = st.PriorityDistribution
		default:
			points = dataset.Distribution(ds, col)
		}
		v.Charts = append(v.Charts, Series{Type: ch.Type, Dimension: ch.Dimension, Column: col, Points: points})
	}

	if cfg.Table.Show {
		focused := Focused(ds, schema, cfg.Table.Focus, agg)
		shown := dataset.MaskSensitive(focused.Head(MaxTableRows))
		tv := &TableView{Focus: cfg.Table.Focus, Columns: ds.Columns(), Total: focused.Len(), Rows: []dataset.Row{}}
		for i := 0; i < shown.Len(); i++ {
			tv.Rows = append(tv.Rows, shown.Row(i))
		}
		v.Table = tv
	}
	return v
}

// Focused returns the rows a table focus selects: pending rows by the
// status bucket table, rows with a positive error count, or all rows.
func Focused(ds *dataset.Dataset, schema dataset.ColumnSchema, focus string, agg *query.Aggregator) *dataset.Dataset {
	if agg == nil {
		agg = query.NewAggregator()
	}
	var keep func(i int) bool
	switch focus {
	case FocusPending:
		col, ok := schema.Column(dataset.ConceptStatus)
		if !ok {
			return ds
		}
		keep = func(i int) bool {
			for _, b := range agg.Status.Match(dataset.Stringify(ds.Value(i, col))) {
				if b == query.BucketPending {
					return true
				}
			}
			return false
		}
	case FocusIssues:
		col, ok := schema.Column(dataset.ConceptErrors)
		if !ok {
			return ds
		}
		keep = func(i int) bool {
			n, ok := dataset.Number(ds.Value(i, col))
			return ok && n > 0
		}
	default:
		return ds
	}
	var idx []int
	for i := 0; i < ds.Len(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return ds.Subset(idx)
}
