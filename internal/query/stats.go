package query

import (
	"math"
	"strings"

	"github.com/KaramelBytes/worklens-cli/internal/dataset"
)

// Bucket names used by the default tables.
const (
	BucketPending   = "pending"
	BucketCompleted = "completed"
	BucketBlocked   = "blocked"
	BucketHigh      = "high"
)

// Bucket classifies a value when any trigger is a case-insensitive substring of it.
type Bucket struct {
	Name     string
	Triggers []string
}

// BucketTable is an ordered list of independent buckets. A value may fall in
// several buckets at once.
type BucketTable []Bucket

// DefaultStatusBuckets classify status text.
var DefaultStatusBuckets = BucketTable{
	{Name: BucketPending, Triggers: []string{"pending", "progress", "ongoing", "todo", "open"}},
	{Name: BucketCompleted, Triggers: []string{"completed", "done", "finished", "closed"}},
	{Name: BucketBlocked, Triggers: []string{"blocked", "hold"}},
}

// DefaultPriorityBuckets classify priority text.
var DefaultPriorityBuckets = BucketTable{
	{Name: BucketHigh, Triggers: []string{"high", "critical", "urgent"}},
}

// Match returns the names of every bucket the value falls in.
func (t BucketTable) Match(value string) []string {
	v := strings.ToLower(value)
	if v == "" {
		return nil
	}
	var out []string
	for _, b := range t {
		for _, trig := range b.Triggers {
			if strings.Contains(v, strings.ToLower(trig)) {
				out = append(out, b.Name)
				break
			}
		}
	}
	return out
}

// ErrorStats summarises a numeric errors column.
type ErrorStats struct {
	Total           float64 `json:"total_errors"`
	TasksWithErrors int     `json:"tasks_with_errors"`
	Average         float64 `json:"avg_errors"`
}

// Statistics describes a whole dataset. Concepts absent from the schema
// leave their fields nil or empty.
type Statistics struct {
	Total                int                  `json:"total"`
	StatusBuckets        map[string]int       `json:"status_buckets,omitempty"`
	PriorityBuckets      map[string]int       `json:"priority_buckets,omitempty"`
	Errors               *ErrorStats          `json:"errors,omitempty"`
	StatusDistribution   []dataset.ValueCount `json:"status_distribution,omitempty"`
	PriorityDistribution []dataset.ValueCount `json:"priority_distribution,omitempty"`
}

// Pending counts rows in the pending status bucket.
func (s Statistics) Pending() int { return s.StatusBuckets[BucketPending] }

// Completed counts rows in the completed status bucket.
func (s Statistics) Completed() int { return s.StatusBuckets[BucketCompleted] }

// Blocked counts rows in the blocked status bucket.
func (s Statistics) Blocked() int { return s.StatusBuckets[BucketBlocked] }

// HighPriority counts rows in the high priority bucket.
func (s Statistics) HighPriority() int { return s.PriorityBuckets[BucketHigh] }

// HasStatus reports whether a status column was aggregated.
func (s Statistics) HasStatus() bool { return s.StatusBuckets != nil }

// HasPriority reports whether a priority column was aggregated.
func (s Statistics) HasPriority() bool { return s.PriorityBuckets != nil }

// Aggregator computes Statistics using configurable bucket tables.
type Aggregator struct {
	Status   BucketTable
	Priority BucketTable
}

// NewAggregator returns an Aggregator with the default bucket tables.
func NewAggregator() *Aggregator {
	return &Aggregator{Status: DefaultStatusBuckets, Priority: DefaultPriorityBuckets}
}

// Aggregate never fails: missing columns and dirty values degrade to zero.
func (a *Aggregator) Aggregate(ds *dataset.Dataset, schema dataset.ColumnSchema) Statistics {
	st := Statistics{Total: ds.Len()}

	if col, ok := schema.Column(dataset.ConceptStatus); ok && ds.HasColumn(col) {
		st.StatusBuckets = countBuckets(ds, col, a.Status)
		st.StatusDistribution = dataset.Distribution(ds, col)
	}
	if col, ok := schema.Column(dataset.ConceptErrors); ok && ds.HasColumn(col) {
		st.Errors = errorStats(ds, col)
	}
	if col, ok := schema.Column(dataset.ConceptPriority); ok && ds.HasColumn(col) {
		st.PriorityBuckets = countBuckets(ds, col, a.Priority)
		st.PriorityDistribution = dataset.Distribution(ds, col)
	}
	return st
}

func countBuckets(ds *dataset.Dataset, col string, table BucketTable) map[string]int {
	counts := make(map[string]int, len(table))
	for _, b := range table {
		counts[b.Name] = 0
	}
	for i := 0; i < ds.Len(); i++ {
		for _, name := range table.Match(dataset.Stringify(ds.Value(i, col))) {
			counts[name]++
		}
	}
	return counts
}

func errorStats(ds *dataset.Dataset, col string) *ErrorStats {
	es := &ErrorStats{}
	for i := 0; i < ds.Len(); i++ {
		n, ok := dataset.Number(ds.Value(i, col))
		if !ok {
			continue
		}
		es.Total += n
		if n > 0 {
			es.TasksWithErrors++
		}
	}
	if ds.Len() > 0 {
		es.Average = round(es.Total/float64(ds.Len()), 2)
	}
	return es
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
