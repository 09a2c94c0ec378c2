package dataset

import (
	"sort"
	"strings"
	"time"
)

// Column kinds inferred by Profile.
const (
	KindNumeric     = "numeric"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindEmpty       = "empty"
)

// ColumnProfile summarises one column.
type ColumnProfile struct {
	Name      string
	Kind      string
	NonEmpty  int
	Missing   int
	Unique    int
	TopValues []ValueCount
}

// ValueCount is a value with its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Profile infers a kind and simple statistics for every column.
func Profile(ds *Dataset) []ColumnProfile {
	out := make([]ColumnProfile, 0, len(ds.Columns()))
	for _, col := range ds.Columns() {
		out = append(out, profileColumn(ds, col))
	}
	return out
}

func profileColumn(ds *Dataset, col string) ColumnProfile {
	p := ColumnProfile{Name: col}
	var numCnt, dtCnt, txtCnt int
	for i := 0; i < ds.Len(); i++ {
		v := ds.Value(i, col)
		if IsEmpty(v) {
			p.Missing++
			continue
		}
		p.NonEmpty++
		switch x := v.(type) {
		case time.Time:
			dtCnt++
			continue
		case string:
			if _, ok := Number(x); ok {
				numCnt++
				continue
			}
			if _, ok := parseTimeMaybe(strings.TrimSpace(x)); ok {
				dtCnt++
				continue
			}
			txtCnt++
		default:
			if _, ok := Number(v); ok {
				numCnt++
			} else {
				txtCnt++
			}
		}
	}
	p.TopValues = Distribution(ds, col)
	p.Unique = len(p.TopValues)
	if len(p.TopValues) > 5 {
		p.TopValues = p.TopValues[:5]
	}
	switch {
	case p.NonEmpty == 0:
		p.Kind = KindEmpty
	case numCnt == p.NonEmpty:
		p.Kind = KindNumeric
	case dtCnt == p.NonEmpty:
		p.Kind = KindDatetime
	case p.Unique <= 20 || p.Unique*2 <= p.NonEmpty:
		p.Kind = KindCategorical
	default:
		p.Kind = KindText
	}
	return p
}

// Distribution counts non-empty stringified values of col, ordered by
// count descending and then by first appearance.
func Distribution(ds *Dataset, col string) []ValueCount {
	if !ds.HasColumn(col) {
		return nil
	}
	counts := map[string]int{}
	var order []string
	for i := 0; i < ds.Len(); i++ {
		v := strings.TrimSpace(Stringify(ds.Value(i, col)))
		if v == "" {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	out := make([]ValueCount, len(order))
	for i, v := range order {
		out[i] = ValueCount{Value: v, Count: counts[v]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
		"01-02-06", "1/2/06",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
