package dataset

import (
	"strconv"
	"strings"
)

// MaskedValue replaces the content of sensitive columns.
const MaskedValue = "***MASKED***"

var piiKeywords = []string{"email", "phone", "ssn", "password", "address"}

// FilterForUser keeps rows whose assignee column contains user
// (case-insensitive). An empty user or unknown column returns ds unchanged.
func FilterForUser(ds *Dataset, user, column string) *Dataset {
	user = strings.ToLower(strings.TrimSpace(user))
	if user == "" || !ds.HasColumn(column) {
		return ds
	}
	var keep []int
	for i := 0; i < ds.Len(); i++ {
		if strings.Contains(strings.ToLower(Stringify(ds.Value(i, column))), user) {
			keep = append(keep, i)
		}
	}
	return ds.Subset(keep)
}

// SensitiveColumns returns the columns whose names look like PII, plus any
// extra columns that exist in ds.
func SensitiveColumns(ds *Dataset, extra ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, col := range ds.Columns() {
		lower := strings.ToLower(col)
		for _, kw := range piiKeywords {
			if strings.Contains(lower, kw) {
				out = append(out, col)
				seen[col] = true
				break
			}
		}
	}
	for _, col := range extra {
		if ds.HasColumn(col) && !seen[col] {
			out = append(out, col)
			seen[col] = true
		}
	}
	return out
}

// MaskSensitive returns a copy of ds with sensitive columns masked.
func MaskSensitive(ds *Dataset, extra ...string) *Dataset {
	masked := SensitiveColumns(ds, extra...)
	if len(masked) == 0 {
		return ds
	}
	rows := make([]Row, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		src := ds.Row(i)
		r := make(Row, len(src))
		for k, v := range src {
			r[k] = v
		}
		for _, col := range masked {
			r[col] = MaskedValue
		}
		rows[i] = r
	}
	return New(ds.Name, ds.columns, rows)
}

// Sample is the minimal view of a dataset that may be sent to a model.
type Sample struct {
	Columns []string
	Rows    []Row
	Total   int
}

// SampleForAI returns the column names, the first n masked rows and the total row count.
func SampleForAI(ds *Dataset, n int) Sample {
	head := MaskSensitive(ds.Head(n))
	rows := make([]Row, head.Len())
	for i := range rows {
		rows[i] = head.Row(i)
	}
	return Sample{Columns: ds.Columns(), Rows: rows, Total: ds.Len()}
}

// Format renders sample rows as "Row N: col: value, ..." lines.
func (s Sample) Format() string {
	if len(s.Rows) == 0 {
		return "No data"
	}
	var b strings.Builder
	for i, r := range s.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("  Row ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		for j, col := range s.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(col)
			b.WriteString(": ")
			b.WriteString(Stringify(r[col]))
		}
	}
	return b.String()
}
