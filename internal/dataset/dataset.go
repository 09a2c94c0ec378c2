package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Row maps a column name to a scalar cell value. Supported values are nil,
// string, float64, int, int64, bool and time.Time.
type Row map[string]any

// Dataset is an ordered, read-only table with a fixed column set.
type Dataset struct {
	Name    string
	columns []string
	index   map[string]struct{}
	rows    []Row
}

// New builds a Dataset. Columns keep the given order; rows are not copied.
func New(name string, columns []string, rows []Row) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	idx := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		idx[c] = struct{}{}
	}
	return &Dataset{Name: name, columns: cols, index: idx, rows: rows}
}

// Columns returns a copy of the column names in order.
func (d *Dataset) Columns() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// HasColumn reports whether name is one of the dataset's columns.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.index[name]
	return ok
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Row returns the i-th row. Callers must not modify it.
func (d *Dataset) Row(i int) Row { return d.rows[i] }

// Value returns the cell at row i, column col (nil when missing).
func (d *Dataset) Value(i int, col string) any {
	return d.rows[i][col]
}

// Subset returns a view holding the rows at the given indexes, in that order.
func (d *Dataset) Subset(indexes []int) *Dataset {
	rows := make([]Row, 0, len(indexes))
	for _, i := range indexes {
		rows = append(rows, d.rows[i])
	}
	return &Dataset{Name: d.Name, columns: d.columns, index: d.index, rows: rows}
}

// Head returns the first n rows (all rows if n exceeds Len).
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 {
		n = 0
	}
	if n > d.Len() {
		n = d.Len()
	}
	return &Dataset{Name: d.Name, columns: d.columns, index: d.index, rows: d.rows[:n]}
}

// Stringify renders a cell the way it is searched and displayed.
// Missing values render as the empty string.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// IsEmpty reports whether a cell is missing or whitespace only.
func IsEmpty(v any) bool {
	return strings.TrimSpace(Stringify(v)) == ""
}

// Number coerces a cell to a float. Dirty or missing values report ok=false.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, ok := parseLocaleNumber(s)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// parseLocaleNumber reads "1,5", "1.234,5", "1,234.5" and "12 345". When both
// separators appear the last one is the decimal mark. A lone comma is a
// decimal mark unless it repeats or is followed by exactly three digits.
func parseLocaleNumber(s string) (float64, bool) {
	raw := strings.ReplaceAll(s, "\u00A0", " ")
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	dec := '.'
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			dec = ','
		}
	case cpos >= 0:
		if strings.Count(raw, ",") == 1 && !threeDigitGroup(raw[cpos+1:]) {
			dec = ','
		}
	}
	for _, sep := range []string{",", ".", " "} {
		if sep != string(dec) {
			raw = strings.ReplaceAll(raw, sep, "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func threeDigitGroup(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseCell converts raw spreadsheet text into a typed cell value.
func ParseCell(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}
