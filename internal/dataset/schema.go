package dataset

import (
	"encoding/json"
	"strings"
)

// Concept is a semantic role a column may play in a work-tracking sheet.
type Concept string

const (
	ConceptAssignee Concept = "assignee"
	ConceptStatus   Concept = "status"
	ConceptErrors   Concept = "errors"
	ConceptNotes    Concept = "notes"
	ConceptTitle    Concept = "title"
	ConceptDate     Concept = "date"
	ConceptPriority Concept = "priority"
)

// Concepts lists every concept in a stable order.
var Concepts = []Concept{
	ConceptAssignee,
	ConceptStatus,
	ConceptErrors,
	ConceptNotes,
	ConceptTitle,
	ConceptDate,
	ConceptPriority,
}

// Absent is the sentinel used when a concept has no column.
const Absent = "none"

// ParseConcept resolves a concept name case-insensitively.
func ParseConcept(s string) (Concept, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Concepts {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ColumnSchema maps concepts to columns of one dataset. The zero value maps
// every concept to Absent.
type ColumnSchema struct {
	cols map[Concept]string
}

// NewColumnSchema validates a raw concept->column mapping against ds. Unknown
// concepts are ignored; columns the dataset does not have become Absent.
func NewColumnSchema(mapping map[string]string, ds *Dataset) ColumnSchema {
	s := ColumnSchema{cols: make(map[Concept]string, len(Concepts))}
	for k, v := range mapping {
		c, ok := ParseConcept(k)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, Absent) || !ds.HasColumn(v) {
			continue
		}
		s.cols[c] = v
	}
	return s
}

// Column returns the column bound to c.
func (s ColumnSchema) Column(c Concept) (string, bool) {
	col, ok := s.cols[c]
	return col, ok
}

// With returns a copy of s where c is bound to col, if ds has that column.
func (s ColumnSchema) With(c Concept, col string, ds *Dataset) ColumnSchema {
	out := ColumnSchema{cols: make(map[Concept]string, len(Concepts))}
	for k, v := range s.cols {
		out.cols[k] = v
	}
	if strings.EqualFold(col, Absent) {
		delete(out.cols, c)
		return out
	}
	if ds.HasColumn(col) {
		out.cols[c] = col
	}
	return out
}

// Map renders the schema with Absent for unbound concepts.
func (s ColumnSchema) Map() map[string]string {
	out := make(map[string]string, len(Concepts))
	for _, c := range Concepts {
		if col, ok := s.cols[c]; ok {
			out[string(c)] = col
		} else {
			out[string(c)] = Absent
		}
	}
	return out
}

// Bound returns the number of concepts mapped to a column.
func (s ColumnSchema) Bound() int { return len(s.cols) }

// MarshalJSON encodes the schema as its full concept map, absent concepts
// included as "none".
func (s ColumnSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}
