package query

import (
	"strings"

	"github.com/KaramelBytes/worklens-cli/internal/dataset"
)

// Filter returns the rows of ds where any keyword is a case-insensitive
// substring of any column value. Row order is preserved and an empty keyword
// list returns ds itself.
func Filter(ds *dataset.Dataset, keywords []string) *dataset.Dataset {
	if len(keywords) == 0 {
		return ds
	}
	needles := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(k); k != "" {
			needles = append(needles, k)
		}
	}
	if len(needles) == 0 {
		return ds
	}
	cols := ds.Columns()
	var keep []int
	for i := 0; i < ds.Len(); i++ {
		if rowMatches(ds, i, cols, needles) {
			keep = append(keep, i)
		}
	}
	return ds.Subset(keep)
}

func rowMatches(ds *dataset.Dataset, i int, cols, needles []string) bool {
	for _, col := range cols {
		v := ds.Value(i, col)
		if v == nil {
			continue
		}
		hay := strings.ToLower(dataset.Stringify(v))
		if hay == "" {
			continue
		}
		for _, n := range needles {
			if strings.Contains(hay, n) {
				return true
			}
		}
	}
	return false
}
