package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupported indicates a file format that cannot be loaded.
var ErrUnsupported = errors.New("unsupported workbook format")

// Workbook holds every sheet of a loaded file, in workbook order.
type Workbook struct {
	Path   string
	Sheets []*Dataset
}

// Names returns the sheet names in order.
func (w *Workbook) Names() []string {
	out := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		out[i] = s.Name
	}
	return out
}

// Sheet finds a sheet by name (case-insensitive).
func (w *Workbook) Sheet(name string) (*Dataset, bool) {
	for _, s := range w.Sheets {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}

// LoadWorkbook reads an .xlsx/.xlsm workbook or a .csv/.tsv file.
// The first row of every sheet is the header.
func LoadWorkbook(path string) (*Workbook, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xlsm"):
		return loadExcel(path)
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".tsv"):
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		ds, err := ReadCSV(f, name, sniffDelimiter(path))
		if err != nil {
			return nil, err
		}
		return &Workbook{Path: path, Sheets: []*Dataset{ds}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

func loadExcel(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	wb := &Workbook{Path: path}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		wb.Sheets = append(wb.Sheets, FromRecords(sheet, rows))
	}
	return wb, nil
}

// ReadCSV reads delimited text into a Dataset.
func ReadCSV(r io.Reader, name string, delim rune) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim
	var records [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return FromRecords(name, records), nil
}

// FromRecords builds a Dataset from raw string records whose first record is
// the header. Short records are padded and blank rows are skipped.
func FromRecords(name string, records [][]string) *Dataset {
	if len(records) == 0 {
		return New(name, nil, nil)
	}
	header := headerNames(records[0])
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		blank := true
		for j, col := range header {
			var cell any
			if j < len(rec) {
				cell = ParseCell(rec[j])
			}
			if cell != nil {
				blank = false
			}
			row[col] = cell
		}
		if blank {
			continue
		}
		rows = append(rows, row)
	}
	return New(name, header, rows)
}

// headerNames names blank headers "Column N" and suffixes duplicates ".1", ".2".
func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	used := map[string]bool{}
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Column " + strconv.Itoa(i+1)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
