package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/worklens-cli/internal/dataset"
	"github.com/KaramelBytes/worklens-cli/internal/interpret"
	"github.com/KaramelBytes/worklens-cli/internal/utils"
)

var (
	sheetsClassify bool
	sheetsNoAI     bool
	sheetsJSON     bool
)

type sheetReport struct {
	Name           string                    `json:"name"`
	Rows           int                       `json:"rows"`
	Columns        []string                  `json:"columns"`
	Mapping        dataset.ColumnSchema      `json:"mapping"`
	MappingSource  string                    `json:"mapping_source"`
	Classification *interpret.Classification `json:"classification,omitempty"`
}

var sheetsCmd = &cobra.Command{
	Use:   "sheets <file>",
	Short: "List the sheets of a workbook with their column mapping",
	Example: `  worklens sheets tasks.xlsx
  worklens sheets tasks.xlsx --classify`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		wb, err := dataset.LoadWorkbook(args[0])
		if err != nil {
			return err
		}
		rt, model := newRuntimeUnless(sheetsNoAI, c, cmd.ErrOrStderr())
		ci := interpret.NewColumnInterpreter(rt, interpretOptions(c, model))
		sc := interpret.NewSheetClassifier(rt, interpretOptions(c, model))

		reports := make([]sheetReport, 0, len(wb.Sheets))
		for _, ds := range wb.Sheets {
			res, err := ci.Interpret(cmd.Context(), ds, ds.Name)
			if err != nil {
				return err
			}
			r := sheetReport{Name: ds.Name, Rows: ds.Len(), Columns: ds.Columns(), Mapping: res.Schema, MappingSource: res.Source}
			if sheetsClassify {
				cl, err := sc.Classify(cmd.Context(), ds.Name, ds)
				if err != nil {
					return err
				}
				r.Classification = &cl
			}
			reports = append(reports, r)
		}

		out := cmd.OutOrStdout()
		if sheetsJSON {
			b, err := utils.PrettyJSON(reports)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}

		header := []string{"Sheet", "Rows", "Cols", "Mapped"}
		if sheetsClassify {
			header = append(header, "Relevant", "Type")
		}
		table := newTable(out, header...)
		for _, r := range reports {
			row := []string{r.Name, strconv.Itoa(r.Rows), strconv.Itoa(len(r.Columns)), mappedSummary(r.Mapping)}
			if cl := r.Classification; cl != nil {
				row = append(row, strconv.FormatBool(cl.Relevant), cl.SheetType)
			}
			table.Append(row)
		}
		table.Render()
		return nil
	},
}

func mappedSummary(s dataset.ColumnSchema) string {
	var parts []string
	for _, c := range dataset.Concepts {
		if col, ok := s.Column(c); ok {
			parts = append(parts, string(c)+"="+col)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
	sheetsCmd.Flags().BoolVar(&sheetsClassify, "classify", false, "also classify each sheet")
	sheetsCmd.Flags().BoolVar(&sheetsNoAI, "no-ai", false, "never call a model; use header heuristics")
	sheetsCmd.Flags().BoolVar(&sheetsJSON, "json", false, "print the report as JSON")
}
