package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/worklens-cli/internal/dashboard"
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
	"github.com/KaramelBytes/worklens-cli/internal/query"
	"github.com/KaramelBytes/worklens-cli/internal/utils"
)

var (
	statsOpts      sheetOptions
	statsJSON      bool
	statsDashboard bool
)

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Show task statistics for a sheet",
	Example: `  worklens stats tasks.xlsx
  worklens stats tasks.xlsx --sheet Sprint --user bob --json
  worklens stats tasks.xlsx --dashboard`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd.Context(), args[0], statsOpts, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if statsDashboard {
			layout, err := ws.designDashboard(cmd.Context())
			if err != nil {
				return err
			}
			view := dashboard.Render(layout, ws.ds, ws.schema, nil)
			if statsJSON {
				b, err := utils.PrettyJSON(map[string]any{"layout": layout, "view": view})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
				return nil
			}
			renderDashboard(out, ws.ds, layout, view)
			return nil
		}
		st := query.NewAggregator().Aggregate(ws.ds, ws.schema)
		if statsJSON {
			b, err := utils.PrettyJSON(st)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		renderStats(out, ws.ds.Name, ws.schema, st)
		return nil
	},
}

func renderStats(out io.Writer, sheet string, schema dataset.ColumnSchema, st query.Statistics) {
	fmt.Fprintf(out, "Sheet: %s\n\n", sheet)

	table := newTable(out, "Metric", "Value")
	table.Append([]string{"Total tasks", strconv.Itoa(st.Total)})
	if st.HasStatus() {
		names := make([]string, 0, len(st.StatusBuckets))
		for name := range st.StatusBuckets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			table.Append([]string{name, strconv.Itoa(st.StatusBuckets[name])})
		}
	}
	if st.HasPriority() {
		table.Append([]string{"high priority", strconv.Itoa(st.HighPriority())})
	}
	if st.Errors != nil {
		table.Append([]string{"total errors", strconv.FormatFloat(st.Errors.Total, 'f', -1, 64)})
		table.Append([]string{"tasks with errors", strconv.Itoa(st.Errors.TasksWithErrors)})
		table.Append([]string{"avg errors", strconv.FormatFloat(st.Errors.Average, 'f', -1, 64)})
	}
	table.Render()

	if col, ok := schema.Column(dataset.ConceptStatus); ok && len(st.StatusDistribution) > 0 {
		fmt.Fprintf(out, "\n%s distribution\n", col)
		renderDistribution(out, st.StatusDistribution, st.Total)
	}
	if col, ok := schema.Column(dataset.ConceptPriority); ok && len(st.PriorityDistribution) > 0 {
		fmt.Fprintf(out, "\n%s distribution\n", col)
		renderDistribution(out, st.PriorityDistribution, st.Total)
	}
}

func renderDashboard(out io.Writer, ds *dataset.Dataset, layout dashboard.Config, view dashboard.View) {
	fmt.Fprintf(out, "Dashboard: %s (%s)\n\n", view.Title, layout.Source)

	table := newTable(out, "Metric", "Value")
	for _, m := range view.Metrics {
		table.Append([]string{m.Label, strconv.Itoa(m.Value)})
	}
	table.Render()

	for _, ch := range view.Charts {
		fmt.Fprintf(out, "\n%s (%s chart)\n", ch.Column, ch.Type)
		renderDistribution(out, ch.Points, ds.Len())
	}

	if tv := view.Table; tv != nil {
		fmt.Fprintf(out, "\nFocus: %s (%d of %d tasks)\n", tv.Focus, tv.Total, ds.Len())
		if len(tv.Rows) == 0 {
			return
		}
		rows := newTable(out, tv.Columns...)
		for _, r := range tv.Rows {
			cells := make([]string, len(tv.Columns))
			for i, col := range tv.Columns {
				cells[i] = dataset.Stringify(r[col])
			}
			rows.Append(cells)
		}
		rows.Render()
	}
}

func renderDistribution(out io.Writer, dist []dataset.ValueCount, total int) {
	table := newTable(out, "Value", "Count", "Share")
	for _, vc := range dist {
		share := 0.0
		if total > 0 {
			share = float64(vc.Count) * 100 / float64(total)
		}
		table.Append([]string{vc.Value, strconv.Itoa(vc.Count), fmt.Sprintf("%.1f%%", share)})
	}
	table.Render()
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addSheetFlags(statsCmd, &statsOpts)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print statistics as JSON")
	statsCmd.Flags().BoolVar(&statsDashboard, "dashboard", false, "lay out a dashboard: headline metrics, charts and a focused task table")
}
