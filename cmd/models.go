package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
)

var modelsProvider string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect known models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models with context size and pricing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		names := make([]string, 0, len(cat))
		for name, mi := range cat {
			if modelsProvider != "" && mi.Provider != modelsProvider {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)

		table := newTable(cmd.OutOrStdout(), "Model", "Provider", "Context", "$/1K in", "$/1K out", "Default")
		for _, name := range names {
			mi := cat[name]
			def := ""
			if ai.DefaultModel(mi.Provider) == name {
				def = "yes"
			}
			table.Append([]string{
				name, mi.Provider, strconv.Itoa(mi.ContextTokens),
				fmt.Sprintf("%.5f", mi.InputPerK), fmt.Sprintf("%.5f", mi.OutputPerK), def,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsListCmd.Flags().StringVar(&modelsProvider, "provider-filter", "", "only list models of this provider")
}
