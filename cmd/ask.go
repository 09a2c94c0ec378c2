package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/worklens-cli/internal/ai"
	"github.com/KaramelBytes/worklens-cli/internal/chat"
	"github.com/KaramelBytes/worklens-cli/internal/utils"
)

var (
	askOpts        sheetOptions
	askJSON        bool
	askInteractive bool
)

var askCmd = &cobra.Command{
	Use:   "ask <file> [question...]",
	Short: "Ask a question about a task spreadsheet",
	Example: `  worklens ask tasks.xlsx "give me a summary"
  worklens ask tasks.xlsx show me frontend tasks --sheet Sprint --user alice
  worklens ask tasks.csv --no-ai --map status=State "what is blocked?"
  worklens ask tasks.xlsx --interactive`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
		ws, err := openWorkspace(cmd.Context(), args[0], askOpts, errOut)
		if err != nil {
			return err
		}
		engine := ws.newEngine()

		question := strings.TrimSpace(strings.Join(args[1:], " "))
		if question == "" || askInteractive {
			if question != "" {
				if err := printAnswer(out, errOut, ws.model, engine.Answer(cmd.Context(), question, ws.ds, ws.schema)); err != nil {
					return err
				}
			}
			return repl(cmd, ws, engine)
		}
		return printAnswer(out, errOut, ws.model, engine.Answer(cmd.Context(), question, ws.ds, ws.schema))
	},
}

// repl reads questions from stdin until EOF or :quit.
func repl(cmd *cobra.Command, ws *workspace, engine *chat.Engine) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if !askJSON {
		fmt.Fprintf(out, "Loaded %s: %d tasks. Commands: :history, :clear, :quit\n", ws.ds.Name, ws.ds.Len())
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		if !askJSON {
			fmt.Fprint(out, "\n> ")
		}
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case ":quit", ":exit", ":q":
			return nil
		case ":clear":
			engine.ClearHistory()
			fmt.Fprintln(out, "History cleared.")
			continue
		case ":history":
			printHistory(out, engine.History())
			continue
		}
		if err := printAnswer(out, errOut, ws.model, engine.Answer(cmd.Context(), line, ws.ds, ws.schema)); err != nil {
			return err
		}
	}
	return sc.Err()
}

func printAnswer(out, errOut io.Writer, model string, ans chat.Answer) error {
	if askJSON {
		b, err := utils.PrettyJSON(ans)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	fmt.Fprintln(out, ans.Text)
	if ans.Err != nil {
		if hint := ai.Hint(ans.Err); hint != "" {
			fmt.Fprintf(errOut, "⚠ Built-in answer used: %s\n", hint)
		}
	}
	if debug && ans.Usage != nil {
		fmt.Fprintf(errOut, "tokens: prompt=%d completion=%d total=%d",
			ans.Usage.PromptTokens, ans.Usage.CompletionTokens, ans.Usage.TotalTokens)
		if cost, ok := ai.EstimateCostUSD(model, ans.Usage.PromptTokens, ans.Usage.CompletionTokens); ok && cost > 0 {
			fmt.Fprintf(errOut, " (~$%.5f)", cost)
		}
		fmt.Fprintln(errOut)
	}
	return nil
}

func printHistory(out io.Writer, h []chat.Exchange) {
	if len(h) == 0 {
		fmt.Fprintln(out, "No questions yet.")
		return
	}
	for i, ex := range h {
		fmt.Fprintf(out, "%d. [%s] %s\n   %s\n", i+1, ex.Source, ex.Question, firstLine(ex.Answer))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func addSheetFlags(cmd *cobra.Command, opts *sheetOptions) {
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "sheet name (default: first sheet)")
	cmd.Flags().StringVar(&opts.User, "user", "", "only keep rows assigned to this user")
	cmd.Flags().StringArrayVar(&opts.Mappings, "map", nil, "override a column mapping, e.g. --map status=State (repeatable)")
	cmd.Flags().BoolVar(&opts.NoAI, "no-ai", false, "never call a model; use header heuristics and built-in answers")
}

func init() {
	rootCmd.AddCommand(askCmd)
	addSheetFlags(askCmd, &askOpts)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print answers as JSON")
	askCmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "keep asking questions until :quit")
}
