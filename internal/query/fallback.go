package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/worklens-cli/internal/dataset"
)

var (
	titleColumns  = []string{"Task Title", "Title", "Description"}
	statusColumns = []string{"Status", "State", "Current Status"}
)

// Compose renders a deterministic answer from the context alone.
// The result is never empty.
func Compose(qc *QueryContext) string {
	q := strings.ToLower(qc.Question)
	switch {
	case qc.Targeted():
		return composeMatches(qc)
	case strings.Contains(q, "status") && len(qc.Stats.StatusDistribution) > 0:
		return composeStatus(qc)
	case strings.Contains(q, "summary") || strings.Contains(q, "overview"):
		return composeSummary(qc)
	default:
		return fmt.Sprintf("You have **%d tasks**. Ask me to show you specific tasks (e.g., 'show me frontend tasks') or request a summary.", qc.Total)
	}
}

// MatchSummary is the one-line statement of the true match count.
func MatchSummary(qc *QueryContext) string {
	return fmt.Sprintf("I found **%d tasks** related to %s.", qc.Matched, strings.Join(qc.Keywords, ", "))
}

func composeMatches(qc *QueryContext) string {
	keywords := strings.Join(qc.Keywords, ", ")
	if qc.Matched == 0 {
		return fmt.Sprintf("I found **0 tasks** matching **%s** in your %d tasks.", keywords, qc.Total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found **%d tasks** related to **%s**:\n\n", qc.Matched, keywords)
	shown := qc.ProseTasks()
	for i, t := range shown {
		titleCol, title := taskTitle(qc, t)
		statusCol, status := taskStatus(qc, t)
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, title)
		fmt.Fprintf(&b, "   Status: %s\n", status)
		for _, f := range t.Fields {
			if f.Column == titleCol || f.Column == statusCol {
				continue
			}
			fmt.Fprintf(&b, "   %s: %s\n", f.Column, f.Value)
		}
		b.WriteString("\n")
	}
	if more := qc.Matched - len(shown); more > 0 {
		fmt.Fprintf(&b, "... and %d more tasks", more)
	}
	return strings.TrimRight(b.String(), "\n")
}

func composeStatus(qc *QueryContext) string {
	var b strings.Builder
	b.WriteString("**Status Breakdown:**\n")
	for _, vc := range qc.Stats.StatusDistribution {
		fmt.Fprintf(&b, "• %s: %d (%s%%)\n", vc.Value, vc.Count, percent(vc.Count, qc.Total))
	}
	return strings.TrimRight(b.String(), "\n")
}

func composeSummary(qc *QueryContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Summary of Your %d Tasks:**\n", qc.Total)

	if dist := qc.Stats.StatusDistribution; len(dist) > 0 {
		b.WriteString("\n**By Status:**\n")
		if len(dist) > 5 {
			dist = dist[:5]
		}
		for _, vc := range dist {
			fmt.Fprintf(&b, "• %s: %d (%s%%)\n", vc.Value, vc.Count, percent(vc.Count, qc.Total))
		}
	}
	if es := qc.Stats.Errors; es != nil && es.Total > 0 {
		b.WriteString("\n**Quality Metrics:**\n")
		fmt.Fprintf(&b, "• Total errors: %s\n", formatNumber(es.Total))
		fmt.Fprintf(&b, "• Tasks with errors: %d\n", es.TasksWithErrors)
		fmt.Fprintf(&b, "• Average errors per task: %s\n", formatNumber(es.Average))
	}
	return strings.TrimRight(b.String(), "\n")
}

// taskTitle returns the column used as the title and its value.
func taskTitle(qc *QueryContext, t TaskDetail) (string, string) {
	for _, c := range []dataset.Concept{dataset.ConceptTitle, dataset.ConceptAssignee} {
		if col, ok := qc.Schema.Column(c); ok {
			if f, ok := t.Lookup(col); ok {
				return f.Column, f.Value
			}
		}
	}
	for _, col := range titleColumns {
		if f, ok := t.Lookup(col); ok {
			return f.Column, f.Value
		}
	}
	if len(t.Fields) > 0 {
		return t.Fields[0].Column, t.Fields[0].Value
	}
	return "", "Task"
}

func taskStatus(qc *QueryContext, t TaskDetail) (string, string) {
	if col, ok := qc.Schema.Column(dataset.ConceptStatus); ok {
		if f, ok := t.Lookup(col); ok {
			return f.Column, f.Value
		}
	}
	for _, col := range statusColumns {
		if f, ok := t.Lookup(col); ok {
			return f.Column, f.Value
		}
	}
	return "", "Unknown"
}

func percent(n, total int) string {
	if total <= 0 {
		return "0.0"
	}
	return strconv.FormatFloat(round(float64(n)/float64(total)*100, 1), 'f', 1, 64)
}

func formatNumber(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
