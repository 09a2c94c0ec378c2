package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt describes the assistant's role and the shape of the data.
func SystemPrompt(qc *QueryContext) string {
	mapping, err := json.MarshalIndent(qc.Schema, "", "  ")
	if err != nil {
		mapping = []byte("{}")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a data analyst assistant helping a user understand their work tasks.\n\n")
	fmt.Fprintf(&b, "You have access to their task list with %d tasks.\n\n", qc.Total)
	fmt.Fprintf(&b, "Available data columns: %s\n\n", strings.Join(qc.Columns, ", "))
	fmt.Fprintf(&b, "Column mappings: %s\n\n", mapping)
	b.WriteString(`Your capabilities:
1. Search and filter tasks by any criteria (technology, status, priority, keywords)
2. Provide analysis and insights
3. List specific tasks with their relevant details
4. Calculate statistics and percentages
5. Give actionable recommendations

Response guidelines:
- Use only the data provided to you; never invent tasks or numbers
- When listing tasks, include titles and relevant details
- When a search was made, state clearly how many tasks matched
- Give specific numbers and percentages
- Answer in plain prose or markdown, never as raw JSON`)
	return b.String()
}

// UserPrompt embeds the question and the QueryContext.
func UserPrompt(qc *QueryContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Question: %s\n\n", qc.Question)
	b.WriteString("=== DATA CONTEXT ===\n")
	fmt.Fprintf(&b, "Total Tasks: %d\n\n", qc.Total)

	b.WriteString("Statistics:\n")
	for _, line := range statLines(qc.Stats) {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\n")

	if qc.Targeted() {
		fmt.Fprintf(&b, "User is searching for: %s\n", strings.Join(qc.Keywords, ", "))
		fmt.Fprintf(&b, "Matching tasks: %d\n\n", qc.Matched)
		if len(qc.Tasks) > 0 {
			b.WriteString("MATCHING TASKS DETAILS:\n")
			for i, t := range qc.Tasks {
				fmt.Fprintf(&b, "\nTask %d:\n", i+1)
				for _, f := range t.Fields {
					fmt.Fprintf(&b, "  - %s: %s\n", f.Column, f.Value)
				}
			}
			if qc.Matched > len(qc.Tasks) {
				fmt.Fprintf(&b, "\n(%d more matching tasks not shown)\n", qc.Matched-len(qc.Tasks))
			}
			b.WriteString("\n")
		}
	}

	if len(qc.Stats.StatusDistribution) > 0 {
		b.WriteString("Status Distribution:\n")
		for _, vc := range qc.Stats.StatusDistribution {
			fmt.Fprintf(&b, "- %s: %d\n", vc.Value, vc.Count)
		}
		b.WriteString("\n")
	}
	if len(qc.Stats.PriorityDistribution) > 0 {
		b.WriteString("Priority Distribution:\n")
		for _, vc := range qc.Stats.PriorityDistribution {
			fmt.Fprintf(&b, "- %s: %d\n", vc.Value, vc.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("=== INSTRUCTIONS ===\n")
	b.WriteString("Provide a helpful, detailed answer based on the data above.\n")
	b.WriteString("If the user asked to see, show or list tasks, list them with their details.")
	return b.String()
}

func statLines(s Statistics) []string {
	lines := []string{fmt.Sprintf("total: %d", s.Total)}
	if s.HasStatus() {
		lines = append(lines,
			fmt.Sprintf("pending: %d", s.Pending()),
			fmt.Sprintf("completed: %d", s.Completed()),
			fmt.Sprintf("blocked: %d", s.Blocked()),
		)
	}
	if s.Errors != nil {
		lines = append(lines,
			"total_errors: "+formatNumber(s.Errors.Total),
			fmt.Sprintf("tasks_with_errors: %d", s.Errors.TasksWithErrors),
			"avg_errors: "+formatNumber(s.Errors.Average),
		)
	}
	if s.HasPriority() {
		lines = append(lines, fmt.Sprintf("high_priority: %d", s.HighPriority()))
	}
	return lines
}
