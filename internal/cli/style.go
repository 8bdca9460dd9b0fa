package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3FB950"))
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
)

// field is one labelled line of text output.
type field struct {
	label string
	value any
}

// block renders a title followed by aligned label/value lines.
func block(title string, fields ...field) string {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.label))
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(title))
	for _, f := range fields {
		sb.WriteString("\n  ")
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", width+1, f.label+":")))
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprint(f.value))
	}
	return sb.String()
}

// counts renders a status histogram in a stable order.
func counts(m map[string]int) []field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]field, len(keys))
	for i, k := range keys {
		fields[i] = field{k, m[k]}
	}
	return fields
}

// list renders a title and one indented line per item.
func list(title string, items []string) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d)", title, len(items))))
	for _, item := range items {
		sb.WriteString("\n  ")
		sb.WriteString(item)
	}
	return sb.String()
}

func done(msg string) string {
	return okStyle.Render(msg)
}
