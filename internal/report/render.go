package report

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"surveycli/pkg/contracts/domain"
)

const generatedAtLayout = "2006-01-02 15:04:05 MST"

// RenderText renders the report for terminals and logs: one block per
// column, each entry as "value: count (percentage%)".
func RenderText(report domain.StatsReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Survey Statistics: %s\n", report.Table)
	fmt.Fprintf(&b, "Generated: %s\n", report.GeneratedAt.Format(generatedAtLayout))
	fmt.Fprintf(&b, "Rows: %d, Columns: %d, Top N: %d\n", report.RowCount, report.ColumnCount, report.TopN)

	for _, col := range report.Columns {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s (%s)\n", col.Header, columnQualifier(col))

		if len(col.Distribution) == 0 {
			b.WriteString("  no answers\n")
			continue
		}
		for _, e := range col.Distribution {
			fmt.Fprintf(&b, "  %s: %d (%s)\n", e.Value, e.Count, formatPercentage(e.Percentage))
		}
		if col.Numeric != nil {
			fmt.Fprintf(&b, "  %s\n", formatNumericSummary(col.Numeric))
		}
	}

	return b.String()
}

// RenderMarkdown renders the report as a markdown document with one table
// per column. The document is what SaveMarkdown persists and what the HTML
// renderer converts.
func RenderMarkdown(report domain.StatsReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Survey Statistics: %s\n\n", report.Table)
	fmt.Fprintf(&b, "- Generated: %s\n", report.GeneratedAt.Format(generatedAtLayout))
	fmt.Fprintf(&b, "- Rows: %d\n", report.RowCount)
	fmt.Fprintf(&b, "- Columns: %d\n", report.ColumnCount)
	fmt.Fprintf(&b, "- Top N: %d\n", report.TopN)

	for _, col := range report.Columns {
		b.WriteString("\n")
		if col.Multiselect {
			fmt.Fprintf(&b, "## %s (multiselect)\n\n", markdownCell(col.Header))
			fmt.Fprintf(&b, "%d answered. Percentages are per respondent and may sum past 100.\n", col.NonEmpty)
		} else {
			fmt.Fprintf(&b, "## %s\n\n", markdownCell(col.Header))
			fmt.Fprintf(&b, "%d answered.\n", col.NonEmpty)
		}

		if len(col.Distribution) == 0 {
			b.WriteString("\nNo answers.\n")
			continue
		}

		b.WriteString("\n| Value | Count | Share |\n")
		b.WriteString("| --- | ---: | ---: |\n")
		for _, e := range col.Distribution {
			fmt.Fprintf(&b, "| %s | %d | %s |\n", markdownCell(e.Value), e.Count, formatPercentage(e.Percentage))
		}

		if col.Numeric != nil {
			fmt.Fprintf(&b, "\nNumeric summary: %s\n", formatNumericSummary(col.Numeric))
		}
	}

	return b.String()
}

// RenderHTML converts the markdown rendering into a standalone HTML page.
func RenderHTML(report domain.StatsReport) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(RenderMarkdown(report)))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	body := markdown.Render(doc, renderer)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString("Survey Statistics: "+report.Table))
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 48rem; padding: 0 1rem; }\n")
	b.WriteString("table { border-collapse: collapse; margin: 1rem 0; }\n")
	b.WriteString("th, td { border: 1px solid #ccc; padding: 0.25rem 0.75rem; }\n")
	b.WriteString("th { background: #f5f5f5; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")
	b.Write(body)
	b.WriteString("</body>\n</html>\n")

	return []byte(b.String())
}

func columnQualifier(col domain.ColumnStats) string {
	switch {
	case col.Multiselect:
		return fmt.Sprintf("%d answered, multiselect", col.NonEmpty)
	case col.Numeric != nil:
		return fmt.Sprintf("%d answered, numeric", col.NonEmpty)
	default:
		return fmt.Sprintf("%d answered", col.NonEmpty)
	}
}

// formatPercentage renders a one-decimal percentage, e.g. "33.3%".
func formatPercentage(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

func formatNumericSummary(s *domain.NumericSummary) string {
	return fmt.Sprintf("n=%d mean=%.2f stddev=%.2f min=%.2f q1=%.2f median=%.2f q3=%.2f max=%.2f",
		s.Count, s.Mean, s.StdDev, s.Min, s.Q1, s.Median, s.Q3, s.Max)
}

// markdownCell keeps free-text survey values from breaking table syntax.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
