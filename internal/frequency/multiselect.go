package frequency

import "strings"

// answerDelimiters are the separators survey platforms join multiselect
// answers with: the ideographic comma, plain and full-width commas, plain
// and full-width semicolons.
const answerDelimiters = "、,，;；"

// IsAnswerDelimiter reports whether r separates answers inside a multiselect
// cell.
func IsAnswerDelimiter(r rune) bool {
	return strings.ContainsRune(answerDelimiters, r)
}

// SplitAnswers splits a multiselect cell into its individual answers. Parts
// are whitespace-trimmed; parts left empty by trimming are dropped.
func SplitAnswers(cell string) []string {
	parts := strings.FieldsFunc(cell, IsAnswerDelimiter)
	answers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			answers = append(answers, trimmed)
		}
	}
	return answers
}
