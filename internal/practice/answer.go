package practice

import (
	"slices"
	"strings"
)

// NormalizeAnswer turns the selected options into the stored answer string.
// Multi-select answers are sorted and concatenated; a single selection is
// kept as given.
func NormalizeAnswer(selected []string) string {
	var opts []string
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s != "" {
			opts = append(opts, s)
		}
	}
	switch len(opts) {
	case 0:
		return ""
	case 1:
		return opts[0]
	}
	for i := range opts {
		opts[i] = strings.ToUpper(opts[i])
	}
	slices.Sort(opts)
	return strings.Join(slices.Compact(opts), "")
}

// SortAnswer returns the letters of answer in sorted order, upper-cased.
func SortAnswer(answer string) string {
	letters := strings.Split(strings.ToUpper(strings.TrimSpace(answer)), "")
	slices.Sort(letters)
	return strings.Join(letters, "")
}

// AnswersMatch compares a submitted answer against the correct one. When the
// correct answer has more than one letter the comparison ignores order.
func AnswersMatch(submitted, correct string) bool {
	s := strings.ToUpper(strings.TrimSpace(submitted))
	c := strings.ToUpper(strings.TrimSpace(correct))
	if len(c) > 1 {
		return SortAnswer(s) == SortAnswer(c)
	}
	return s == c
}
