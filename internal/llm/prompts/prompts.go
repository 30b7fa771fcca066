package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

var submittedAnswerRegex = regexp.MustCompile(`(?i)</?\s*submitted-answer\b[^>]*>`)

// Variant selects an explanation prompt.
type Variant string

const (
	// VariantBrief asks for a short explanation.
	VariantBrief Variant = "brief"
	// VariantDetailed asks for an option-by-option explanation.
	VariantDetailed Variant = "detailed"
)

var validVariants = map[Variant]bool{
	VariantBrief:    true,
	VariantDetailed: true,
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// ExplainData holds template data for explanation prompts.
type ExplainData struct {
	Content       string
	Options       []string
	CorrectAnswer string
	Submitted     string
	Language      string
}

// Load parses the prompt templates from fsys. It runs once; later calls
// return the first result.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template)
		for v := range validVariants {
			file := "templates/explain_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildExplain renders the explanation prompt for variant, loading the
// embedded templates on first use.
func BuildExplain(variant Variant, data ExplainData) (string, error) {
	if err := Load(templateFS); err != nil {
		return "", err
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	if data.Language == "" {
		data.Language = "English"
	}
	data.Submitted = sanitizeAnswer(data.Submitted)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = submittedAnswerRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)
	if utf8.RuneCountInString(answer) > 200 {
		answer = string([]rune(answer)[:200])
	}
	return answer
}
