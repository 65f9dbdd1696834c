// Package prompttpl stores and renders the prompt templates the
// investigator, planner, and proposer stages send to the language
// model. Templates are embedded at build time, generalizing the
// teacher's `internal/prompts` embed.FS idiom from markdown playbooks
// to Go text/template rendering (the direct idiomatic analogue of
// original_source/investigator.py's naive `str.format(**payload)`
// substitution).
package prompttpl

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templates embed.FS

var parsed = template.Must(template.ParseFS(templates, "templates/*.tmpl"))

// Names of the templates the glue packages render.
const (
	AstRecall   = "ast_recall.tmpl"
	Probe       = "probe.tmpl"
	Synthesize  = "synthesize.tmpl"
	ProposeDiff = "propose_diff.tmpl"
	Landmarks   = "landmarks.tmpl"
)

// Render executes the named template against data and returns the
// resulting prompt text.
func Render(name string, data interface{}) (string, error) {
	var sb strings.Builder
	if err := parsed.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("prompttpl: render %s: %w", name, err)
	}
	return sb.String(), nil
}
