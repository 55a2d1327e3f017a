// Package sqltmpl renders SQL and function-body templates.
// Templates use [% %] delimiters so they do not clash with JavaScript or SQL braces.
package sqltmpl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

const (
	leftDelim  = "[%"
	rightDelim = "%]"
)

var identUnsafe = regexp.MustCompile(`[^a-z0-9_]+`)

// Funcs are available to every template.
var Funcs = template.FuncMap{
	// json encodes a value as a JSON (and JavaScript) literal.
	"json": func(v any) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	},
	// literal quotes a string as a SQL literal.
	"literal": Literal,
	// ident turns a string into a lowercase SQL identifier.
	"ident": Ident,
}

// Literal quotes s as a SQL string literal.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Ident lowercases s and replaces everything outside [a-z0-9_] with underscores.
func Ident(s string) string {
	return strings.Trim(identUnsafe.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// Render executes text as a template named name against data.
// Missing keys are errors.
func Render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).
		Delims(leftDelim, rightDelim).
		Option("missingkey=error").
		Funcs(Funcs).
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
