// Package tmpl renders the Go templates used for hook commands.
package tmpl

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"
)

// shellQuote wraps s in single quotes, closing and reopening the quote
// around any embedded single quote.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// truncate shortens s to at most n runes, appending "..." when cut.
func truncate(n int, s string) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// oneline collapses line breaks so a message body fits in one argument.
func oneline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var funcs = template.FuncMap{
	"shq":     shellQuote,
	"trunc":   truncate,
	"oneline": oneline,
}

// Render executes a Go template string with the given data. Undefined keys
// are errors.
//
// Available template functions:
//   - shq: shell-quote a string
//   - trunc N: cut a string to N runes
//   - oneline: collapse whitespace and newlines to single spaces
func Render(tmpl string, data any) (string, error) {
	t, err := parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

// Check parses tmpl and executes it against the zero value in data, which
// catches syntax errors and references to fields data does not have.
func Check(tmpl string, data any) error {
	t, err := parse(tmpl)
	if err != nil {
		return err
	}

	if err := t.Execute(io.Discard, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	return nil
}

func parse(tmpl string) (*template.Template, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return t, nil
}
