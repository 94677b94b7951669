// Package template renders managed files with Go's text/template,
// exposing merged variables and resolved secrets as the template data.
package template

import (
	"strings"
	texttemplate "text/template"

	"github.com/logannc/janus/pkg/errors"
)

// GoRenderer renders with text/template. Missing variables are render
// errors rather than "<no value>" so a typo never ships a broken config.
type GoRenderer struct{}

// NewRenderer creates the default renderer.
func NewRenderer() *GoRenderer {
	return &GoRenderer{}
}

// Render executes body as a template named name with the given data.
func (r *GoRenderer) Render(name, body string, vars map[string]interface{}) (string, error) {
	tmpl, err := texttemplate.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrRender, "template %s failed to parse", name)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", errors.Wrapf(err, errors.ErrRender, "template %s failed to render", name)
	}
	return buf.String(), nil
}

// HasSyntax reports whether text contains template markup. Covers Go
// template actions and the statement/comment delimiters of other common
// template languages a dotfiles repo may carry. The sync conflict checks
// use it to refuse automated edits inside template expressions.
func HasSyntax(text string) bool {
	return strings.Contains(text, "{{") ||
		strings.Contains(text, "{%") ||
		strings.Contains(text, "{#")
}
