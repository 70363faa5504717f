// Package render produces ticket titles and descriptions from webhook
// template data using text/template.
package render

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultTitle renders the group's alertname.
const DefaultTitle = `{{ .groupLabels.alertname }}`

// DefaultDescription lists the common annotations and labels, then one
// section per firing alert. Output is Phabricator Remarkup.
const DefaultDescription = `
== Common information

{{ range $k, $v := .commonAnnotations }}* **{{ $k }}**: {{ $v }}
{{ end }}
{{ range $k, $v := .commonLabels }}* **{{ $k }}**: {{ $v }}
{{ end }}
== Firing alerts
{{ range .alerts }}{{ if eq .status "firing" }}
---

{{ range $k, $v := .annotations }}* **{{ $k }}**: {{ $v }}
{{ end }}{{ range $k, $v := .labels }}* **{{ $k }}**: {{ $v }}
{{ end }}* [Source]({{ .generatorURL }})
{{ end }}{{ end }}`

// TemplateError reports a template that failed to parse or execute, or
// that rendered an unusable result.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%s template: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Renderer holds the parsed default title and description templates.
// It is safe for concurrent use.
type Renderer struct {
	title       *template.Template
	description *template.Template
}

// New parses the default title template and the description template. An
// empty descriptionTpl selects DefaultDescription.
func New(titleTpl, descriptionTpl string) (*Renderer, error) {
	title, err := parse("title", titleTpl)
	if err != nil {
		return nil, err
	}
	if descriptionTpl == "" {
		descriptionTpl = DefaultDescription
	}
	description, err := parse("description", descriptionTpl)
	if err != nil {
		return nil, err
	}
	return &Renderer{title: title, description: description}, nil
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, &TemplateError{Name: name, Err: err}
	}
	return t, nil
}

// Title renders the default title template.
func (r *Renderer) Title(data any) (string, error) {
	return renderTitle(r.title, data)
}

// TitleFrom parses and renders a per-request title template.
func (r *Renderer) TitleFrom(text string, data any) (string, error) {
	t, err := parse("title", text)
	if err != nil {
		return "", err
	}
	return renderTitle(t, data)
}

func renderTitle(t *template.Template, data any) (string, error) {
	title, err := execute(t, data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(title) == "" {
		return "", &TemplateError{Name: "title", Err: fmt.Errorf("rendered title is empty")}
	}
	return title, nil
}

// Description renders the description template. Trailing whitespace is
// dropped so the stored text compares equal on the next delivery.
func (r *Renderer) Description(data any) (string, error) {
	out, err := execute(r.description, data)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, " \t\r\n"), nil
}

// noValue is what text/template prints for a key missing from a map[string]any.
const noValue = "<no value>"

func execute(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", &TemplateError{Name: t.Name(), Err: err}
	}
	// missing keys render empty, like absent labels do
	return strings.ReplaceAll(b.String(), noValue, ""), nil
}
