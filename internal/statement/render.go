package statement

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
)

//go:embed template.html
var templateHTML string

// Output formats.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
	FormatJSON = "json"
)

// ContentTypes maps an output format to its MIME type.
var ContentTypes = map[string]string{
	FormatHTML: "text/html; charset=utf-8",
	FormatPDF:  "application/pdf",
	FormatJSON: "application/json",
}

// NewRenderers returns the byte renderers keyed by format. pdfFont is passed
// to NewPDFRenderer.
func NewRenderers(pdfFont string) (map[string]Renderer, error) {
	html, err := NewHTMLRenderer()
	if err != nil {
		return nil, err
	}
	return map[string]Renderer{
		FormatHTML: html,
		FormatPDF:  NewPDFRenderer(pdfFont),
	}, nil
}

// Renderer produces the final byte form of a statement.
type Renderer interface {
	Render(ctx context.Context, doc *Document) ([]byte, error)
}

// RenderError wraps a failure inside a Renderer.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("rendering statement: %v", e.Err) }

func (e *RenderError) Unwrap() error { return e.Err }

// HTMLRenderer renders statements as a standalone A4-styled HTML page.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the built-in template.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("statement").Parse(templateHTML)
	if err != nil {
		return nil, fmt.Errorf("parsing statement template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// Render executes the template.
func (r *HTMLRenderer) Render(ctx context.Context, doc *Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RenderError{Err: err}
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, doc); err != nil {
		return nil, &RenderError{Err: err}
	}
	return buf.Bytes(), nil
}

