// Package source turns raw documents into plain text for chunking. Each
// supported input format is an explicit [Source] variant: [PlainText],
// [Markup] (HTML/XHTML) and [PDF]. [FetchURL] and [FromFile] pick the variant
// from the content type or file extension.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Kind names a document format.
type Kind string

const (
	// KindText is plain UTF-8 text.
	KindText Kind = "text"
	// KindMarkup is HTML or XHTML.
	KindMarkup Kind = "markup"
	// KindPDF is a PDF document.
	KindPDF Kind = "pdf"
)

// ParseKind converts a user-supplied format name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "plain", "md", "markdown":
		return KindText, nil
	case "markup", "html", "htm", "xhtml":
		return KindMarkup, nil
	case "pdf":
		return KindPDF, nil
	default:
		return "", fmt.Errorf("source: unknown document kind %q (want text, markup or pdf)", s)
	}
}

// Source is a document that can produce its plain text.
type Source interface {
	// Name is the label stored with every chunk (URL, path or caller-supplied).
	Name() string
	// Kind reports the document format.
	Kind() Kind
	// Raw returns the original bytes so the document can be re-extracted on
	// reindex.
	Raw() []byte
	// Extract returns the document's text content.
	Extract(ctx context.Context) (string, error)
}

// New builds the Source variant for kind.
func New(kind Kind, name string, raw []byte) (Source, error) {
	switch kind {
	case KindText, "":
		return PlainText{Label: name, Body: string(raw)}, nil
	case KindMarkup:
		return Markup{Label: name, Body: raw}, nil
	case KindPDF:
		return PDF{Label: name, Data: raw}, nil
	default:
		return nil, fmt.Errorf("source: unknown document kind %q", kind)
	}
}

// PlainText is a document that is already text.
type PlainText struct {
	Label string
	Body  string
}

// Name implements Source.
func (p PlainText) Name() string { return p.Label }

// Kind implements Source.
func (p PlainText) Kind() Kind { return KindText }

// Raw implements Source.
func (p PlainText) Raw() []byte { return []byte(p.Body) }

// Extract implements Source.
func (p PlainText) Extract(context.Context) (string, error) {
	return normalizeNewlines(p.Body), nil
}

// PDF is a PDF document held in memory.
type PDF struct {
	Label string
	Data  []byte
}

// Name implements Source.
func (p PDF) Name() string { return p.Label }

// Kind implements Source.
func (p PDF) Kind() Kind { return KindPDF }

// Raw implements Source.
func (p PDF) Raw() []byte { return p.Data }

// Extract implements Source. Pages are separated by a blank line so the
// chunker can split on page boundaries.
func (p PDF) Extract(ctx context.Context) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(p.Data), int64(len(p.Data)))
	if err != nil {
		return "", fmt.Errorf("source: open pdf %s: %w", p.Label, err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("source: pdf %s page %d: %w", p.Label, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// readLimited reads at most limit bytes from r and errors if more remain.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("document exceeds %d bytes", limit)
	}
	return data, nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
