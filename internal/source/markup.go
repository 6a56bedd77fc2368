package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markup is an HTML or XHTML document. Extraction drops tags, scripts and
// styles and keeps block structure as blank lines.
type Markup struct {
	Label string
	Body  []byte
}

// Name implements Source.
func (m Markup) Name() string { return m.Label }

// Kind implements Source.
func (m Markup) Kind() Kind { return KindMarkup }

// Raw implements Source.
func (m Markup) Raw() []byte { return m.Body }

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
	atom.Svg:      true,
}

// blocks end a paragraph.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Table: true, atom.Pre: true, atom.Blockquote: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Nav: true, atom.Br: true,
	atom.Title: true, atom.Dd: true, atom.Dt: true, atom.Td: true, atom.Th: true,
}

// Extract implements Source. The document is parsed into a tree first so
// that end tags the markup leaves implied, such as a missing </head>, still
// close their elements.
func (m Markup) Extract(context.Context) (string, error) {
	doc, err := html.Parse(bytes.NewReader(m.Body))
	if err != nil {
		return "", fmt.Errorf("source: parse markup %s: %w", m.Label, err)
	}

	var (
		paras []string
		cur   strings.Builder
	)
	flush := func() {
		if t := strings.Join(strings.Fields(cur.String()), " "); t != "" {
			paras = append(paras, t)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
		}
		block := n.Type == html.ElementNode && blocks[n.DataAtom]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(doc)
	flush()

	return strings.Join(paras, "\n\n"), nil
}
