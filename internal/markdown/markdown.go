// Package markdown converts markdown documents into plain prose for
// narration. Block elements become paragraphs separated by blank lines;
// code and raw HTML are dropped.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	emojiast "github.com/yuin/goldmark-emoji/ast"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM, emoji.Emoji))

// ToPlainText returns the prose of a markdown document. Headings and list
// items become paragraphs of their own.
func ToPlainText(src []byte) string {
	doc := md.Parser().Parse(text.NewReader(src))

	w := &writer{source: src}
	_ = ast.Walk(doc, w.visit)
	return w.String()
}

// writer accumulates paragraphs.
type writer struct {
	source []byte
	out    strings.Builder
	para   bytes.Buffer
}

func (w *writer) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := n.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML, *east.TaskCheckBox:
		return ast.WalkSkipChildren, nil

	case *ast.Heading, *ast.Paragraph, *ast.TextBlock, *east.TableRow, *east.TableHeader:
		if !entering {
			w.flush()
		}

	case *east.TableCell:
		if !entering && n.NextSibling() != nil {
			w.para.WriteString(", ")
		}

	case *ast.ThematicBreak:
		w.flush()

	case *ast.Text:
		if entering {
			w.para.Write(n.Segment.Value(w.source))
			switch {
			case n.HardLineBreak():
				w.para.WriteByte('\n')
			case n.SoftLineBreak():
				w.para.WriteByte(' ')
			}
		}

	case *ast.String:
		if entering {
			w.para.Write(n.Value)
		}

	case *ast.CodeSpan:
		if entering {
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					w.para.Write(t.Segment.Value(w.source))
				}
			}
		}
		return ast.WalkSkipChildren, nil

	case *ast.AutoLink:
		if entering {
			w.para.Write(n.Label(w.source))
		}

	case *emojiast.Emoji:
		if entering && n.Value != nil {
			w.para.WriteString(n.Value.Name)
		}
	}
	return ast.WalkContinue, nil
}

// flush ends the current paragraph.
func (w *writer) flush() {
	p := strings.TrimSpace(w.para.String())
	w.para.Reset()
	if p == "" {
		return
	}
	if w.out.Len() > 0 {
		w.out.WriteString("\n\n")
	}
	w.out.WriteString(p)
}

func (w *writer) String() string {
	w.flush()
	return w.out.String()
}
