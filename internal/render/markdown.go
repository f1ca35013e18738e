// ABOUTME: Markdown to terminal text for assistant replies
// ABOUTME: Walks the goldmark AST and emits indented plain lines with color accents

package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	boldStyle   = color.New(color.Bold)
	italicStyle = color.New(color.Italic)
	codeStyle   = color.New(color.FgYellow)
	linkStyle   = color.New(color.FgBlue, color.Underline)
	quoteStyle  = color.New(color.FgHiBlack)
)

var mdParser = goldmark.New().Parser()

// Markdown renders src for a terminal.
func Markdown(src string) string {
	source := []byte(src)
	doc := mdParser.Parse(text.NewReader(source))
	w := &termWriter{src: source}
	return strings.TrimRight(w.blocks(doc, "\n\n"), "\n")
}

type termWriter struct {
	src []byte
}

func (w *termWriter) blocks(parent ast.Node, sep string) string {
	var parts []string
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if s := w.block(n); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func (w *termWriter) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return w.inlines(n)
	case *ast.Heading:
		return boldStyle.Sprint(w.inlines(n))
	case *ast.ThematicBreak:
		return strings.Repeat("─", 40)
	case *ast.Blockquote:
		return prefixLines(w.blocks(n, "\n\n"), quoteStyle.Sprint("│ "))
	case *ast.FencedCodeBlock:
		return prefixLines(w.lines(n), "    ")
	case *ast.CodeBlock:
		return prefixLines(w.lines(n), "    ")
	case *ast.HTMLBlock:
		return w.lines(n)
	case *ast.List:
		return w.list(n)
	default:
		return w.blocks(n, "\n\n")
	}
}

func (w *termWriter) list(l *ast.List) string {
	itemSep := "\n"
	if !l.IsTight {
		itemSep = "\n\n"
	}
	var items []string
	i := 0
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", l.Start+i)
		}
		body := w.blocks(item, itemSep)
		items = append(items, hang(body, marker))
		i++
	}
	return strings.Join(items, itemSep)
}

func (w *termWriter) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(w.src))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (w *termWriter) inlines(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(&b, c)
	}
	return b.String()
}

func (w *termWriter) inline(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(w.src))
		if n.HardLineBreak() || n.SoftLineBreak() {
			b.WriteByte('\n')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.CodeSpan:
		b.WriteString(codeStyle.Sprint(w.inlines(n)))
	case *ast.Emphasis:
		if n.Level >= 2 {
			b.WriteString(boldStyle.Sprint(w.inlines(n)))
		} else {
			b.WriteString(italicStyle.Sprint(w.inlines(n)))
		}
	case *ast.Link:
		label := w.inlines(n)
		dest := string(n.Destination)
		if label == "" || label == dest {
			b.WriteString(linkStyle.Sprint(dest))
		} else {
			b.WriteString(label + " (" + linkStyle.Sprint(dest) + ")")
		}
	case *ast.AutoLink:
		b.WriteString(linkStyle.Sprint(string(n.URL(w.src))))
	case *ast.Image:
		b.WriteString("[image: " + w.inlines(n) + "] " + string(n.Destination))
	case *ast.RawHTML:
	default:
		b.WriteString(w.inlines(n))
	}
}

// hang prefixes the first line with marker and indents the rest to match.
func hang(body, marker string) string {
	pad := strings.Repeat(" ", utf8.RuneCountInString(marker))
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if i == 0 {
			lines[i] = marker + line
		} else if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

func prefixLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
