// Package speech renders model output into plain speakable text.
// Models drift into markdown despite prompting; TTS engines read the
// syntax aloud, so formatting is stripped before speech.
package speech

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// Render converts markdown to plain text: headings, emphasis, lists,
// and code fences are dropped, link text is kept and destinations
// discarded, and whitespace is collapsed.
func Render(source string) string {
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.CodeBlock:
			writeLines(&b, src, v)
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			writeLines(&b, src, v)
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			// Children are Text nodes; fall through to them.
		case *ast.Image:
			// Speaking alt text for an image is more confusing than
			// skipping it.
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			b.Write(v.URL(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}

func writeLines(b *strings.Builder, src []byte, n ast.Node) {
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		b.Write(seg.Value(src))
		b.WriteByte(' ')
	}
}
