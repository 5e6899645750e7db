package render

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind is the type of a top-level document block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockTable     BlockKind = "table"
	BlockQuote     BlockKind = "quote"
	BlockCode      BlockKind = "code"
	BlockWidget    BlockKind = "widget"
	BlockHTML      BlockKind = "html"
	BlockRule      BlockKind = "rule"
	BlockOther     BlockKind = "other"
)

// Block is one rendered top-level element of a message.
type Block struct {
	Kind BlockKind
	// Source is the exact markdown span of the block.
	Source string
	// HTML is the block rendered as HTML. Empty for widgets and raw HTML.
	HTML string

	Level   int  // headings
	Ordered bool // lists

	// Lang and Code hold the fence tag and body of code and widget blocks.
	Lang string
	Code string

	// Text is the visible text of a raw HTML block.
	Text string

	Widget Widget
}

// Document is a parsed message in source order.
type Document struct {
	Blocks []Block
}

// Widgets returns the decoded widgets in document order.
func (d Document) Widgets() []Widget {
	var out []Widget
	for _, b := range d.Blocks {
		if b.Kind == BlockWidget {
			out = append(out, b.Widget)
		}
	}
	return out
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type blockBuilder func(n ast.Node, src []byte) Block

// builders dispatches top-level nodes to block constructors. Read-only.
var builders = map[ast.NodeKind]blockBuilder{
	ast.KindHeading: func(n ast.Node, _ []byte) Block {
		return Block{Kind: BlockHeading, Level: n.(*ast.Heading).Level}
	},
	ast.KindParagraph: kindOnly(BlockParagraph),
	ast.KindTextBlock: kindOnly(BlockParagraph),
	ast.KindList: func(n ast.Node, _ []byte) Block {
		return Block{Kind: BlockList, Ordered: n.(*ast.List).IsOrdered()}
	},
	extast.KindTable:        kindOnly(BlockTable),
	ast.KindBlockquote:      kindOnly(BlockQuote),
	ast.KindFencedCodeBlock: buildFencedCode,
	ast.KindCodeBlock: func(n ast.Node, src []byte) Block {
		return Block{Kind: BlockCode, Code: linesText(n, src)}
	},
	ast.KindHTMLBlock:     buildHTML,
	ast.KindThematicBreak: kindOnly(BlockRule),
}

func kindOnly(kind BlockKind) blockBuilder {
	return func(ast.Node, []byte) Block {
		return Block{Kind: kind}
	}
}

// span is a block and the byte range of its source.
type span struct {
	block      Block
	start, end int
}

// Parse splits markdown content into blocks, resolving structured payloads.
// A list or quote holding a payload at any depth is split around it, so the
// widget appears in place between the pieces of its container.
func Parse(content string) Document {
	src := []byte(content)
	root := markdown.Parser().Parse(text.NewReader(src))

	var nodes []ast.Node
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		nodes = append(nodes, n)
	}
	starts := blockStarts(nodes, src)
	if len(starts) > 0 {
		// reference definitions before the first block leave no node
		starts[0] = skipBlankLines(src, 0)
	}

	spans := make([]span, 0, len(nodes))
	for i, n := range nodes {
		end := len(src)
		if i+1 < len(nodes) {
			end = starts[i+1]
		}
		if end < starts[i] {
			end = starts[i]
		}

		if nested := nestedWidgets(n, src, starts[i], end); len(nested) > 0 {
			spans = append(spans, splitAround(n, src, starts[i], end, nested)...)
			continue
		}

		build, ok := builders[n.Kind()]
		if !ok {
			build = kindOnly(BlockOther)
		}
		b := build(n, src)
		if b.Kind != BlockWidget && b.Kind != BlockHTML {
			b.HTML = renderHTML(n, src)
		}
		spans = append(spans, span{block: b, start: starts[i], end: end})
	}

	spans = mergeEmpty(spans)
	blocks := make([]Block, 0, len(spans))
	for _, sp := range spans {
		b := sp.block
		b.Source = strings.TrimRight(string(src[sp.start:sp.end]), " \t\r\n")
		blocks = append(blocks, b)
	}
	return Document{Blocks: blocks}
}

// nestedWidgets finds decodable payload fences below the top level of n,
// in source order, with the lines they occupy.
func nestedWidgets(n ast.Node, src []byte, start, end int) []span {
	var found []span
	floor := start
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c == n {
			return ast.WalkContinue, nil
		}
		fc, ok := c.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		b := buildFencedCode(fc, src)
		if b.Kind != BlockWidget {
			return ast.WalkSkipChildren, nil
		}
		off, ok := firstOffset(fc, src)
		if !ok {
			return ast.WalkSkipChildren, nil
		}
		from := lineStart(src, off)
		to := blockEnd(fc, src, from)
		if from < floor || to > end {
			return ast.WalkSkipChildren, nil
		}
		found = append(found, span{block: b, start: from, end: to})
		floor = to
		return ast.WalkSkipChildren, nil
	})
	return found
}

// splitAround cuts the container n into pieces of its own kind around the
// widget spans. Pieces holding nothing but quote markers are dropped.
func splitAround(n ast.Node, src []byte, start, end int, widgets []span) []span {
	build, ok := builders[n.Kind()]
	if !ok {
		build = kindOnly(BlockOther)
	}
	shape := build(n, src)

	var out []span
	piece := func(from, to int) {
		from, to = trimMarkerLines(src, from, to)
		if from >= to {
			return
		}
		b := shape
		b.HTML = convertHTML(string(src[from:to]))
		out = append(out, span{block: b, start: from, end: to})
	}

	cur := start
	for _, w := range widgets {
		piece(cur, w.start)
		out = append(out, w)
		cur = w.end
	}
	piece(cur, end)
	return out
}

// trimMarkerLines narrows [from, to) to exclude leading and trailing lines
// that hold only whitespace and quote markers.
func trimMarkerLines(src []byte, from, to int) (int, int) {
	for from < to {
		end := min(lineEnd(src, from), to)
		if len(bytes.Trim(src[from:end], "> \t\r\n")) > 0 {
			break
		}
		from = end
	}
	for to > from {
		start := max(lineStart(src, to-1), from)
		if len(bytes.Trim(src[start:to], "> \t\r\n")) > 0 {
			break
		}
		to = start
	}
	return from, to
}

// mergeEmpty folds blocks that render to nothing, such as a paragraph of
// link reference definitions, into the following block, or the preceding
// one at the end of the document.
func mergeEmpty(spans []span) []span {
	out := make([]span, 0, len(spans))
	for i := 0; i < len(spans); i++ {
		sp := spans[i]
		if !emptyBlock(sp.block) {
			out = append(out, sp)
			continue
		}
		if i+1 < len(spans) && mergeable(spans[i+1].block) {
			spans[i+1].start = sp.start
			spans[i+1].block.HTML = sp.block.HTML + spans[i+1].block.HTML
			continue
		}
		if last := len(out) - 1; last >= 0 && mergeable(out[last].block) {
			out[last].end = sp.end
			out[last].block.HTML += sp.block.HTML
			continue
		}
		out = append(out, sp)
	}
	return out
}

func emptyBlock(b Block) bool {
	if b.Kind != BlockParagraph && b.Kind != BlockOther {
		return false
	}
	return visibleText(b.HTML) == "" && !strings.Contains(b.HTML, "<img")
}

func mergeable(b Block) bool {
	return b.Kind != BlockWidget && b.Kind != BlockHTML
}

func buildFencedCode(n ast.Node, src []byte) Block {
	fc := n.(*ast.FencedCodeBlock)
	var lang string
	if fc.Info != nil {
		lang = string(fc.Language(src))
	}
	code := linesText(fc, src)

	if kind := Classify(lang); kind.IsPayload() {
		if res := Resolve(kind, code); res.Decoded() {
			return Block{Kind: BlockWidget, Lang: lang, Code: code, Widget: res.Widget}
		}
	}
	return Block{Kind: BlockCode, Lang: lang, Code: code}
}

func buildHTML(n ast.Node, src []byte) Block {
	hb := n.(*ast.HTMLBlock)
	raw := linesText(hb, src)
	if hb.HasClosure() {
		raw += string(hb.ClosureLine.Value(src))
	}
	return Block{Kind: BlockHTML, Text: visibleText(raw)}
}

func linesText(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return sb.String()
}

func convertHTML(markdownText string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(markdownText), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func renderHTML(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if err := markdown.Renderer().Render(&buf, src, n); err != nil {
		return ""
	}
	return buf.String()
}

// blockStarts finds the byte offset of the first line of each top-level node.
// goldmark records segments for leaf content only, so container blocks are
// located through their first descendant, and nodes without any segment are
// placed at the next non-blank line after the previous block.
func blockStarts(nodes []ast.Node, src []byte) []int {
	starts := make([]int, len(nodes))
	floor := 0
	for i, n := range nodes {
		if off, ok := firstOffset(n, src); ok && off >= floor {
			starts[i] = lineStart(src, off)
		} else {
			starts[i] = skipBlankLines(src, floor)
		}
		if starts[i] < floor {
			starts[i] = floor
		}
		floor = blockEnd(n, src, starts[i])
	}
	return starts
}

func firstOffset(n ast.Node, src []byte) (int, bool) {
	if fc, ok := n.(*ast.FencedCodeBlock); ok {
		if fc.Info != nil {
			return fc.Info.Segment.Start, true
		}
		if fc.Lines().Len() > 0 {
			return previousLineStart(src, fc.Lines().At(0).Start), true
		}
		return 0, false
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0).Start, true
	}
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start, true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off, ok := firstOffset(c, src); ok {
			return off, true
		}
	}
	return 0, false
}

func lastOffset(n ast.Node) (int, bool) {
	last, found := 0, false
	keep := func(stop int) {
		if !found || stop > last {
			last, found = stop, true
		}
	}

	switch v := n.(type) {
	case *ast.FencedCodeBlock:
		if v.Info != nil {
			keep(v.Info.Segment.Stop)
		}
	case *ast.HTMLBlock:
		if v.HasClosure() {
			keep(v.ClosureLine.Stop)
		}
	case *ast.Text:
		keep(v.Segment.Stop)
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		keep(n.Lines().At(n.Lines().Len() - 1).Stop)
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if stop, ok := lastOffset(c); ok {
			keep(stop)
		}
	}
	return last, found
}

// blockEnd returns the offset just past the last line owned by n.
func blockEnd(n ast.Node, src []byte, start int) int {
	pos := lineEnd(src, start)
	if stop, ok := lastOffset(n); ok && stop > start {
		pos = lineEnd(src, stop-1)
	}

	switch n.(type) {
	case *ast.FencedCodeBlock:
		// closing fence
		pos = lineEnd(src, pos)
	case *ast.Heading:
		// setext underline
		atx := strings.HasPrefix(strings.TrimSpace(string(src[start:lineEnd(src, start)])), "#")
		if !atx && pos < len(src) {
			next := strings.TrimSpace(string(src[pos:lineEnd(src, pos)]))
			if next != "" && strings.Trim(next, "=-") == "" {
				pos = lineEnd(src, pos)
			}
		}
	}
	return pos
}

func lineStart(src []byte, off int) int {
	if off > len(src) {
		off = len(src)
	}
	for off > 0 && src[off-1] != '\n' {
		off--
	}
	return off
}

func previousLineStart(src []byte, off int) int {
	start := lineStart(src, off)
	if start == 0 {
		return 0
	}
	return lineStart(src, start-1)
}

func lineEnd(src []byte, off int) int {
	if off >= len(src) {
		return len(src)
	}
	if i := bytes.IndexByte(src[off:], '\n'); i >= 0 {
		return off + i + 1
	}
	return len(src)
}

func skipBlankLines(src []byte, pos int) int {
	for pos < len(src) {
		end := lineEnd(src, pos)
		if len(bytes.TrimSpace(src[pos:end])) > 0 {
			return pos
		}
		pos = end
	}
	return pos
}
