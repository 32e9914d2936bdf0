package content

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/quilldocs/internal/logfields"
)

// RefTokenPattern matches bracketed symbol tokens, e.g. [math.sin]. The first
// submatch is the token itself. Deliberately permissive about single-segment
// names ([pi]); anything that fails to resolve later is reported and demoted
// back to plain text. Shared with the resolver, which runs the same scan over
// registry description prose.
var RefTokenPattern = regexp.MustCompile(`\[([a-z][a-z0-9-]*(?:\.[a-z][a-z0-9-]*)*)\]`)

// Parse splits a guide source file into front matter and structural blocks.
//
// Returns ErrMalformedFrontMatter (wrapped) when the metadata header is
// unusable; the caller records the diagnostic and skips the page. Body
// parsing itself never fails: unrecognized constructs become passthrough
// blocks.
func Parse(file string, src []byte) (*Document, error) {
	header, body, headerLines, err := splitFrontMatter(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	meta, err := parseFrontMatter(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	doc := &Document{
		File:    file,
		Meta:    meta,
		Anchors: make(map[string]struct{}),
	}

	p := &bodyParser{
		doc:     doc,
		source:  body,
		lineIdx: buildLineIndex(body),
		lineOff: headerLines,
	}
	p.run()
	return doc, nil
}

// bodyParser walks the Goldmark AST of the body and emits blocks.
type bodyParser struct {
	doc     *Document
	source  []byte
	lineIdx []int
	lineOff int
}

func (p *bodyParser) run() {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(p.source))

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if b, ok := p.block(n); ok {
			p.doc.Blocks = append(p.doc.Blocks, b)
		}
	}
}

func (p *bodyParser) block(n gmast.Node) (Block, bool) {
	switch node := n.(type) {
	case *gmast.Heading:
		inlines := p.inlines(node)
		anchor := Slugify(plainText(inlines))
		p.doc.Anchors[anchor] = struct{}{}
		return Block{
			Kind:    BlockHeading,
			Line:    p.nodeLine(node),
			Level:   node.Level,
			Anchor:  anchor,
			Inlines: inlines,
		}, true

	case *gmast.Paragraph:
		inlines := p.inlines(node)
		if raw := plainText(inlines); strings.HasPrefix(raw, ":::") {
			// Directive syntax we do not recognize passes through opaquely.
			return Block{Kind: BlockDirective, Line: p.nodeLine(node), Raw: raw}, true
		}
		return Block{Kind: BlockParagraph, Line: p.nodeLine(node), Inlines: inlines}, true

	case *gmast.List:
		b := Block{Kind: BlockList, Line: p.nodeLine(node)}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			var itemInlines []Inline
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				itemInlines = append(itemInlines, p.inlines(c)...)
			}
			b.Items = append(b.Items, itemInlines)
		}
		return b, true

	case *gmast.FencedCodeBlock:
		return p.fencedBlock(node), true

	case *gmast.CodeBlock:
		return Block{
			Kind: BlockCode,
			Line: p.nodeLine(node),
			Code: p.linesText(node),
		}, true

	case *gmast.HTMLBlock:
		raw := p.linesText(node)
		if node.HasClosure() {
			raw += string(node.ClosureLine.Value(p.source))
		}
		for _, a := range htmlAnchors(raw) {
			p.doc.Anchors[a] = struct{}{}
		}
		return Block{Kind: BlockHTML, Line: p.nodeLine(node), Raw: raw}, true

	case *gmast.Blockquote:
		var inlines []Inline
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			inlines = append(inlines, p.inlines(c)...)
		}
		return Block{Kind: BlockParagraph, Line: p.nodeLine(node), Inlines: inlines}, true

	case *gmast.ThematicBreak:
		return Block{}, false

	default:
		return Block{}, false
	}
}

func (p *bodyParser) fencedBlock(node *gmast.FencedCodeBlock) Block {
	line := p.nodeLine(node)
	var info string
	if node.Info != nil {
		info = string(node.Info.Segment.Value(p.source))
	}
	code := p.linesText(node)

	lang, opts := splitFenceInfo(info)
	if lang == "example" {
		ex := &ExampleBlock{
			Source: code,
			File:   p.doc.File,
			Line:   line,
		}
		applyExampleOptions(ex, opts)
		p.doc.Examples = append(p.doc.Examples, ex)
		return Block{Kind: BlockExample, Line: line, Example: ex}
	}
	return Block{Kind: BlockCode, Line: line, Language: lang, Code: code}
}

// inlines flattens the inline children of a block node. Styling containers
// (emphasis etc.) contribute their text; the documented data model carries
// text, code spans, references and links only.
//
// Goldmark leaves unmatched brackets as separate Text nodes, so plain text is
// merged first and bracketed reference tokens are scanned afterwards.
func (p *bodyParser) inlines(n gmast.Node) []Inline {
	var out []Inline
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, p.inline(c)...)
	}
	return p.scanMerged(mergeText(out))
}

func (p *bodyParser) inline(n gmast.Node) []Inline {
	switch node := n.(type) {
	case *gmast.Text:
		txt := string(node.Segment.Value(p.source))
		line := p.line(node.Segment.Start)
		spans := []Inline{{Kind: InlineText, Text: txt, Line: line}}
		if node.SoftLineBreak() || node.HardLineBreak() {
			spans = append(spans, Inline{Kind: InlineText, Text: "\n", Line: line})
		}
		return spans

	case *gmast.String:
		return []Inline{{Kind: InlineText, Text: string(node.Value)}}

	case *gmast.CodeSpan:
		var sb strings.Builder
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*gmast.Text); ok {
				sb.Write(t.Segment.Value(p.source))
			}
		}
		return []Inline{{Kind: InlineCode, Text: sb.String()}}

	case *gmast.Link:
		display := p.rawText(node)
		dest := string(node.Destination)
		line := p.nodeTextLine(node)
		return []Inline{p.classifyLink(display, dest, line)}

	case *gmast.AutoLink:
		url := string(node.URL(p.source))
		return []Inline{{Kind: InlineLink, Text: url, Target: url}}

	case *gmast.Image:
		return []Inline{{Kind: InlineLink, Text: p.rawText(node), Target: string(node.Destination)}}

	case *gmast.RawHTML:
		var sb strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			sb.Write(seg.Value(p.source))
		}
		return []Inline{{Kind: InlineText, Text: sb.String()}}

	default:
		var out []Inline
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, p.inline(c)...)
		}
		return out
	}
}

// classifyLink decides which resolution kind a markdown link requests.
// External destinations stay as-is; schemeless destinations are page refs;
// fragment-only destinations are in-page anchor refs.
func (p *bodyParser) classifyLink(display, dest string, line int) Inline {
	switch {
	case strings.Contains(dest, "://") || strings.HasPrefix(dest, "mailto:"):
		return Inline{Kind: InlineLink, Text: display, Target: dest}
	case strings.HasPrefix(dest, "#"):
		return Inline{
			Kind: InlineRef,
			Text: display,
			Ref:  &CrossRef{Raw: strings.TrimPrefix(dest, "#"), Kind: RefAnchor, File: p.doc.File, Line: line},
		}
	default:
		return Inline{
			Kind: InlineRef,
			Text: display,
			Ref:  &CrossRef{Raw: dest, Kind: RefPage, File: p.doc.File, Line: line},
		}
	}
}

// scanMerged runs the reference-token scan over merged plain-text spans.
func (p *bodyParser) scanMerged(in []Inline) []Inline {
	var out []Inline
	for _, span := range in {
		if span.Kind != InlineText {
			out = append(out, span)
			continue
		}
		out = append(out, p.scanRefTokens(span.Text, span.Line)...)
	}
	return out
}

// scanRefTokens splits prose around bracketed symbol tokens. Token lines are
// derived from the span's start line plus embedded newlines, so multi-line
// paragraphs still report precise locations.
func (p *bodyParser) scanRefTokens(txt string, line int) []Inline {
	matches := RefTokenPattern.FindAllStringSubmatchIndex(txt, -1)
	if len(matches) == 0 {
		if txt == "" {
			return nil
		}
		return []Inline{{Kind: InlineText, Text: txt, Line: line}}
	}

	var out []Inline
	prev := 0
	for _, m := range matches {
		if m[0] > prev {
			out = append(out, Inline{Kind: InlineText, Text: txt[prev:m[0]], Line: line})
		}
		raw := txt[m[2]:m[3]]
		tokenLine := line + strings.Count(txt[:m[0]], "\n")
		out = append(out, Inline{
			Kind: InlineRef,
			Text: raw,
			Line: tokenLine,
			Ref:  &CrossRef{Raw: raw, Kind: RefSymbol, File: p.doc.File, Line: tokenLine},
		})
		prev = m[1]
	}
	if prev < len(txt) {
		out = append(out, Inline{Kind: InlineText, Text: txt[prev:], Line: line})
	}
	return out
}

// rawText concatenates the literal text below a node, for link display text.
func (p *bodyParser) rawText(n gmast.Node) string {
	var sb strings.Builder
	var walk func(gmast.Node)
	walk = func(n gmast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *gmast.Text:
				sb.Write(t.Segment.Value(p.source))
			case *gmast.String:
				sb.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

// linesText reassembles the literal content of a block node from its segments.
func (p *bodyParser) linesText(n gmast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(p.source))
	}
	return sb.String()
}

// nodeLine returns the 1-based file line of a block node.
func (p *bodyParser) nodeLine(n gmast.Node) int {
	if lines := n.Lines(); lines.Len() > 0 {
		return p.line(lines.At(0).Start)
	}
	if fenced, ok := n.(*gmast.FencedCodeBlock); ok && fenced.Info != nil {
		return p.line(fenced.Info.Segment.Start)
	}
	// Container blocks (lists, blockquotes) carry no segments themselves.
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if l := p.nodeLine(c); l > 0 {
			return l
		}
	}
	return 0
}

// nodeTextLine returns the line of the first text segment below a node.
func (p *bodyParser) nodeTextLine(n gmast.Node) int {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*gmast.Text); ok {
			return p.line(t.Segment.Start)
		}
		if l := p.nodeTextLine(c); l > 0 {
			return l
		}
	}
	return 0
}

// line maps a body byte offset to a 1-based file line number.
func (p *bodyParser) line(offset int) int {
	i := sort.Search(len(p.lineIdx), func(i int) bool { return p.lineIdx[i] > offset })
	return p.lineOff + i
}

func buildLineIndex(src []byte) []int {
	idx := []int{0}
	for i, b := range src {
		if b == '\n' && i+1 < len(src) {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// mergeText joins adjacent plain-text inlines so soft line breaks do not
// fragment paragraphs into single-line spans.
func mergeText(in []Inline) []Inline {
	var out []Inline
	for _, span := range in {
		if span.Kind == InlineText && len(out) > 0 && out[len(out)-1].Kind == InlineText {
			out[len(out)-1].Text += span.Text
			continue
		}
		out = append(out, span)
	}
	return out
}

func plainText(inlines []Inline) string {
	var sb strings.Builder
	for _, span := range inlines {
		sb.WriteString(span.Text)
	}
	return sb.String()
}

// splitFenceInfo splits a fence info string into language and option tokens.
func splitFenceInfo(info string) (lang string, opts []string) {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// applyExampleOptions interprets the option tokens of an example fence.
// Unknown options are ignored: authors' typos surface through rendering
// behavior, not parse failures.
func applyExampleOptions(ex *ExampleBlock, opts []string) {
	for _, opt := range opts {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "expect-error":
			ex.ExpectError = true
		case "scale":
			if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
				ex.Scale = f
			}
		case "mode":
			// "preview" is the default full render.
			if value == "source-only" {
				ex.SourceOnly = true
			}
		default:
			slog.Debug("Ignoring unknown example option", logfields.Page(ex.File), "option", opt)
		}
	}
}
