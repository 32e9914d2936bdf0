// Package content parses Markdown guide sources into front matter and an
// ordered sequence of structural blocks.
//
// Parsing is a pure first pass: cross-reference tokens are extracted but not
// resolved, and example blocks are collected but not rendered. Unknown
// directive-like constructs pass through as opaque blocks so author mistakes
// surface later as broken-reference diagnostics, never as parse failures.
package content

// BlockKind is the closed set of structural block variants.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockCode      BlockKind = "code"
	BlockExample   BlockKind = "example"
	BlockHTML      BlockKind = "html"
	BlockDirective BlockKind = "directive"
)

// RefKind is the resolution kind requested by a cross-reference token.
type RefKind string

const (
	RefSymbol RefKind = "symbol"
	RefPage   RefKind = "page"
	RefAnchor RefKind = "anchor"
)

// CrossRef is an unresolved textual cross-reference discovered during
// parsing. It is transient: resolution replaces it with a resolved link
// inline or a broken_reference diagnostic, and it never reaches the output.
type CrossRef struct {
	Raw  string
	Kind RefKind
	File string
	Line int
}

// InlineKind is the variant tag for inline content within a block.
type InlineKind string

const (
	InlineText InlineKind = "text"
	InlineCode InlineKind = "code"
	// InlineRef is a pending cross-reference; resolution rewrites it to
	// InlineLink or demotes it back to InlineText.
	InlineRef  InlineKind = "ref"
	InlineLink InlineKind = "link"
)

// Inline is one span of inline content. Resolved links carry the target
// route (and symbol id if any) so the front end can render them without
// re-resolving.
type Inline struct {
	Kind     InlineKind `json:"kind"`
	Text     string     `json:"text"`
	Target   string     `json:"target,omitempty"`
	TargetID string     `json:"target_id,omitempty"`
	Ref      *CrossRef  `json:"-"`
	// Line is the source line where this span starts; kept for diagnostics,
	// not serialized.
	Line int `json:"-"`
}

// ExampleBlock is an embedded executable Quill snippet plus its rendering
// configuration.
type ExampleBlock struct {
	Source      string
	Scale       float64 // 0 means the configured default
	ExpectError bool
	SourceOnly  bool // compile but skip rasterization
	File        string
	Line        int
}

// Block is one structural unit of a page body. Every block keeps its 1-based
// source line for diagnostics.
type Block struct {
	Kind    BlockKind
	Line    int
	Level   int        // heading level
	Anchor  string     // heading anchor slug
	Inlines []Inline   // heading/paragraph content
	Items   [][]Inline // list items
	Code    string     // code block literal
	Language string    // code block language tag
	Raw     string     // html/directive passthrough
	Example *ExampleBlock
}

// Document is one fully parsed guide source file.
type Document struct {
	File     string
	Meta     FrontMatter
	Blocks   []Block
	Anchors  map[string]struct{}
	Examples []*ExampleBlock
}

// HasAnchor reports whether an in-page anchor exists.
func (d *Document) HasAnchor(name string) bool {
	_, ok := d.Anchors[name]
	return ok
}
