package content

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const page = `---
title: Getting Started
slug: getting-started
weight: 10
---
# Overview

See [math.sin] for details.

` + "```example scale=2 expect-error\n#let x = 1 + 1\n```" + `

` + "```quill\n#heading[Hi]\n```" + `

<div id="extras"></div>

::: callout not a real directive
`

func TestParse_FrontMatter_Typed(t *testing.T) {
	doc, err := Parse("guides/start.md", []byte(page))
	require.NoError(t, err)
	require.Equal(t, "Getting Started", doc.Meta.Title)
	require.Equal(t, "getting-started", doc.Meta.Slug)
	require.Equal(t, 10, doc.Meta.Weight)
}

func TestParse_BlockSequenceAndKinds(t *testing.T) {
	doc, err := Parse("guides/start.md", []byte(page))
	require.NoError(t, err)

	kinds := make([]BlockKind, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		kinds = append(kinds, b.Kind)
	}
	require.Equal(t, []BlockKind{
		BlockHeading, BlockParagraph, BlockExample, BlockCode, BlockHTML, BlockDirective,
	}, kinds)
}

func TestParse_RefToken_ExtractedWithLocation(t *testing.T) {
	doc, err := Parse("guides/start.md", []byte(page))
	require.NoError(t, err)

	para := doc.Blocks[1]
	require.Equal(t, BlockParagraph, para.Kind)

	var ref *CrossRef
	for _, span := range para.Inlines {
		if span.Kind == InlineRef {
			ref = span.Ref
		}
	}
	require.NotNil(t, ref)
	require.Equal(t, "math.sin", ref.Raw)
	require.Equal(t, RefSymbol, ref.Kind)
	require.Equal(t, "guides/start.md", ref.File)
	require.Equal(t, 8, ref.Line) // front matter occupies lines 1-5
}

func TestParse_ExampleFence_OptionsApplied(t *testing.T) {
	doc, err := Parse("guides/start.md", []byte(page))
	require.NoError(t, err)
	require.Len(t, doc.Examples, 1)

	ex := doc.Examples[0]
	require.Equal(t, "#let x = 1 + 1\n", ex.Source)
	require.Equal(t, float64(2), ex.Scale)
	require.True(t, ex.ExpectError)
	require.False(t, ex.SourceOnly)
}

func TestParse_PlainCodeFence_KeepsLanguage(t *testing.T) {
	doc, err := Parse("guides/start.md", []byte(page))
	require.NoError(t, err)

	code := doc.Blocks[3]
	require.Equal(t, BlockCode, code.Kind)
	require.Equal(t, "quill", code.Language)
	require.Equal(t, "#heading[Hi]\n", code.Code)
}

func TestParse_HeadingAnchorAndHTMLAnchor(t *testing.T) {
	doc, err := Parse("guides/start.md", []byte(page))
	require.NoError(t, err)
	require.True(t, doc.HasAnchor("overview"))
	require.True(t, doc.HasAnchor("extras"))
	require.False(t, doc.HasAnchor("missing"))
}

func TestParse_UnknownDirective_PassesThroughOpaque(t *testing.T) {
	doc, err := Parse("guides/start.md", []byte(page))
	require.NoError(t, err)

	last := doc.Blocks[len(doc.Blocks)-1]
	require.Equal(t, BlockDirective, last.Kind)
	require.Contains(t, last.Raw, "::: callout")
}

func TestParse_MissingFrontMatter_Malformed(t *testing.T) {
	_, err := Parse("a.md", []byte("# Just a heading\n"))
	require.ErrorIs(t, err, ErrMalformedFrontMatter)
}

func TestParse_UnterminatedFrontMatter_Malformed(t *testing.T) {
	_, err := Parse("a.md", []byte("---\ntitle: X\nbody without closing\n"))
	require.ErrorIs(t, err, ErrMalformedFrontMatter)
}

func TestParse_MissingTitle_Malformed(t *testing.T) {
	_, err := Parse("a.md", []byte("---\nslug: x\n---\nbody\n"))
	require.ErrorIs(t, err, ErrMalformedFrontMatter)
}

func TestParse_PageLink_RequestsPageResolution(t *testing.T) {
	src := "---\ntitle: T\n---\nRead the [intro](/guides/intro/).\n"
	doc, err := Parse("a.md", []byte(src))
	require.NoError(t, err)

	var ref *CrossRef
	var display string
	for _, span := range doc.Blocks[0].Inlines {
		if span.Kind == InlineRef {
			ref = span.Ref
			display = span.Text
		}
	}
	require.NotNil(t, ref)
	require.Equal(t, RefPage, ref.Kind)
	require.Equal(t, "/guides/intro/", ref.Raw)
	require.Equal(t, "intro", display)
}

func TestParse_AnchorLink_RequestsAnchorResolution(t *testing.T) {
	src := "---\ntitle: T\n---\nJump to [setup](#setup).\n"
	doc, err := Parse("a.md", []byte(src))
	require.NoError(t, err)

	var ref *CrossRef
	for _, span := range doc.Blocks[0].Inlines {
		if span.Kind == InlineRef {
			ref = span.Ref
		}
	}
	require.NotNil(t, ref)
	require.Equal(t, RefAnchor, ref.Kind)
	require.Equal(t, "setup", ref.Raw)
}

func TestParse_ExternalLink_StaysResolved(t *testing.T) {
	src := "---\ntitle: T\n---\nVisit [the site](https://example.com).\n"
	doc, err := Parse("a.md", []byte(src))
	require.NoError(t, err)

	var link *Inline
	for i, span := range doc.Blocks[0].Inlines {
		if span.Kind == InlineLink {
			link = &doc.Blocks[0].Inlines[i]
		}
	}
	require.NotNil(t, link)
	require.Equal(t, "https://example.com", link.Target)
	require.Equal(t, "the site", link.Text)
}

func TestParse_CodeSpan_NotScannedForTokens(t *testing.T) {
	src := "---\ntitle: T\n---\nUse `[math.sin]` literally.\n"
	doc, err := Parse("a.md", []byte(src))
	require.NoError(t, err)

	for _, span := range doc.Blocks[0].Inlines {
		require.NotEqual(t, InlineRef, span.Kind)
		if span.Kind == InlineCode {
			require.Equal(t, "[math.sin]", span.Text)
		}
	}
}

func TestParse_List_ItemsCarryInlines(t *testing.T) {
	src := "---\ntitle: T\n---\n- first [math.pi]\n- second\n"
	doc, err := Parse("a.md", []byte(src))
	require.NoError(t, err)

	require.Len(t, doc.Blocks, 1)
	list := doc.Blocks[0]
	require.Equal(t, BlockList, list.Kind)
	require.Len(t, list.Items, 2)

	var found bool
	for _, span := range list.Items[0] {
		if span.Kind == InlineRef && span.Ref.Raw == "math.pi" {
			found = true
		}
	}
	require.True(t, found)
}

func TestSlugify_NormalizesUnicodeAndPunctuation(t *testing.T) {
	require.Equal(t, "getting-started", Slugify("Getting Started"))
	require.Equal(t, "uber-uns", Slugify("Über Uns"))
	require.Equal(t, "a-b-c", Slugify("  a  b!! c "))
	require.Equal(t, "10-things", Slugify("10 Things"))
}
