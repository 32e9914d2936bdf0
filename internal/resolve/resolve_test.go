package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/quilldocs/internal/content"
	"git.home.luguber.info/inful/quilldocs/internal/diag"
	"git.home.luguber.info/inful/quilldocs/internal/registry"
)

const mathMetadata = `module: math
title: Math
description: Numeric functions like [sin] and [draw.circle].
functions:
  - name: sin
  - name: cos
    see:
      - math.sin
      - tau
      - nonexistent
constants:
  - name: tau
    see: [sin]
`

const drawMetadata = `module: draw
functions:
  - name: sin
  - name: circle
    description: Draws a circle around [nope].
`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math.yaml"), []byte(mathMetadata), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draw.yaml"), []byte(drawMetadata), 0o644))

	report := diag.NewReport()
	reg, err := registry.Load(dir, report)
	require.NoError(t, err)
	require.Equal(t, 0, report.Len())
	return reg
}

func parseGuide(t *testing.T, file, body string) *content.Document {
	t.Helper()
	src := "---\ntitle: Test Page\n---\n" + body
	doc, err := content.Parse(file, []byte(src))
	require.NoError(t, err)
	return doc
}

// refSpans flattens every inline of every block, for assertions.
func refSpans(doc *content.Document) []content.Inline {
	var out []content.Inline
	for _, b := range doc.Blocks {
		out = append(out, b.Inlines...)
		for _, item := range b.Items {
			out = append(out, item...)
		}
	}
	return out
}

func findLink(t *testing.T, doc *content.Document, text string) content.Inline {
	t.Helper()
	for _, span := range refSpans(doc) {
		if span.Kind == content.InlineLink && span.Text == text {
			return span
		}
	}
	t.Fatalf("no resolved link with text %q", text)
	return content.Inline{}
}

func TestResolveDocuments_ExactSymbolToken_Linked(t *testing.T) {
	doc := parseGuide(t, "guides/trig.md", "Use [math.sin] for waves.\n")
	r := New(testRegistry(t), map[string]string{"guides/trig.md": "/guides/trig/"}, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc}, report)

	require.Equal(t, 0, report.Len())
	link := findLink(t, doc, "math.sin")
	require.Equal(t, "/reference/math/sin/", link.Target)
	require.Equal(t, "math.sin", link.TargetID)
}

func TestResolveDocuments_ModuleToken_Linked(t *testing.T) {
	doc := parseGuide(t, "guides/trig.md", "See the [math] module.\n")
	r := New(testRegistry(t), nil, nil)

	r.ResolveDocuments([]*content.Document{doc}, diag.NewReport())

	link := findLink(t, doc, "math")
	require.Equal(t, "/reference/math/", link.Target)
}

func TestResolveDocuments_UniqueShortName_Linked(t *testing.T) {
	doc := parseGuide(t, "guides/shapes.md", "Draw with [circle] or [tau].\n")
	r := New(testRegistry(t), nil, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc}, report)

	require.Equal(t, 0, report.Len())
	require.Equal(t, "/reference/draw/circle/", findLink(t, doc, "circle").Target)
	require.Equal(t, "/reference/math/tau/", findLink(t, doc, "tau").Target)
}

func TestResolveDocuments_AmbiguousShortName_BrokenAndDemoted(t *testing.T) {
	doc := parseGuide(t, "guides/trig.md", "The [sin] function.\n")
	r := New(testRegistry(t), nil, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc}, report)

	diags := report.All()
	require.Len(t, diags, 1)
	require.Equal(t, diag.KindBrokenReference, diags[0].Kind)
	require.Contains(t, diags[0].Message, "draw.sin")
	require.Contains(t, diags[0].Message, "math.sin")
	require.True(t, report.HasFatal())

	var demoted bool
	for _, span := range refSpans(doc) {
		if span.Kind == content.InlineText && span.Text == "[sin]" {
			demoted = true
		}
		require.NotEqual(t, content.InlineRef, span.Kind, "no pending refs may survive resolution")
	}
	require.True(t, demoted, "broken token is restored as literal text")
}

func TestResolveDocuments_UnknownSymbol_Broken(t *testing.T) {
	doc := parseGuide(t, "guides/trig.md", "See [math.arctan] maybe.\n")
	r := New(testRegistry(t), nil, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc}, report)

	diags := report.All()
	require.Len(t, diags, 1)
	require.Equal(t, diag.KindBrokenReference, diags[0].Kind)
	require.Equal(t, "guides/trig.md", diags[0].Location.File)
	require.Contains(t, diags[0].Message, "math.arctan")
}

func TestResolveDocuments_RelativePageLink_Resolved(t *testing.T) {
	doc := parseGuide(t, "guides/advanced/tips.md", "Start with [the setup guide](../setup.md).\n")
	setup := parseGuide(t, "guides/setup.md", "# Install\n")
	routes := map[string]string{
		"guides/advanced/tips.md": "/guides/advanced/tips/",
		"guides/setup.md":         "/guides/setup/",
	}
	r := New(testRegistry(t), routes, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc, setup}, report)

	require.Equal(t, 0, report.Len())
	require.Equal(t, "/guides/setup/", findLink(t, doc, "the setup guide").Target)
}

func TestResolveDocuments_PageLinkWithFragment_AnchorChecked(t *testing.T) {
	doc := parseGuide(t, "guides/tips.md",
		"See [install](setup.md#install) and [missing](setup.md#nope).\n")
	setup := parseGuide(t, "guides/setup.md", "# Install\n")
	routes := map[string]string{
		"guides/tips.md":  "/guides/tips/",
		"guides/setup.md": "/guides/setup/",
	}
	r := New(testRegistry(t), routes, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc, setup}, report)

	require.Equal(t, "/guides/setup/#install", findLink(t, doc, "install").Target)
	diags := report.All()
	require.Len(t, diags, 1)
	require.Contains(t, diags[0].Message, `"nope"`)
}

func TestResolveDocuments_RouteShapedPageLink_Resolved(t *testing.T) {
	doc := parseGuide(t, "guides/tips.md",
		"Read [the API](/reference/math/sin/) and [setup](/guides/setup/).\n")
	setup := parseGuide(t, "guides/setup.md", "# Install\n")
	routes := map[string]string{
		"guides/tips.md":  "/guides/tips/",
		"guides/setup.md": "/guides/setup/",
	}
	r := New(testRegistry(t), routes, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc, setup}, report)

	require.Equal(t, 0, report.Len())
	require.Equal(t, "/reference/math/sin/", findLink(t, doc, "the API").Target)
	require.Equal(t, "/guides/setup/", findLink(t, doc, "setup").Target)
}

func TestResolveDocuments_InPageAnchor_Resolved(t *testing.T) {
	doc := parseGuide(t, "guides/tips.md",
		"# Getting Started\n\nJump to [the intro](#getting-started) or [nowhere](#missing).\n")
	r := New(testRegistry(t), nil, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc}, report)

	require.Equal(t, "#getting-started", findLink(t, doc, "the intro").Target)
	diags := report.All()
	require.Len(t, diags, 1)
	require.Equal(t, diag.KindBrokenReference, diags[0].Kind)
}

func TestResolveDocuments_ListItems_Resolved(t *testing.T) {
	doc := parseGuide(t, "guides/tips.md", "- first [math.sin]\n- second [math.cos]\n")
	r := New(testRegistry(t), nil, nil)
	report := diag.NewReport()

	r.ResolveDocuments([]*content.Document{doc}, report)

	require.Equal(t, 0, report.Len())
	require.Equal(t, "/reference/math/sin/", findLink(t, doc, "math.sin").Target)
	require.Equal(t, "/reference/math/cos/", findLink(t, doc, "math.cos").Target)
}

func TestResolveSee_LinksAndBrokenTokens(t *testing.T) {
	r := New(testRegistry(t), nil, nil)
	report := diag.NewReport()

	see := r.ResolveSee(report)

	links := see["math.cos"]
	require.Len(t, links, 2)
	require.Equal(t, Link{Text: "math.sin", Route: "/reference/math/sin/", SymbolID: "math.sin"}, links[0])
	require.Equal(t, Link{Text: "tau", Route: "/reference/math/tau/", SymbolID: "math.tau"}, links[1])

	diags := report.All()
	require.Len(t, diags, 1)
	require.Equal(t, diag.KindBrokenReference, diags[0].Kind)
	require.Equal(t, "/reference/math/cos/", diags[0].Location.File)
	require.Contains(t, diags[0].Message, "nonexistent")
}

func TestResolveSee_ShortName_BindsToOwnModule(t *testing.T) {
	r := New(testRegistry(t), nil, nil)
	report := diag.NewReport()

	see := r.ResolveSee(report)

	// "sin" exists in both math and draw; a see entry on math.tau binds to
	// math.sin instead of failing as ambiguous.
	links := see["math.tau"]
	require.Len(t, links, 1)
	require.Equal(t, Link{Text: "sin", Route: "/reference/math/sin/", SymbolID: "math.sin"}, links[0])

	// Only math.cos's nonexistent token is broken.
	require.Equal(t, 1, report.Len())
}

func TestResolveDocs_TokensRewrittenScopedToModule(t *testing.T) {
	reg := testRegistry(t)
	r := New(reg, nil, nil)
	report := diag.NewReport()

	r.ResolveDocs(report)

	m, ok := reg.Module("math")
	require.True(t, ok)
	require.Equal(t,
		"Numeric functions like [sin](/reference/math/sin/) and [draw.circle](/reference/draw/circle/).",
		m.DocsResolved)
}

func TestResolveDocs_BrokenToken_ReportedAgainstMetadataFile(t *testing.T) {
	reg := testRegistry(t)
	r := New(reg, nil, nil)
	report := diag.NewReport()

	r.ResolveDocs(report)

	circle, ok := reg.Symbol("draw.circle")
	require.True(t, ok)
	require.Contains(t, circle.DocsResolved, "[nope]", "broken token stays literal")

	var broken []diag.Diagnostic
	for _, d := range report.All() {
		if d.Kind == diag.KindBrokenReference {
			broken = append(broken, d)
		}
	}
	require.Len(t, broken, 1)
	require.Contains(t, broken[0].Location.File, "draw.yaml")
	require.Contains(t, broken[0].Message, "nope")
}
