package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/quilldocs/internal/content"
	"git.home.luguber.info/inful/quilldocs/internal/diag"
	"git.home.luguber.info/inful/quilldocs/internal/highlight"
	"git.home.luguber.info/inful/quilldocs/internal/pagetree"
	"git.home.luguber.info/inful/quilldocs/internal/registry"
	"git.home.luguber.info/inful/quilldocs/internal/rendercache"
	"git.home.luguber.info/inful/quilldocs/internal/resolve"
)

// serializer writes the run outputs: report.json, tree.json, registry.json
// and the rendered PNG assets. All files are written atomically so a crashed
// run never leaves a half-written site behind.
type serializer struct {
	outDir    string
	artifacts map[*content.ExampleBlock]*rendercache.Artifact
}

func newSerializer(outDir string, artifacts map[*content.ExampleBlock]*rendercache.Artifact) *serializer {
	return &serializer{outDir: outDir, artifacts: artifacts}
}

// reportJSON is the on-disk shape of report.json.
type reportJSON struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Fatal       bool              `json:"fatal"`
	Structural  bool              `json:"structural"`
	Counts      map[string]int    `json:"counts"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

func (s *serializer) writeReport(runID string, report *diag.Report) error {
	counts := make(map[string]int)
	for kind, n := range report.CountByKind() {
		counts[string(kind)] = n
	}
	out := reportJSON{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Fatal:       report.HasFatal(),
		Structural:  report.HasStructural(),
		Counts:      counts,
		Diagnostics: report.All(),
	}
	return s.writeJSON("report.json", out)
}

// nodeJSON flattens a tree node for the front end: guide nodes carry the full
// rendered page, reference nodes carry the symbol id resolved against
// registry.json.
type nodeJSON struct {
	ID       pagetree.NodeID   `json:"id"`
	Kind     pagetree.NodeKind `json:"kind"`
	Title    string            `json:"title"`
	Route    string            `json:"route,omitempty"`
	Weight   int               `json:"weight,omitempty"`
	Parent   pagetree.NodeID   `json:"parent"`
	Prev     pagetree.NodeID   `json:"prev"`
	Next     pagetree.NodeID   `json:"next"`
	Children []pagetree.NodeID `json:"children,omitempty"`
	SymbolID string            `json:"symbol_id,omitempty"`
	See      []resolve.Link    `json:"see,omitempty"`
	Page     *pageJSON         `json:"page,omitempty"`
}

type pageJSON struct {
	File        string      `json:"file"`
	Description string      `json:"description,omitempty"`
	Blocks      []blockJSON `json:"blocks"`
}

type blockJSON struct {
	Kind    content.BlockKind  `json:"kind"`
	Level   int                `json:"level,omitempty"`
	Anchor  string             `json:"anchor,omitempty"`
	Inlines []content.Inline   `json:"inlines,omitempty"`
	Items   [][]content.Inline `json:"items,omitempty"`
	Code    string             `json:"code,omitempty"`
	Spans   []highlight.Span   `json:"spans,omitempty"`
	Raw     string             `json:"raw,omitempty"`
	Example *exampleJSON       `json:"example,omitempty"`
}

// exampleJSON carries the snippet, its highlighted spans and the render
// outcome. Asset names the PNG under assets/ when one was produced.
type exampleJSON struct {
	Source      string           `json:"source"`
	Spans       []highlight.Span `json:"spans,omitempty"`
	ExpectError bool             `json:"expect_error,omitempty"`
	SourceOnly  bool             `json:"source_only,omitempty"`
	Asset       string           `json:"asset,omitempty"`
	Width       int              `json:"width,omitempty"`
	Height      int              `json:"height,omitempty"`
	Error       string           `json:"error,omitempty"`
}

type treeJSON struct {
	Title string     `json:"title"`
	Nodes []nodeJSON `json:"nodes"`
}

func (s *serializer) writeTree(tree *pagetree.Tree) error {
	out := treeJSON{
		Title: tree.Title,
		Nodes: make([]nodeJSON, 0, len(tree.Nodes)),
	}
	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		node := nodeJSON{
			ID:       n.ID,
			Kind:     n.Kind,
			Title:    n.Title,
			Route:    n.Route,
			Weight:   n.Weight,
			Parent:   n.Parent,
			Prev:     n.Prev,
			Next:     n.Next,
			Children: n.Children,
			SymbolID: n.SymbolID,
			See:      n.See,
		}
		if n.Document != nil {
			node.Page = s.page(n.Document)
		}
		out.Nodes = append(out.Nodes, node)
	}
	return s.writeJSON("tree.json", out)
}

func (s *serializer) page(doc *content.Document) *pageJSON {
	page := &pageJSON{
		File:        doc.File,
		Description: doc.Meta.Description,
		Blocks:      make([]blockJSON, 0, len(doc.Blocks)),
	}
	for i := range doc.Blocks {
		page.Blocks = append(page.Blocks, s.block(&doc.Blocks[i]))
	}
	return page
}

func (s *serializer) block(b *content.Block) blockJSON {
	out := blockJSON{
		Kind:    b.Kind,
		Level:   b.Level,
		Anchor:  b.Anchor,
		Inlines: b.Inlines,
		Items:   b.Items,
		Raw:     b.Raw,
	}
	switch b.Kind {
	case content.BlockCode:
		out.Code = b.Code
		out.Spans = highlight.Highlight(b.Code, b.Language)
	case content.BlockExample:
		out.Example = s.example(b.Example)
	}
	return out
}

func (s *serializer) example(ex *content.ExampleBlock) *exampleJSON {
	out := &exampleJSON{
		Source:      ex.Source,
		Spans:       highlight.Highlight(ex.Source, "quill"),
		ExpectError: ex.ExpectError,
		SourceOnly:  ex.SourceOnly,
	}
	a, ok := s.artifacts[ex]
	if !ok || a == nil {
		return out
	}
	if a.OK && len(a.PNG) > 0 {
		out.Asset = a.Key + ".png"
		out.Width = a.Width
		out.Height = a.Height
	}
	if !ex.ExpectError {
		out.Error = a.ErrorText
	}
	return out
}

// registryJSON is the full symbol metadata emitted next to the tree, so
// symbol nodes need only their id.
type registryJSON struct {
	Modules []moduleJSON `json:"modules"`
}

type moduleJSON struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Route   string       `json:"route"`
	Docs    string       `json:"docs,omitempty"`
	Symbols []symbolJSON `json:"symbols,omitempty"`
}

type symbolJSON struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Title      string           `json:"title"`
	Kind       registry.Kind    `json:"kind"`
	Route      string           `json:"route"`
	Docs       string           `json:"docs,omitempty"`
	Params     []registry.Param `json:"params,omitempty"`
	Returns    string           `json:"returns,omitempty"`
	Deprecated bool             `json:"deprecated,omitempty"`
}

// resolvedDocs prefers the crossref-resolved description when the resolve
// phase produced one.
func resolvedDocs(raw, resolved string) string {
	if resolved != "" {
		return resolved
	}
	return raw
}

func (s *serializer) writeRegistry(reg *registry.Registry) error {
	out := registryJSON{}
	for _, m := range reg.Modules() {
		mod := moduleJSON{
			ID:    m.ID,
			Title: m.Title,
			Route: registry.RouteFor(m.ID),
			Docs:  resolvedDocs(m.Docs, m.DocsResolved),
		}
		for _, sym := range reg.Symbols(m.ID) {
			mod.Symbols = append(mod.Symbols, symbolJSON{
				ID:         sym.ID,
				Name:       sym.Name,
				Title:      sym.Title,
				Kind:       sym.Kind,
				Route:      registry.RouteFor(sym.ID),
				Docs:       resolvedDocs(sym.Docs, sym.DocsResolved),
				Params:     sym.Params,
				Returns:    sym.Returns,
				Deprecated: sym.Deprecated,
			})
		}
		out.Modules = append(out.Modules, mod)
	}
	return s.writeJSON("registry.json", out)
}

// writeAssets writes one PNG per successfully rendered artifact, named by its
// cache key. Deduplication falls out of the naming: identical examples share
// one file.
func (s *serializer) writeAssets() error {
	if len(s.artifacts) == 0 {
		return nil
	}
	assetDir := filepath.Join(s.outDir, "assets")
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	for _, a := range s.artifacts {
		if a == nil || !a.OK || len(a.PNG) == 0 {
			continue
		}
		if err := writeFileAtomic(filepath.Join(assetDir, a.Key+".png"), a.PNG); err != nil {
			return fmt.Errorf("write asset %s: %w", a.Key, err)
		}
	}
	return nil
}

func (s *serializer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.outDir, name), data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// writeFileAtomic stages into a temp file in the target directory and renames
// it into place, so readers never observe partial content.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
