// Package pipeline orchestrates a documentation build: registry loading,
// content parsing, reference resolution, example rendering, tree assembly and
// serialization run as distinct phases over shared immutable inputs.
//
// Phases record problems as diagnostics and keep going; the pipeline aborts
// only on environmental failures such as an unreadable source tree.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/quilldocs/internal/config"
	"git.home.luguber.info/inful/quilldocs/internal/content"
	"git.home.luguber.info/inful/quilldocs/internal/diag"
	"git.home.luguber.info/inful/quilldocs/internal/events"
	"git.home.luguber.info/inful/quilldocs/internal/logfields"
	"git.home.luguber.info/inful/quilldocs/internal/observability"
	"git.home.luguber.info/inful/quilldocs/internal/pagetree"
	"git.home.luguber.info/inful/quilldocs/internal/registry"
	"git.home.luguber.info/inful/quilldocs/internal/render"
	"git.home.luguber.info/inful/quilldocs/internal/rendercache"
	"git.home.luguber.info/inful/quilldocs/internal/resolve"
)

// Options adjust a single run.
type Options struct {
	// CheckOnly skips example rendering and all output writing; the run
	// result is the diagnostic report alone.
	CheckOnly bool
	// NoCache disables the persistent artifact cache layer for this run.
	NoCache bool
}

// Result is the outcome of a completed run.
type Result struct {
	RunID  string
	Report *diag.Report
	Tree   *pagetree.Tree
	// TreeEmitted is false when structural diagnostics suppressed the tree
	// or the run was check-only.
	TreeEmitted bool
}

// Failed reports whether the run carries fatal diagnostics.
func (r *Result) Failed() bool { return r.Report.HasFatal() }

// Pipeline wires the build phases together. Collaborators are injected so
// tests can run the full pipeline without a quill binary or a NATS broker.
type Pipeline struct {
	cfg        *config.Config
	metrics    *observability.Metrics
	compiler   render.Compiler
	rasterizer render.Rasterizer
	publisher  *events.Publisher
}

// New builds a pipeline. metrics and publisher may be nil.
func New(cfg *config.Config, metrics *observability.Metrics, compiler render.Compiler, rasterizer render.Rasterizer, publisher *events.Publisher) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		metrics:    metrics,
		compiler:   compiler,
		rasterizer: rasterizer,
		publisher:  publisher,
	}
}

// Run executes a full build. The returned error is environmental; content
// problems land in Result.Report instead.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)
	report := diag.NewReport()
	started := time.Now()

	observability.InfoContext(ctx, "Starting documentation build",
		slog.Bool("check_only", opts.CheckOnly))

	reg, err := p.runRegistry(ctx, report)
	if err != nil {
		return nil, err
	}

	docs, err := p.runParse(ctx, report)
	if err != nil {
		return nil, err
	}

	routes := make(map[string]string, len(docs))
	for _, doc := range docs {
		routes[doc.File] = pagetree.GuideRoute(doc.File, doc.Meta)
	}

	resolver := resolve.New(reg, routes, p.metrics)
	see := p.runResolve(ctx, resolver, docs, report)

	var artifacts map[*content.ExampleBlock]*rendercache.Artifact
	if !opts.CheckOnly {
		artifacts, err = p.runRender(ctx, docs, opts, report)
		if err != nil {
			return nil, err
		}
	}

	tree := p.runTree(ctx, docs, routes, reg, see, report)

	p.countDiagnostics(report)

	result := &Result{RunID: runID, Report: report, Tree: tree}
	if !opts.CheckOnly {
		emitted, err := p.runSerialize(ctx, result, artifacts, reg)
		if err != nil {
			return nil, err
		}
		result.TreeEmitted = emitted
	}

	if p.publisher != nil {
		p.publisher.PublishReport(ctx, runID, report)
	}

	observability.InfoContext(ctx, "Build finished",
		logfields.DurationMS(float64(time.Since(started).Milliseconds())),
		slog.Int("diagnostics", report.Len()),
		slog.Bool("fatal", report.HasFatal()))
	return result, nil
}

func (p *Pipeline) runRegistry(ctx context.Context, report *diag.Report) (*registry.Registry, error) {
	ctx = observability.WithPhase(ctx, "registry")
	defer p.phaseTimer(ctx, "registry")()

	reg, err := registry.Load(p.cfg.Reference.MetadataDir, report)
	if err != nil {
		return nil, fmt.Errorf("load symbol registry: %w", err)
	}
	if p.metrics != nil {
		p.metrics.SymbolsLoaded.Add(float64(reg.Len()))
	}
	observability.InfoContext(ctx, "Symbol registry loaded",
		slog.Int("modules", len(reg.Modules())), slog.Int("symbols", reg.Len()))
	return reg, nil
}

// runParse walks the content directory and parses every Markdown page
// concurrently. Document files are stored relative to the content root so
// routes and diagnostics stay machine-independent.
func (p *Pipeline) runParse(ctx context.Context, report *diag.Report) ([]*content.Document, error) {
	ctx = observability.WithPhase(ctx, "parse")
	defer p.phaseTimer(ctx, "parse")()

	root := p.cfg.Guides.ContentDir
	if root == "" {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk content dir %s: %w", root, err)
	}
	sort.Strings(files)

	docs := make([]*content.Document, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("read page %s: %w", rel, err)
			}
			doc, err := content.Parse(rel, raw)
			if err != nil {
				mu.Lock()
				report.Addf(diag.KindMalformedFrontMatter, diag.Location{File: rel}, err.Error())
				mu.Unlock()
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Compact out pages skipped for malformed front matter.
	out := docs[:0]
	for _, doc := range docs {
		if doc != nil {
			out = append(out, doc)
		}
	}
	if p.metrics != nil {
		p.metrics.PagesParsed.Add(float64(len(out)))
	}
	observability.InfoContext(ctx, "Content parsed",
		slog.Int("pages", len(out)), slog.Int("skipped", len(files)-len(out)))
	return out, nil
}

func (p *Pipeline) runResolve(ctx context.Context, resolver *resolve.Resolver, docs []*content.Document, report *diag.Report) map[string][]resolve.Link {
	ctx = observability.WithPhase(ctx, "resolve")
	defer p.phaseTimer(ctx, "resolve")()

	resolver.ResolveDocuments(docs, report)
	resolver.ResolveDocs(report)
	see := resolver.ResolveSee(report)
	observability.InfoContext(ctx, "References resolved", slog.Int("pages", len(docs)))
	return see
}

func (p *Pipeline) runRender(ctx context.Context, docs []*content.Document, opts Options, report *diag.Report) (map[*content.ExampleBlock]*rendercache.Artifact, error) {
	ctx = observability.WithPhase(ctx, "render")
	defer p.phaseTimer(ctx, "render")()

	var examples []*content.ExampleBlock
	for _, doc := range docs {
		examples = append(examples, doc.Examples...)
	}
	if len(examples) == 0 {
		return nil, nil
	}

	cache, err := p.openCache(opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cache.Close(); cerr != nil {
			observability.WarnContext(ctx, "Closing render cache failed", logfields.Error(cerr))
		}
	}()

	renderer := render.New(p.compiler, p.rasterizer, cache, p.metrics,
		p.cfg.Render.Workers, p.cfg.Render.Timeout, p.cfg.Render.DefaultScale)
	artifacts := renderer.RenderAll(ctx, examples, report)

	observability.InfoContext(ctx, "Examples rendered", slog.Int("examples", len(examples)))
	return artifacts, nil
}

// openCache builds the artifact cache: always the in-memory layer, with the
// sqlite layer underneath when a cache path is configured.
func (p *Pipeline) openCache(opts Options) (rendercache.Cache, error) {
	path := p.cfg.Render.CachePath
	if path == "" || opts.NoCache {
		return rendercache.NewMemory(), nil
	}
	persistent, err := rendercache.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open render cache %s: %w", path, err)
	}
	return rendercache.NewLayered(persistent), nil
}

func (p *Pipeline) runTree(ctx context.Context, docs []*content.Document, routes map[string]string, reg *registry.Registry, see map[string][]resolve.Link, report *diag.Report) *pagetree.Tree {
	ctx = observability.WithPhase(ctx, "tree")
	defer p.phaseTimer(ctx, "tree")()

	tree := pagetree.Build(docs, routes, reg, see, report)
	tree.Title = p.cfg.Title
	if root := tree.Node(tree.Root()); root.Title == "" {
		root.Title = p.cfg.Title
	}
	observability.InfoContext(ctx, "Page tree assembled", slog.Int("nodes", len(tree.Nodes)))
	return tree
}

func (p *Pipeline) runSerialize(ctx context.Context, result *Result, artifacts map[*content.ExampleBlock]*rendercache.Artifact, reg *registry.Registry) (bool, error) {
	ctx = observability.WithPhase(ctx, "serialize")
	defer p.phaseTimer(ctx, "serialize")()

	s := newSerializer(p.cfg.Output.Dir, artifacts)

	if err := s.writeReport(result.RunID, result.Report); err != nil {
		return false, err
	}

	if result.Report.HasStructural() {
		observability.WarnContext(ctx, "Structural diagnostics present, tree not emitted")
		return false, nil
	}

	if err := s.writeTree(result.Tree); err != nil {
		return false, err
	}
	if err := s.writeRegistry(reg); err != nil {
		return false, err
	}
	if err := s.writeAssets(); err != nil {
		return false, err
	}
	observability.InfoContext(ctx, "Output written", slog.String("dir", p.cfg.Output.Dir))
	return true, nil
}

func (p *Pipeline) countDiagnostics(report *diag.Report) {
	if p.metrics == nil {
		return
	}
	for kind, n := range report.CountByKind() {
		p.metrics.Diagnostics.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// phaseTimer logs and records the duration of a phase when the returned
// function runs.
func (p *Pipeline) phaseTimer(ctx context.Context, phase string) func() {
	started := time.Now()
	return func() {
		elapsed := time.Since(started)
		if p.metrics != nil {
			p.metrics.ObservePhase(phase, elapsed)
		}
		observability.DebugContext(ctx, "Phase complete", logfields.DurationMS(float64(elapsed.Milliseconds())))
	}
}
