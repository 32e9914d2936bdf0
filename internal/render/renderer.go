package render

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/quilldocs/internal/content"
	"git.home.luguber.info/inful/quilldocs/internal/diag"
	"git.home.luguber.info/inful/quilldocs/internal/logfields"
	"git.home.luguber.info/inful/quilldocs/internal/observability"
	"git.home.luguber.info/inful/quilldocs/internal/rendercache"
)

// Renderer renders example blocks concurrently with failure isolation: one
// bad or hanging example becomes a diagnostic, never a stalled run.
type Renderer struct {
	compiler     Compiler
	rasterizer   Rasterizer
	cache        rendercache.Cache
	metrics      *observability.Metrics
	workers      int
	timeout      time.Duration
	defaultScale float64
	inflight     singleflight.Group
}

// New builds a renderer. workers <= 0 defaults to GOMAXPROCS.
func New(compiler Compiler, rasterizer Rasterizer, cache rendercache.Cache, metrics *observability.Metrics, workers int, timeout time.Duration, defaultScale float64) *Renderer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if defaultScale <= 0 {
		defaultScale = 1
	}
	return &Renderer{
		compiler:     compiler,
		rasterizer:   rasterizer,
		cache:        cache,
		metrics:      metrics,
		workers:      workers,
		timeout:      timeout,
		defaultScale: defaultScale,
	}
}

// RenderAll renders every example block, bounded by the worker limit.
// Diagnostics are derived from artifacts on every run, so cached failures are
// still reported.
func (r *Renderer) RenderAll(ctx context.Context, examples []*content.ExampleBlock, report *diag.Report) map[*content.ExampleBlock]*rendercache.Artifact {
	results := make(map[*content.ExampleBlock]*rendercache.Artifact, len(examples))
	var mu sync.Mutex

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for _, ex := range examples {
		select {
		case <-ctx.Done():
			wg.Wait()
			return results
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(ex *content.ExampleBlock) {
			defer wg.Done()
			defer func() { <-sem }()

			artifact, timedOut := r.renderOne(ctx, ex)
			r.report(ex, artifact, timedOut, report)

			mu.Lock()
			results[ex] = artifact
			mu.Unlock()
		}(ex)
	}
	wg.Wait()
	return results
}

// renderOutcome carries one render result through the in-flight group.
type renderOutcome struct {
	artifact *rendercache.Artifact
	timedOut bool
}

// renderOne produces the artifact for a single example, consulting the cache
// first. Timeout artifacts are returned but never cached: a hang is a
// property of the environment, not of the key. Lookup and render run inside a
// per-key flight group, so identical examples within one batch share a single
// compile instead of racing past each other's cache writes.
func (r *Renderer) renderOne(ctx context.Context, ex *content.ExampleBlock) (*rendercache.Artifact, bool) {
	key := Key(ex, r.defaultScale)

	v, _, _ := r.inflight.Do(key, func() (any, error) {
		cached, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			// A failing cache degrades to a miss, but never silently.
			slog.Warn("Render cache lookup failed", logfields.CacheKey(key), logfields.Error(err))
		}
		if ok {
			r.countCache("hit")
			observability.DebugContext(ctx, "Render cache hit", logfields.CacheKey(key), logfields.Page(ex.File))
			return renderOutcome{artifact: cached}, nil
		}
		r.countCache("miss")

		artifact, cacheable, timedOut := r.renderWithTimeout(ctx, ex, key)
		if cacheable {
			if err := r.cache.Put(ctx, artifact); err != nil {
				slog.Warn("Failed to store render artifact", logfields.CacheKey(key), logfields.Error(err))
			}
		}
		return renderOutcome{artifact: artifact, timedOut: timedOut}, nil
	})
	o := v.(renderOutcome)
	return o.artifact, o.timedOut
}

// renderWithTimeout runs compile+rasterize in a goroutine so collaborators
// that ignore context cancellation still cannot block the run.
func (r *Renderer) renderWithTimeout(ctx context.Context, ex *content.ExampleBlock, key string) (artifact *rendercache.Artifact, cacheable, timedOut bool) {
	tctx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type outcome struct {
		artifact  *rendercache.Artifact
		cacheable bool
	}
	done := make(chan outcome, 1)
	go func() {
		a, c := r.execute(tctx, ex, key)
		done <- outcome{artifact: a, cacheable: c}
	}()

	select {
	case o := <-done:
		return o.artifact, o.cacheable, false
	case <-tctx.Done():
		return &rendercache.Artifact{
			Key:       key,
			ErrorText: fmt.Sprintf("render timed out after %s", r.timeout),
		}, false, true
	}
}

// execute performs the actual compile and, when appropriate, rasterization.
// The cacheable result excludes environmental failures: only outcomes that
// are pure functions of the key may be stored.
func (r *Renderer) execute(ctx context.Context, ex *content.ExampleBlock, key string) (*rendercache.Artifact, bool) {
	result, err := r.compiler.Compile(ctx, NormalizeSource(ex.Source))
	if err != nil {
		return &rendercache.Artifact{Key: key, ErrorText: fmt.Sprintf("compiler invocation: %v", err)}, false
	}
	if result.Err != nil {
		return &rendercache.Artifact{Key: key, ErrorText: result.Err.Text()}, true
	}

	doc := result.Doc
	defer doc.Cleanup()

	if ex.ExpectError {
		// Compiled although an error was asserted. Recorded as a compiled
		// artifact; the diagnostic is derived in report.
		return &rendercache.Artifact{Key: key, Compiled: true}, true
	}
	if ex.SourceOnly {
		return &rendercache.Artifact{Key: key, Compiled: true, OK: true}, true
	}

	scale := ex.Scale
	if scale <= 0 {
		scale = r.defaultScale
	}
	raster, err := r.rasterizer.Rasterize(ctx, doc, scale)
	if err != nil {
		return &rendercache.Artifact{Key: key, Compiled: true, ErrorText: fmt.Sprintf("rasterize: %v", err)}, false
	}
	return &rendercache.Artifact{
		Key:      key,
		Compiled: true,
		OK:       true,
		PNG:      raster.PNG,
		Width:    raster.Width,
		Height:   raster.Height,
	}, true
}

// report derives diagnostics from an artifact. Runs for cache hits too, so a
// page keeps its compile-failure diagnostics across warm-cache rebuilds.
func (r *Renderer) report(ex *content.ExampleBlock, a *rendercache.Artifact, timedOut bool, report *diag.Report) {
	loc := diag.Location{File: ex.File, Line: ex.Line}
	switch {
	case timedOut:
		r.countOutcome("timeout")
		report.Addf(diag.KindRenderFailure, loc, a.ErrorText)
	case ex.ExpectError && a.Compiled:
		r.countOutcome("render_error")
		report.Addf(diag.KindRenderFailure, loc, "example asserts a compile error but compiled successfully")
	case ex.ExpectError && !a.Compiled && a.ErrorText != "":
		// The asserted error occurred: the success case.
		r.countOutcome("ok")
	case !ex.ExpectError && !a.Compiled:
		r.countOutcome("compile_error")
		report.Addf(diag.KindCompileFailure, loc, fmt.Sprintf("example failed to compile: %s", a.ErrorText))
	case !ex.ExpectError && a.Compiled && !a.OK:
		r.countOutcome("render_error")
		report.Addf(diag.KindRenderFailure, loc, a.ErrorText)
	default:
		r.countOutcome("ok")
	}
}

func (r *Renderer) countOutcome(outcome string) {
	if r.metrics != nil {
		r.metrics.ExamplesRendered.WithLabelValues(outcome).Inc()
	}
}

func (r *Renderer) countCache(result string) {
	if r.metrics != nil {
		r.metrics.CacheEvents.WithLabelValues(result).Inc()
	}
}
