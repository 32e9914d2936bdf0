// Package rendertest provides deterministic in-process compiler and
// rasterizer fakes for tests of the render pipeline.
package rendertest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync/atomic"

	"git.home.luguber.info/inful/quilldocs/internal/render"
)

// FakeCompiler compiles successfully unless the source contains the marker
// "error(", in which case it reports a structured compile error. Invocation
// counts allow tests to assert cache behavior.
type FakeCompiler struct {
	Calls atomic.Int64
	// Hang, when non-nil, is closed to release a deliberately hanging
	// compile; used for timeout tests.
	Hang chan struct{}
}

func (c *FakeCompiler) Compile(ctx context.Context, source string) (render.CompileResult, error) {
	c.Calls.Add(1)
	if c.Hang != nil {
		select {
		case <-c.Hang:
		case <-ctx.Done():
		}
	}
	if strings.Contains(source, "error(") {
		return render.CompileResult{Err: &render.CompileError{
			Messages: []string{"panicked with: intentional error"},
		}}, nil
	}
	return render.CompileResult{Doc: &render.CompiledDoc{Source: source}}, nil
}

// FakeRasterizer produces a deterministic pseudo-PNG derived from the
// compiled source and scale.
type FakeRasterizer struct {
	Calls atomic.Int64
	// Fail makes every rasterization return an error.
	Fail bool
}

func (r *FakeRasterizer) Rasterize(_ context.Context, doc *render.CompiledDoc, scale float64) (*render.Raster, error) {
	r.Calls.Add(1)
	if r.Fail {
		return nil, fmt.Errorf("rasterizer exploded")
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%g", doc.Source, scale)))
	return &render.Raster{
		PNG:    sum[:],
		Width:  int(100 * scale),
		Height: int(40 * scale),
	}, nil
}
