// Package render turns example blocks into visual artifacts by driving the
// external Quill compiler and rasterizer, with content-addressed caching and
// per-render failure isolation.
package render

import (
	"context"
	"os"
	"strings"
)

// CompileError is a structured compile failure reported by the compiler
// collaborator. It is data, not a Go error: for expected-failure examples it
// is the success case.
type CompileError struct {
	Messages []string
}

func (e *CompileError) Text() string {
	return strings.Join(e.Messages, "\n")
}

// CompiledDoc is the opaque compiled-document handle passed from the compiler
// to the rasterizer. Exec-backed compilers set Path inside a scratch dir;
// in-process fakes carry only Source.
type CompiledDoc struct {
	Path   string
	Source string

	scratchDir string
}

// NewCompiledDoc builds a handle for a document compiled into scratchDir;
// Cleanup removes the directory once the rasterizer is done with it.
func NewCompiledDoc(path, source, scratchDir string) *CompiledDoc {
	return &CompiledDoc{Path: path, Source: source, scratchDir: scratchDir}
}

// Cleanup removes the compiler's scratch directory, if any.
func (d *CompiledDoc) Cleanup() {
	if d.scratchDir != "" {
		_ = os.RemoveAll(d.scratchDir)
	}
}

// CompileResult is the outcome of one compile: exactly one of Doc and Err is
// set.
type CompileResult struct {
	Doc *CompiledDoc
	Err *CompileError
}

// Compiler compiles a Quill snippet. The returned error is reserved for
// environmental failures (missing binary, scratch dir I/O); snippet problems
// come back as CompileResult.Err. Must be deterministic for identical input.
type Compiler interface {
	Compile(ctx context.Context, source string) (CompileResult, error)
}

// Raster is a rasterized document image.
type Raster struct {
	PNG    []byte
	Width  int
	Height int
}

// Rasterizer renders a compiled document to pixels at the given scale.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc *CompiledDoc, scale float64) (*Raster, error)
}
