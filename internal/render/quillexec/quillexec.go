// Package quillexec implements the render collaborator contracts by invoking
// the external quill binary.
package quillexec

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"git.home.luguber.info/inful/quilldocs/internal/logfields"
	"git.home.luguber.info/inful/quilldocs/internal/render"
)

const (
	sourceFile = "example.qll"
	docFile    = "example.qdoc"
	pngFile    = "example.png"
)

// Quill drives a quill binary for compilation and PNG export.
type Quill struct {
	bin string
}

// New returns a Quill collaborator using the given binary path or name.
func New(bin string) *Quill {
	return &Quill{bin: bin}
}

// compileDiagnostic is one line of the compiler's --diagnostics json output.
type compileDiagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
}

// Compile writes the snippet to a scratch directory and runs
// `quill compile --diagnostics json`. Exit status 1 with diagnostics is a
// structured compile error; anything else is environmental.
func (q *Quill) Compile(ctx context.Context, source string) (render.CompileResult, error) {
	dir, err := os.MkdirTemp("", "quilldocs-example-*")
	if err != nil {
		return render.CompileResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	keepDir := false
	defer func() {
		if !keepDir {
			_ = os.RemoveAll(dir)
		}
	}()

	srcPath := filepath.Join(dir, sourceFile)
	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return render.CompileResult{}, fmt.Errorf("write snippet: %w", err)
	}

	docPath := filepath.Join(dir, docFile)
	cmd := exec.CommandContext(ctx, q.bin, "compile", srcPath,
		"--output", docPath,
		"--diagnostics", "json")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		keepDir = true
		return render.CompileResult{Doc: render.NewCompiledDoc(docPath, source, dir)}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && exitErr.ExitCode() == 1 {
		msgs := parseDiagnostics(stderr.Bytes())
		if len(msgs) == 0 {
			msgs = []string{stderr.String()}
		}
		return render.CompileResult{Err: &render.CompileError{Messages: msgs}}, nil
	}
	return render.CompileResult{}, fmt.Errorf("run %s compile: %w: %s", q.bin, runErr, stderr.String())
}

// Rasterize exports a compiled document to PNG at the given scale.
func (q *Quill) Rasterize(ctx context.Context, doc *render.CompiledDoc, scale float64) (*render.Raster, error) {
	outPath := filepath.Join(filepath.Dir(doc.Path), pngFile)
	cmd := exec.CommandContext(ctx, q.bin, "export", doc.Path,
		"--format", "png",
		"--scale", fmt.Sprintf("%g", scale),
		"--output", outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s export: %w: %s", q.bin, err, stderr.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read exported png: %w", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode exported png: %w", err)
	}
	return &render.Raster{PNG: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// parseDiagnostics reads newline-delimited JSON diagnostics, keeping error
// severities. Unparseable lines are logged and skipped so a compiler upgrade
// cannot break error reporting.
func parseDiagnostics(raw []byte) []string {
	var msgs []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var d compileDiagnostic
		if err := json.Unmarshal(line, &d); err != nil {
			slog.Debug("Skipping unparseable compiler diagnostic", logfields.Error(err))
			continue
		}
		if d.Severity != "" && d.Severity != "error" {
			continue
		}
		if d.Line > 0 {
			msgs = append(msgs, fmt.Sprintf("%d: %s", d.Line, d.Message))
			continue
		}
		msgs = append(msgs, d.Message)
	}
	return msgs
}
