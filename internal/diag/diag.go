// Package diag defines the diagnostic taxonomy shared by every pipeline phase
// and the concurrent-safe report that accumulates them for the final run summary.
package diag

import "fmt"

// Kind classifies a diagnostic for reporting and exit-code policy.
type Kind string

const (
	KindMalformedFrontMatter Kind = "malformed_front_matter"
	KindSchemaError          Kind = "schema_error"
	KindDuplicateID          Kind = "duplicate_id"
	KindDuplicateRoute       Kind = "duplicate_route"
	KindBrokenReference      Kind = "broken_reference"
	KindCompileFailure       Kind = "compile_failure"
	KindRenderFailure        Kind = "render_failure"
)

// Fatal reports whether a diagnostic of this kind makes the whole run fail
// (non-zero exit). Per-source shape errors and render failures are recorded
// but do not fail the run on their own.
func (k Kind) Fatal() bool {
	switch k {
	case KindBrokenReference, KindCompileFailure, KindDuplicateID, KindDuplicateRoute:
		return true
	default:
		return false
	}
}

// Structural reports whether a diagnostic of this kind invalidates the page
// tree itself. Structural failures suppress tree emission; everything else
// still produces a full tree alongside the report.
func (k Kind) Structural() bool {
	return k == KindDuplicateID || k == KindDuplicateRoute
}

// Location identifies where a diagnostic originated. File is a source path or
// a page route; Line is 1-based and 0 when unknown.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line,omitempty"`
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// Diagnostic is a single recorded problem. Diagnostics are values; they are
// never used to abort a phase mid-flight.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.Location, d.Message)
}
