package diag

import (
	"sort"
	"sync"
)

// Report accumulates diagnostics across all pipeline phases. It is safe for
// concurrent use; the parse and render phases add diagnostics from worker
// goroutines.
type Report struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// Add records a diagnostic.
func (r *Report) Add(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

// Addf records a diagnostic built from its parts.
func (r *Report) Addf(kind Kind, loc Location, message string) {
	r.Add(Diagnostic{Kind: kind, Location: loc, Message: message})
}

// All returns the diagnostics sorted by location, kind and message. Sorting
// makes the report deterministic regardless of worker scheduling, so repeated
// runs on identical input produce identical reports.
func (r *Report) All() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
	return out
}

// Len returns the number of recorded diagnostics.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.diags)
}

// CountByKind returns a histogram of diagnostics per kind.
func (r *Report) CountByKind() map[Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[Kind]int, len(r.diags))
	for _, d := range r.diags {
		counts[d.Kind]++
	}
	return counts
}

// HasFatal reports whether any recorded diagnostic fails the run.
func (r *Report) HasFatal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.diags {
		if d.Kind.Fatal() {
			return true
		}
	}
	return false
}

// HasStructural reports whether the page tree cannot be trusted.
func (r *Report) HasStructural() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.diags {
		if d.Kind.Structural() {
			return true
		}
	}
	return false
}
