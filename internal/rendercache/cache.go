// Package rendercache stores rendered example artifacts keyed by content
// hash. Values are pure functions of their key, so a racing duplicate insert
// is wasteful but never incorrect; stores only need insert-if-absent
// semantics, not fine-grained locking.
package rendercache

import "context"

// Artifact is the outcome of rendering one example block: either a raster
// image or a recorded compile error (the success case for expected-failure
// examples).
type Artifact struct {
	Key string `json:"key"`
	// Compiled reports whether the snippet compiled; expected-failure
	// examples treat a recorded compile error as their success case.
	Compiled  bool   `json:"compiled"`
	OK        bool   `json:"ok"`
	PNG       []byte `json:"-"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	ErrorText string `json:"error_text,omitempty"`
}

// Cache is a content-addressed artifact store. Implementations must be safe
// for concurrent lookups and concurrent first-writes of the same key.
type Cache interface {
	Get(ctx context.Context, key string) (*Artifact, bool, error)
	Put(ctx context.Context, artifact *Artifact) error
	Close() error
}
