package rendercache

import (
	"context"
	"sync"
)

// Memory is the in-process cache layer. sync.Map gives atomic
// insert-if-absent; the first writer for a key wins and later identical
// writes are dropped.
type Memory struct {
	m sync.Map
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{}
}

// Get looks up an artifact.
func (c *Memory) Get(_ context.Context, key string) (*Artifact, bool, error) {
	v, ok := c.m.Load(key)
	if !ok {
		return nil, false, nil
	}
	return v.(*Artifact), true, nil
}

// Put stores an artifact unless the key is already present.
func (c *Memory) Put(_ context.Context, artifact *Artifact) error {
	c.m.LoadOrStore(artifact.Key, artifact)
	return nil
}

// Close is a no-op for the memory layer.
func (c *Memory) Close() error { return nil }
