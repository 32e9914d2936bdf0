package rendercache

import "context"

// Layered combines the in-memory layer with an optional persistent layer.
// Reads prefer memory and backfill it from the persistent store; writes go to
// both.
type Layered struct {
	mem        *Memory
	persistent Cache
}

// NewLayered builds the standard cache stack. persistent may be nil.
func NewLayered(persistent Cache) *Layered {
	return &Layered{mem: NewMemory(), persistent: persistent}
}

// Get checks memory first, then the persistent layer.
func (c *Layered) Get(ctx context.Context, key string) (*Artifact, bool, error) {
	if a, ok, _ := c.mem.Get(ctx, key); ok {
		return a, true, nil
	}
	if c.persistent == nil {
		return nil, false, nil
	}
	a, ok, err := c.persistent.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	_ = c.mem.Put(ctx, a)
	return a, true, nil
}

// Put writes through to every layer.
func (c *Layered) Put(ctx context.Context, artifact *Artifact) error {
	if err := c.mem.Put(ctx, artifact); err != nil {
		return err
	}
	if c.persistent == nil {
		return nil
	}
	return c.persistent.Put(ctx, artifact)
}

// Close closes the persistent layer if present.
func (c *Layered) Close() error {
	if c.persistent == nil {
		return nil
	}
	return c.persistent.Close()
}
