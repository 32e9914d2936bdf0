package rendercache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// SQLite is the persistent cache layer, shared across runs. Artifact payloads
// are zstd-compressed; raster output compresses poorly but error texts and
// repeated builds benefit, and the write path is off the hot loop anyway.
type SQLite struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewSQLite opens (or creates) the artifact cache at dbPath. Use ":memory:"
// for an ephemeral database in tests.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact cache: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		key TEXT PRIMARY KEY,
		compiled INTEGER NOT NULL DEFAULT 0,
		ok INTEGER NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		error_text TEXT NOT NULL DEFAULT '',
		payload BLOB,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize artifact cache schema: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &SQLite{db: db, encoder: encoder, decoder: decoder}, nil
}

// Get looks up an artifact by content hash.
func (c *SQLite) Get(ctx context.Context, key string) (*Artifact, bool, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT compiled, ok, width, height, error_text, payload FROM artifacts WHERE key = ?", key)

	var (
		compiled int
		ok       int
		a        = Artifact{Key: key}
		payload  []byte
	)
	err := row.Scan(&compiled, &ok, &a.Width, &a.Height, &a.ErrorText, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query artifact %s: %w", key, err)
	}

	a.Compiled = compiled != 0
	a.OK = ok != 0
	if len(payload) > 0 {
		a.PNG, err = c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, false, fmt.Errorf("decompress artifact %s: %w", key, err)
		}
	}
	return &a, true, nil
}

// Put stores an artifact. INSERT OR IGNORE keeps the first writer for a key;
// identical keys hold identical values, so dropping the loser is harmless.
func (c *SQLite) Put(ctx context.Context, artifact *Artifact) error {
	var payload []byte
	if len(artifact.PNG) > 0 {
		payload = c.encoder.EncodeAll(artifact.PNG, nil)
	}

	okVal, compiledVal := 0, 0
	if artifact.OK {
		okVal = 1
	}
	if artifact.Compiled {
		compiledVal = 1
	}
	_, err := c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO artifacts (key, compiled, ok, width, height, error_text, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		artifact.Key, compiledVal, okVal, artifact.Width, artifact.Height, artifact.ErrorText, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert artifact %s: %w", artifact.Key, err)
	}
	return nil
}

// Close releases the database and compressor resources.
func (c *SQLite) Close() error {
	c.decoder.Close()
	_ = c.encoder.Close()
	return c.db.Close()
}
