package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/quilldocs/internal/content"
)

// Key computes the content-addressed cache key for an example block: a
// sha256 over the normalized snippet text and the canonical render
// configuration. Identical (snippet, configuration) pairs always map to the
// same key, which is what makes cache sharing across runs safe.
func Key(ex *content.ExampleBlock, defaultScale float64) string {
	scale := ex.Scale
	if scale <= 0 {
		scale = defaultScale
	}

	h := sha256.New()
	h.Write([]byte(NormalizeSource(ex.Source)))
	h.Write([]byte{0})
	fmt.Fprintf(h, "scale=%g;expect-error=%t;source-only=%t", scale, ex.ExpectError, ex.SourceOnly)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeSource canonicalizes snippet text so formatting noise (CRLF,
// trailing spaces, missing final newline) does not defeat the cache.
func NormalizeSource(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	out = strings.TrimRight(out, "\n")
	return out + "\n"
}
