package content

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the typed page metadata header of a guide source file.
type FrontMatter struct {
	Title       string         `yaml:"title"`
	Slug        string         `yaml:"slug"`
	Parent      string         `yaml:"parent"`
	Weight      int            `yaml:"weight"`
	Description string         `yaml:"description"`
	Extra       map[string]any `yaml:",inline"`
}

// ErrMalformedFrontMatter indicates a page whose metadata header is missing,
// unterminated, not valid YAML, or lacks a title. The page is skipped; other
// pages continue to load.
var ErrMalformedFrontMatter = errors.New("malformed front matter")

// splitFrontMatter separates the `---` delimited YAML header from the body
// and reports how many source lines the header consumed, so body line numbers
// can be mapped back to file line numbers.
func splitFrontMatter(src []byte) (header, body []byte, headerLines int, err error) {
	open := []byte("---\n")
	if !bytes.HasPrefix(src, open) {
		return nil, nil, 0, fmt.Errorf("%w: document does not start with ---", ErrMalformedFrontMatter)
	}

	rest := src[len(open):]
	closing := []byte("\n---\n")
	if bytes.HasPrefix(rest, []byte("---\n")) {
		// Empty header.
		return nil, rest[len("---\n"):], 2, nil
	}
	idx := bytes.Index(rest, closing)
	if idx < 0 {
		// A closing delimiter at EOF without a trailing newline still counts.
		if bytes.HasSuffix(rest, []byte("\n---")) {
			header = rest[:len(rest)-len("---")]
			return header, nil, 2 + bytes.Count(header, []byte("\n")), nil
		}
		return nil, nil, 0, fmt.Errorf("%w: missing closing delimiter", ErrMalformedFrontMatter)
	}

	header = rest[:idx+1]
	body = rest[idx+len(closing):]
	headerLines = 2 + bytes.Count(header, []byte("\n"))
	return header, body, headerLines, nil
}

// parseFrontMatter decodes and validates the YAML header.
func parseFrontMatter(header []byte) (FrontMatter, error) {
	var fm FrontMatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	if fm.Title == "" {
		return fm, fmt.Errorf("%w: missing required field title", ErrMalformedFrontMatter)
	}
	return fm, nil
}
