// Package highlight tokenizes non-executable code blocks into styled spans
// for the documentation front end.
//
// Highlighting is purely presentational: any failure, including an unknown
// language tag, falls back to a single plain span and never produces a
// diagnostic.
package highlight

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// Span is one styled run of source text.
type Span struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Highlight tokenizes source with the lexer registered for lang. Adjacent
// tokens of the same type are coalesced to keep the span list compact.
func Highlight(source, lang string) []Span {
	if source == "" {
		return nil
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		return []Span{{Type: "text", Text: source}}
	}
	lexer = chroma.Coalesce(lexer)

	iter, err := lexer.Tokenise(nil, source)
	if err != nil {
		return []Span{{Type: "text", Text: source}}
	}

	var spans []Span
	for _, tok := range iter.Tokens() {
		typ := tok.Type.String()
		if n := len(spans); n > 0 && spans[n-1].Type == typ {
			spans[n-1].Text += tok.Value
			continue
		}
		spans = append(spans, Span{Type: typ, Text: tok.Value})
	}
	if len(spans) == 0 {
		return []Span{{Type: "text", Text: source}}
	}
	return spans
}
