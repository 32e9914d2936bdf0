package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func joined(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

func TestHighlight_KnownLanguage_ProducesTypedSpans(t *testing.T) {
	src := "package main\n\nfunc main() {}\n"
	spans := Highlight(src, "go")
	require.NotEmpty(t, spans)
	require.Equal(t, src, joined(spans))

	types := make(map[string]bool)
	for _, s := range spans {
		types[s.Type] = true
	}
	require.Greater(t, len(types), 1, "expected more than one token type for Go source")
}

func TestHighlight_UnknownLanguage_FallsBackToPlain(t *testing.T) {
	src := "#set page(width: 10cm)\n"
	spans := Highlight(src, "definitely-not-a-language")
	require.Equal(t, []Span{{Type: "text", Text: src}}, spans)
}

func TestHighlight_EmptySource_NoSpans(t *testing.T) {
	require.Nil(t, Highlight("", "go"))
}

func TestHighlight_Lossless(t *testing.T) {
	src := "SELECT *\nFROM pages WHERE route = '/guides/';\n"
	spans := Highlight(src, "sql")
	require.Equal(t, src, joined(spans))
}
