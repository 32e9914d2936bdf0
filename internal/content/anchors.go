package content

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlAnchors extracts anchor names from a raw HTML block: any element with
// an id attribute, plus legacy <a name="..."> anchors. The tokenizer is used
// directly since passthrough blocks are fragments, not documents.
func htmlAnchors(raw string) []string {
	var anchors []string
	tz := html.NewTokenizer(strings.NewReader(raw))
	for {
		tt := tz.Next()
		if tt == html.ErrorToken {
			return anchors
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := tz.Token()
		for _, attr := range tok.Attr {
			if attr.Key == "id" && attr.Val != "" {
				anchors = append(anchors, attr.Val)
			}
			if attr.Key == "name" && tok.Data == "a" && attr.Val != "" {
				anchors = append(anchors, attr.Val)
			}
		}
	}
}
