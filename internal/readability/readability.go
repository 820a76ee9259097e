// Package readability extracts plain text from HTML content so feed articles
// can be sent as a readable text body.
package readability

import (
	"strings"

	"golang.org/x/net/html"
)

// blockElements get a paragraph break around their text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "blockquote": true,
	"pre": true, "tr": true, "article": true, "section": true,
}

// skippedElements contribute no readable text
var skippedElements = map[string]bool{
	"script": true, "style": true, "head": true, "noscript": true,
	"iframe": true, "object": true, "template": true,
}

// Text returns the readable text of an HTML fragment: tags stripped, block
// boundaries collapsed to blank lines, inline whitespace normalized. Input
// that is already plain text comes back unchanged apart from whitespace
// normalization.
func Text(content string) string {
	node, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content)
	}

	var b strings.Builder
	walk(node, &b)

	return normalize(b.String())
}

func walk(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && skippedElements[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}
	if block {
		b.WriteString("\n")
	}
}

// normalize collapses runs of spaces within lines and runs of blank lines
// between paragraphs.
func normalize(s string) string {
	var paragraphs []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
