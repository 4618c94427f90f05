// Package sanitize reduces crawled HTML to an allow-listed structural subset.
package sanitize

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags is the set of structural tags that survive cleaning. Everything
// else is unwrapped: the tag disappears but its children are kept.
var allowedTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "ul": true, "ol": true, "li": true,
	"blockquote": true, "pre": true, "code": true,
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Sanitizer cleans raw HTML fragments into normalized text.
type Sanitizer struct {
	logger *zap.Logger
}

// New creates a Sanitizer.
func New(logger *zap.Logger) *Sanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sanitizer{logger: logger}
}

// Clean strips raw down to the allow-listed tags and collapses whitespace.
// It never fails: empty input and processing errors both yield "".
func (s *Sanitizer) Clean(raw string) (cleaned string) {
	if strings.TrimSpace(raw) == "" {
		s.logger.Warn("sanitizer received empty content")
		return ""
	}

	// A malformed document must not abort the surrounding conversion run.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sanitizer panic recovered", zap.Any("cause", r))
			cleaned = ""
		}
	}()

	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		s.logger.Error("parse html", zap.Error(err))
		return ""
	}

	body := findBody(root)
	if body == nil {
		return ""
	}
	out := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	rebuild(body, out)
	dropEmptyElements(out)

	var buf bytes.Buffer
	for c := out.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			s.logger.Error("render cleaned html", zap.Error(err))
			return ""
		}
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(buf.String(), " "))
}

// rebuild copies the kept parts of src's children under dst. Allowed elements
// are recreated without attributes, disallowed elements are unwrapped, and
// script/style subtrees, comments and doctypes are dropped.
func rebuild(src, dst *html.Node) {
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			dst.AppendChild(&html.Node{Type: html.TextNode, Data: c.Data})
		case html.ElementNode:
			name := strings.ToLower(c.Data)
			if name == "script" || name == "style" {
				continue
			}
			if allowedTags[name] {
				kept := &html.Node{Type: html.ElementNode, Data: name, DataAtom: c.DataAtom}
				dst.AppendChild(kept)
				rebuild(c, kept)
			} else {
				rebuild(c, dst)
			}
		default:
			// Comments, doctypes and the like are dropped entirely.
		}
	}
}

// dropEmptyElements removes kept tags whose recursive text content is blank.
func dropEmptyElements(root *html.Node) {
	doc := goquery.NewDocumentFromNode(root)
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if strings.TrimSpace(sel.Text()) == "" {
			sel.Remove()
		}
	})
}

// findBody locates the body element html.Parse synthesizes for any input.
func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}
