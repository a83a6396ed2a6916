package html

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	css "github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements whose content a reader never sees
var hiddenSelector = css.MustCompile("head, title, script, style, template, noscript")

// Block-level elements are separated from their surroundings by a blank line
var blockTags = map[atom.Atom]struct{}{
	atom.Address:    {},
	atom.Article:    {},
	atom.Aside:      {},
	atom.Blockquote: {},
	atom.Div:        {},
	atom.Dl:         {},
	atom.Footer:     {},
	atom.H1:         {},
	atom.H2:         {},
	atom.H3:         {},
	atom.H4:         {},
	atom.H5:         {},
	atom.H6:         {},
	atom.Header:     {},
	atom.Hr:         {},
	atom.Ol:         {},
	atom.P:          {},
	atom.Pre:        {},
	atom.Section:    {},
	atom.Table:      {},
	atom.Ul:         {},
}

// Elements that start a new line but not a new paragraph
var lineTags = map[atom.Atom]struct{}{
	atom.Dd: {},
	atom.Dt: {},
	atom.Tr: {},
}

var spaceRe = regexp.MustCompile(`[ \t\r\n\f]+`)

// ToText renders an HTML document or fragment as plain text. Headings,
// paragraphs and other blocks become paragraphs separated by blank lines, list
// items become "- " lines and links are followed by their URL in parentheses.
// It returns an error if body is empty or contains no visible text.
func ToText(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", errors.New("can't convert an empty HTML body")
	}

	n, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("can't parse the HTML body: %v", err)
	}

	w := &textWriter{}
	w.walk(n)
	w.paragraph()

	// Drop the trailing paragraph separator
	for len(w.lines) > 0 && w.lines[len(w.lines)-1] == "" {
		w.lines = w.lines[:len(w.lines)-1]
	}
	if len(w.lines) == 0 {
		return "", errors.New("the HTML body has no visible text")
	}

	return strings.Join(w.lines, "\n"), nil
}

// textWriter accumulates lines of text while walking an html.Node tree. An
// empty string in lines is a blank line between paragraphs.
type textWriter struct {
	lines []string
	cur   strings.Builder
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		if hiddenSelector.Match(n) {
			return
		}
	}

	if n.Type != html.ElementNode {
		w.walkChildren(n)
		return
	}

	_, block := blockTags[n.DataAtom]
	_, line := lineTags[n.DataAtom]

	switch {
	case n.DataAtom == atom.Br:
		w.newline()
	case n.DataAtom == atom.Li:
		w.newline()
		w.text("- ")
		w.walkChildren(n)
		w.newline()
	case n.DataAtom == atom.A:
		w.walkChildren(n)
		href := strings.TrimSpace(attr(n, "href"))
		if href != "" && !strings.HasPrefix(href, "#") && href != nodeText(n) {
			w.text(" (" + href + ")")
		}
	case block:
		w.paragraph()
		w.walkChildren(n)
		w.paragraph()
	case line:
		w.newline()
		w.walkChildren(n)
		w.newline()
	default:
		w.walkChildren(n)
	}
}

func (w *textWriter) walkChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// text appends s to the current line, collapsing whitespace the way a
// browser would.
func (w *textWriter) text(s string) {
	s = spaceRe.ReplaceAllString(s, " ")
	if w.cur.Len() == 0 || strings.HasSuffix(w.cur.String(), " ") {
		s = strings.TrimLeft(s, " ")
	}
	w.cur.WriteString(s)
}

// newline ends the current line if it has any text.
func (w *textWriter) newline() {
	l := strings.TrimSpace(w.cur.String())
	w.cur.Reset()
	if l != "" {
		w.lines = append(w.lines, l)
	}
}

// paragraph ends the current line and leaves one blank line after it.
func (w *textWriter) paragraph() {
	w.newline()
	if len(w.lines) > 0 && w.lines[len(w.lines)-1] != "" {
		w.lines = append(w.lines, "")
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText returns the whitespace-normalized text of n and its children.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			collect(k)
		}
	}
	collect(n)
	return strings.TrimSpace(spaceRe.ReplaceAllString(b.String(), " "))
}
