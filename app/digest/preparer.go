package digest

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"

	"github.com/lysyi3m/forum-digest/app/database"
)

// blockElements get a trailing space after their content so that adjacent
// blocks do not run together once tags are removed.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"canvas": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "noscript": true, "ol": true, "output": true, "p": true,
	"pre": true, "section": true, "table": true, "tfoot": true, "ul": true,
	"video": true, "tr": true, "td": true, "th": true, "br": true,
}

// Preparer converts raw post markup into a normalized, length-bounded
// excerpt with citation markers. Every step is deterministic: identical
// post sets always produce byte-identical excerpts.
type Preparer struct {
	maxChars int
	window   time.Duration // 0 = whole thread
}

func NewPreparer(maxChars int, windowHours int) *Preparer {
	return &Preparer{
		maxChars: maxChars,
		window:   time.Duration(windowHours) * time.Hour,
	}
}

// Run builds the excerpt from posts in ascending creation order. Posts
// outside the trailing window (when configured) and posts whose body
// normalizes to nothing are skipped. The result is truncated to the
// character budget without ever splitting a multi-byte character.
func (p *Preparer) Run(posts []database.Post, now time.Time) string {
	var lines []string
	for _, post := range posts {
		if p.window > 0 && post.CreatedAt.Before(now.Add(-p.window)) {
			continue
		}

		text := StripTags(post.Cooked)
		if text == "" {
			continue
		}

		lines = append(lines, fmt.Sprintf("[post:%d @ %s] %s",
			post.ID, post.CreatedAt.UTC().Format(time.RFC3339), text))
	}

	return strings.TrimRight(p.chunk(lines), "\n")
}

// chunk concatenates lines up to the character budget, counting in runes.
// When a line does not fit, its rune prefix fills the remaining budget.
func (p *Preparer) chunk(lines []string) string {
	var cur strings.Builder
	curChars := 0
	for _, line := range lines {
		lineChars := len([]rune(line))
		if curChars+lineChars+1 > p.maxChars {
			remain := p.maxChars - curChars
			if remain > 0 {
				cur.WriteString(takePrefixRunes(line, remain))
			}
			break
		}
		if line != "" {
			cur.WriteString(line)
			cur.WriteByte('\n')
			curChars += lineChars + 1
		}
	}
	return cur.String()
}

// StripTags removes markup from a post body: script and style payloads are
// dropped entirely, entities are decoded, block elements contribute a
// space, and the remaining whitespace is squeezed.
func StripTags(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		// html.Parse only fails on reader errors; a string reader cannot
		return SqueezeWhitespace(strings.TrimSpace(markup))
	}

	var out strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			out.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			out.WriteByte(' ')
		}
	}
	walk(doc)

	return SqueezeWhitespace(strings.TrimSpace(out.String()))
}

// SqueezeWhitespace collapses every run of whitespace to a single space
func SqueezeWhitespace(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	prevSpace := false
	for _, ch := range s {
		if unicode.IsSpace(ch) {
			if !prevSpace {
				out.WriteByte(' ')
				prevSpace = true
			}
		} else {
			out.WriteRune(ch)
			prevSpace = false
		}
	}
	return out.String()
}

// takePrefixRunes returns at most maxRunes leading runes of s
func takePrefixRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
