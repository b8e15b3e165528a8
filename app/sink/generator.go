package sink

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/lysyi3m/forum-digest/app/llm"
)

// RenderHTML builds the digest page. Identity fields come from forum
// data only; the model output is confined to the summary text.
func RenderHTML(title string, now time.Time, entries []Entry) string {
	var buf bytes.Buffer

	buf.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
	buf.WriteString(html.EscapeString(title))
	buf.WriteString("</title></head><body>\n")
	buf.WriteString(fmt.Sprintf("<h1>%s for %s</h1><p><a href=\"rss.xml\">RSS Feed</a></p>\n",
		html.EscapeString(title), now.Format("2006-01-02")))

	for _, entry := range entries {
		buf.WriteString(fmt.Sprintf("<h2><a href=\"%s\">%s</a></h2>\n",
			html.EscapeString(entry.URL), html.EscapeString(entry.Title)))

		if text := llm.Display(entry.Result.Summary); text != "" {
			buf.WriteString(fmt.Sprintf("<p>%s</p>\n", html.EscapeString(text)))
		}
	}

	buf.WriteString("</body></html>\n")

	return buf.String()
}

// RenderRSS builds the digest feed in the same hand-assembled RSS 2.0
// shape the viewer endpoints use
func RenderRSS(title, siteURL string, now time.Time, entries []Entry) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", fmt.Sprintf("%s for %s", title, now.Format("2006-01-02")), 4)
	writeElement(&buf, "link", siteURL, 4)
	writeElement(&buf, "description", "Topics with recent activity", 4)
	writeElement(&buf, "lastBuildDate", now.Format(time.RFC1123Z), 4)

	for _, entry := range entries {
		writeItem(&buf, entry)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	return buf.String()
}

func writeItem(buf *bytes.Buffer, entry Entry) {
	buf.WriteString("    <item>\n")

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"true\">%s</guid>\n",
		html.EscapeString(entry.URL)))

	writeElement(buf, "title", entry.Title, 6)
	writeElement(buf, "link", entry.URL, 6)
	writeElement(buf, "description", llm.Display(entry.Result.Summary), 6)
	writeElement(buf, "pubDate", entry.LastPostAt.Format(time.RFC1123Z), 6)

	if entry.Author != "" {
		writeElement(buf, "author", entry.Author, 6)
	}

	buf.WriteString("    </item>\n")
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
