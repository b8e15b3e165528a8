package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var _ Sink = (*RenderSink)(nil)

// RenderSink formats summaries directly into an HTML digest page and an
// RSS feed, overwriting both documents on flush. Nothing is persisted;
// the documents are rebuilt wholesale on every run.
type RenderSink struct {
	outputDir string
	title     string
	siteURL   string
	mu        sync.Mutex
	entries   map[int64]Entry
}

func NewRenderSink(outputDir, title, siteURL string) *RenderSink {
	return &RenderSink{
		outputDir: outputDir,
		title:     title,
		siteURL:   siteURL,
		entries:   make(map[int64]Entry),
	}
}

// Deliver records the entry, replacing any earlier delivery for the same
// topic within this run
func (s *RenderSink) Deliver(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.TopicID] = entry
	return nil
}

// Flush writes index.html and rss.xml, newest activity first. The
// documents reflect only the current run's deliveries: entries are
// dropped after a successful flush, so topics that fall out of the
// latest listing disappear from the next rebuild.
func (s *RenderSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastPostAt.After(entries[j].LastPostAt)
	})

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	now := time.Now().UTC()

	htmlDoc := RenderHTML(s.title, now, entries)
	htmlPath := filepath.Join(s.outputDir, "index.html")
	if err := os.WriteFile(htmlPath, []byte(htmlDoc), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", htmlPath, err)
	}

	rssDoc := RenderRSS(s.title, s.siteURL, now, entries)
	rssPath := filepath.Join(s.outputDir, "rss.xml")
	if err := os.WriteFile(rssPath, []byte(rssDoc), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rssPath, err)
	}

	s.mu.Lock()
	s.entries = make(map[int64]Entry)
	s.mu.Unlock()

	slog.Info("Digest documents rendered", "dir", s.outputDir, "entries", len(entries))

	return nil
}
