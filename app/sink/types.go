package sink

import (
	"context"
	"time"

	"github.com/lysyi3m/forum-digest/app/llm"
)

// Entry is one deliverable summary with its topic identity. All identity
// fields (ids, title, author, URL, timestamps) come from forum data; the
// model only ever supplies the summary payload inside Result.
type Entry struct {
	TopicID    int64
	PostID     int64 // newest post the summary covers
	Author     string
	Title      string
	URL        string
	LastPostAt time.Time
	Result     llm.Result
}

// Sink consumes summarization results. Both implementations are
// idempotent with respect to repeated delivery of the same result:
// overwrite, never append. One is selected at startup from the profile.
type Sink interface {
	Deliver(ctx context.Context, entry Entry) error
	Flush(ctx context.Context) error
}
