package database

import (
	"time"
)

type Topic struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Post struct {
	ID        int64
	TopicID   int64
	Username  string
	Cooked    string // Raw forum markup as delivered by the API
	CreatedAt time.Time
}

type Summary struct {
	TopicID      int64
	Summary      string
	Model        string
	PromptHash   string
	InputTokens  int
	OutputTokens int
	CostUSD      *float64 // NULL for local models
	UpdatedAt    time.Time
}

// SummaryWithTopic joins a summary with its topic metadata for viewer queries
type SummaryWithTopic struct {
	TopicID      int64
	Title        string
	Summary      string
	Model        string
	PromptHash   string
	InputTokens  int
	OutputTokens int
	CostUSD      *float64
	UpdatedAt    time.Time
}

// DigestEntry is one row of the recent-activity digest: a topic with
// activity inside the window, with its summary when one exists.
type DigestEntry struct {
	TopicID    int64
	Title      string
	Summary    string // empty when no summary exists yet
	LastPostAt time.Time
}
