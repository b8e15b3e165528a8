package database

import (
	"time"
)

type TopicRepository interface {
	UpsertTopic(id int64, title string) error
	UpsertPost(post Post) error

	GetPostsAsc(topicID int64, limit int) ([]Post, error)
	GetMaxPostCreatedAt(topicID int64) (*time.Time, error)

	GetTopicCount() (int, error)
	GetPostCount() (int, error)
}

type SummaryRepository interface {
	GetSummary(topicID int64) (*SummaryWithTopic, error)
	GetSummaryUpdatedAt(topicID int64) (*time.Time, error)
	UpsertSummary(summary Summary) error

	GetLatestSummaries(limit int) ([]SummaryWithTopic, error)
	SearchSummaries(query string, limit int) ([]SummaryWithTopic, error)
	GetDigestEntries(since time.Time) ([]DigestEntry, error)
	GetSummaryCount() (int, error)
}

type CursorRepository interface {
	GetCursor(name string) (*time.Time, error)
	SetCursor(name string, lastRunAt time.Time) error
}
