package sink

import (
	"context"
	"fmt"

	"github.com/lysyi3m/forum-digest/app/database"
)

var _ Sink = (*PersistSink)(nil)

// PersistSink upserts summaries into the database keyed by topic id
type PersistSink struct {
	summaryRepo database.SummaryRepository
}

func NewPersistSink(summaryRepo database.SummaryRepository) *PersistSink {
	return &PersistSink{summaryRepo: summaryRepo}
}

func (s *PersistSink) Deliver(ctx context.Context, entry Entry) error {
	err := s.summaryRepo.UpsertSummary(database.Summary{
		TopicID:      entry.TopicID,
		Summary:      entry.Result.Summary,
		Model:        entry.Result.Model,
		PromptHash:   entry.Result.PromptHash,
		InputTokens:  entry.Result.InputTokens,
		OutputTokens: entry.Result.OutputTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to persist summary for topic %d: %w", entry.TopicID, err)
	}

	return nil
}

func (s *PersistSink) Flush(ctx context.Context) error {
	return nil
}
