package digest

import (
	"fmt"

	"github.com/lysyi3m/forum-digest/app/database"
)

// Guard is the idempotency gate: a topic is only summarized when it has
// posts newer than its stored summary. Reruns over unchanged content are
// no-ops with respect to LLM calls.
type Guard struct {
	topicRepo   database.TopicRepository
	summaryRepo database.SummaryRepository
}

func NewGuard(topicRepo database.TopicRepository, summaryRepo database.SummaryRepository) *Guard {
	return &Guard{
		topicRepo:   topicRepo,
		summaryRepo: summaryRepo,
	}
}

// ShouldSummarize reports whether a topic needs a fresh summary.
// A topic with zero posts is never summarized. A topic without a stored
// summary always is. Otherwise the newest post timestamp must be strictly
// newer than the summary's updated_at.
func (g *Guard) ShouldSummarize(topicID int64) (bool, error) {
	maxCreated, err := g.topicRepo.GetMaxPostCreatedAt(topicID)
	if err != nil {
		return false, fmt.Errorf("failed to check post timestamps: %w", err)
	}
	if maxCreated == nil {
		return false, nil
	}

	updatedAt, err := g.summaryRepo.GetSummaryUpdatedAt(topicID)
	if err != nil {
		return false, fmt.Errorf("failed to check summary timestamp: %w", err)
	}
	if updatedAt == nil {
		return true, nil
	}

	return maxCreated.After(*updatedAt), nil
}
