package digest

import (
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/forum-digest/app/database"
)

type fakeTopicRepo struct {
	database.TopicRepository
	maxCreated *time.Time
	err        error
}

func (f *fakeTopicRepo) GetMaxPostCreatedAt(topicID int64) (*time.Time, error) {
	return f.maxCreated, f.err
}

type fakeSummaryRepo struct {
	database.SummaryRepository
	updatedAt *time.Time
	err       error
}

func (f *fakeSummaryRepo) GetSummaryUpdatedAt(topicID int64) (*time.Time, error) {
	return f.updatedAt, f.err
}

func TestShouldSummarizeNoPostsReturnsFalse(t *testing.T) {
	guard := NewGuard(&fakeTopicRepo{}, &fakeSummaryRepo{})

	should, err := guard.ShouldSummarize(42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if should {
		t.Error("Expected false for a topic with zero posts")
	}
}

func TestShouldSummarizeNoSummaryReturnsTrue(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	guard := NewGuard(&fakeTopicRepo{maxCreated: &created}, &fakeSummaryRepo{})

	should, err := guard.ShouldSummarize(42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !should {
		t.Error("Expected true for a topic without a stored summary")
	}
}

func TestShouldSummarizeNewerPostsReturnTrue(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	guard := NewGuard(&fakeTopicRepo{maxCreated: &created}, &fakeSummaryRepo{updatedAt: &updated})

	should, err := guard.ShouldSummarize(42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !should {
		t.Error("Expected true when the newest post is newer than the summary")
	}
}

func TestShouldSummarizeUpToDateReturnsFalse(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	guard := NewGuard(&fakeTopicRepo{maxCreated: &created}, &fakeSummaryRepo{updatedAt: &updated})

	should, err := guard.ShouldSummarize(42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if should {
		t.Error("Expected false when the summary is newer than every post")
	}
}

func TestShouldSummarizeEqualTimestampsReturnFalse(t *testing.T) {
	// Strictly-newer comparison: equality means no new content
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	guard := NewGuard(&fakeTopicRepo{maxCreated: &ts}, &fakeSummaryRepo{updatedAt: &ts})

	should, err := guard.ShouldSummarize(42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if should {
		t.Error("Expected false for equal timestamps")
	}
}

func TestShouldSummarizePropagatesRepositoryErrors(t *testing.T) {
	repoErr := errors.New("connection lost")
	guard := NewGuard(&fakeTopicRepo{err: repoErr}, &fakeSummaryRepo{})

	if _, err := guard.ShouldSummarize(42); !errors.Is(err, repoErr) {
		t.Errorf("Expected wrapped repository error, got: %v", err)
	}
}
