package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/forum-digest/app/database"
	"github.com/lysyi3m/forum-digest/app/digest"
	"github.com/lysyi3m/forum-digest/app/forum"
	"github.com/lysyi3m/forum-digest/app/llm"
	"github.com/lysyi3m/forum-digest/app/sink"
)

// runAbortError marks failures that invalidate the whole run, such as
// storage or sink errors. Per-topic fetch and model failures skip the
// topic instead.
type runAbortError struct {
	err error
}

func (e *runAbortError) Error() string { return e.err.Error() }
func (e *runAbortError) Unwrap() error { return e.err }

func abortRun(err error) error { return &runAbortError{err: err} }

// RunDigestTask executes one full digest run: warm up the model, fetch
// the latest topic listing, process each topic strictly in order, flush
// the sink and record the run cursor.
type RunDigestTask struct {
	Task
	forumClient *forum.Client
	llmClient   *llm.Client
	guard       *digest.Guard
	preparer    *digest.Preparer
	resultSink  sink.Sink
	topicRepo   database.TopicRepository
	cursorRepo  database.CursorRepository
	maxPosts    int
}

func NewRunDigestTask(forumClient *forum.Client, llmClient *llm.Client, guard *digest.Guard,
	preparer *digest.Preparer, resultSink sink.Sink, topicRepo database.TopicRepository,
	cursorRepo database.CursorRepository, maxPosts int) *RunDigestTask {
	return &RunDigestTask{
		Task:        NewTask(TaskTypeRunDigest),
		forumClient: forumClient,
		llmClient:   llmClient,
		guard:       guard,
		preparer:    preparer,
		resultSink:  resultSink,
		topicRepo:   topicRepo,
		cursorRepo:  cursorRepo,
		maxPosts:    maxPosts,
	}
}

func (t *RunDigestTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	startedAt := time.Now().UTC()

	// Warmup forces model residency before real calls; a failure is not
	// fatal because the first topic call loads the model anyway
	if err := t.llmClient.Warmup(ctx); err != nil {
		slog.Warn("Model warmup failed, continuing", "error", err)
	}

	stubs, err := t.forumClient.FetchLatest(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch latest topics: %w", err)
	}

	summarized := 0
	skipped := 0

	for _, stub := range stubs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		didSummarize, err := t.processTopic(ctx, stub)
		if err != nil {
			var abortErr *runAbortError
			if errors.As(err, &abortErr) {
				return fmt.Errorf("digest run aborted at topic %d: %w", stub.ID, err)
			}

			slog.Warn("Topic skipped", "topic_id", stub.ID, "error", err)
			skipped++
			continue
		}

		if didSummarize {
			summarized++
		}
	}

	if err := t.resultSink.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush results: %w", err)
	}

	if err := t.cursorRepo.SetCursor(CursorDigestRun, startedAt); err != nil {
		return fmt.Errorf("failed to record run cursor: %w", err)
	}

	slog.Info("Task completed",
		"type", "RunDigest",
		"duration", t.GetDuration(),
		"topics", len(stubs),
		"summarized", summarized,
		"skipped", skipped)

	return nil
}

// processTopic stores a topic's posts and, when the topic has new activity,
// summarizes it and delivers the result. Returns whether a summary was
// produced.
func (t *RunDigestTask) processTopic(ctx context.Context, stub forum.TopicStub) (bool, error) {
	if err := t.topicRepo.UpsertTopic(stub.ID, stub.Title); err != nil {
		return false, abortRun(fmt.Errorf("failed to store topic: %w", err))
	}

	topic, err := t.forumClient.FetchTopic(ctx, stub.ID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch topic: %w", err)
	}

	for _, post := range topic.PostStream.Posts {
		err := t.topicRepo.UpsertPost(database.Post{
			ID:        post.ID,
			TopicID:   stub.ID,
			Username:  post.Username,
			Cooked:    post.Cooked,
			CreatedAt: post.CreatedAt,
		})
		if err != nil {
			return false, abortRun(fmt.Errorf("failed to store post %d: %w", post.ID, err))
		}
	}

	shouldRun, err := t.guard.ShouldSummarize(stub.ID)
	if err != nil {
		return false, abortRun(err)
	}
	if !shouldRun {
		slog.Debug("Topic unchanged, skipping summarization", "topic_id", stub.ID)
		return false, nil
	}

	posts, err := t.topicRepo.GetPostsAsc(stub.ID, t.maxPosts)
	if err != nil {
		return false, abortRun(fmt.Errorf("failed to load posts: %w", err))
	}
	if len(posts) == 0 {
		return false, nil
	}

	excerpt := t.preparer.Run(posts, time.Now().UTC())

	result, err := t.llmClient.Summarize(ctx, stub.ID, stub.Title, excerpt)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyExcerpt) {
			slog.Debug("Empty excerpt, nothing to summarize", "topic_id", stub.ID)
			return false, nil
		}
		return false, fmt.Errorf("summarization failed: %w", err)
	}

	newest := posts[len(posts)-1]

	entry := sink.Entry{
		TopicID:    stub.ID,
		PostID:     newest.ID,
		Author:     newest.Username,
		Title:      stub.Title,
		URL:        t.forumClient.TopicURL(stub.ID, newest.ID),
		LastPostAt: newest.CreatedAt,
		Result:     *result,
	}
	if err := t.resultSink.Deliver(ctx, entry); err != nil {
		return false, abortRun(fmt.Errorf("failed to deliver summary: %w", err))
	}

	slog.Info("Topic summarized",
		"topic_id", stub.ID,
		"posts", len(posts),
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens)

	return true, nil
}
