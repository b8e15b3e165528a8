package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/forum-digest/app/config"
	"github.com/lysyi3m/forum-digest/app/database"
	"github.com/lysyi3m/forum-digest/app/digest"
	"github.com/lysyi3m/forum-digest/app/forum"
	"github.com/lysyi3m/forum-digest/app/llm"
	"github.com/lysyi3m/forum-digest/app/sink"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

type fakeTopicRepo struct {
	database.TopicRepository
	mu        sync.Mutex
	topics    map[int64]string
	posts     map[int64][]database.Post
	upsertErr error
}

func newFakeTopicRepo() *fakeTopicRepo {
	return &fakeTopicRepo{
		topics: make(map[int64]string),
		posts:  make(map[int64][]database.Post),
	}
}

func (f *fakeTopicRepo) UpsertTopic(id int64, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.topics[id] = title
	return nil
}

func (f *fakeTopicRepo) UpsertPost(post database.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.posts[post.TopicID]
	for i, p := range existing {
		if p.ID == post.ID {
			existing[i] = post
			return nil
		}
	}
	f.posts[post.TopicID] = append(existing, post)
	return nil
}

func (f *fakeTopicRepo) GetPostsAsc(topicID int64, limit int) ([]database.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	posts := append([]database.Post(nil), f.posts[topicID]...)
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (f *fakeTopicRepo) GetMaxPostCreatedAt(topicID int64) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max *time.Time
	for _, p := range f.posts[topicID] {
		created := p.CreatedAt
		if max == nil || created.After(*max) {
			max = &created
		}
	}
	return max, nil
}

type fakeSummaryRepo struct {
	database.SummaryRepository
	mu        sync.Mutex
	summaries map[int64]database.Summary
}

func newFakeSummaryRepo() *fakeSummaryRepo {
	return &fakeSummaryRepo{summaries: make(map[int64]database.Summary)}
}

func (f *fakeSummaryRepo) GetSummaryUpdatedAt(topicID int64) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary, ok := f.summaries[topicID]
	if !ok {
		return nil, nil
	}
	updatedAt := summary.UpdatedAt
	return &updatedAt, nil
}

func (f *fakeSummaryRepo) UpsertSummary(summary database.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary.UpdatedAt = time.Now().UTC()
	f.summaries[summary.TopicID] = summary
	return nil
}

type fakeCursorRepo struct {
	database.CursorRepository
	mu      sync.Mutex
	cursors map[string]time.Time
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: make(map[string]time.Time)}
}

func (f *fakeCursorRepo) GetCursor(name string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lastRun, ok := f.cursors[name]
	if !ok {
		return nil, nil
	}
	return &lastRun, nil
}

func (f *fakeCursorRepo) SetCursor(name string, lastRunAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[name] = lastRunAt
	return nil
}

// forumFixture serves a single-topic forum over httptest, with posts that
// can be appended between digest runs
type forumFixture struct {
	mu    sync.Mutex
	posts []forum.Post
}

func (f *forumFixture) addPost(id int64, username, cooked string, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, forum.Post{
		ID:        id,
		TopicID:   1,
		Username:  username,
		Cooked:    cooked,
		CreatedAt: createdAt,
	})
}

func (f *forumFixture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.URL.Path {
		case "/latest.json":
			fmt.Fprint(w, `{"topic_list":{"topics":[{"id":1,"title":"First Topic"}]}}`)
		case "/t/1.json":
			payload := map[string]any{
				"id":    1,
				"title": "First Topic",
				"post_stream": map[string]any{
					"posts": f.posts,
				},
			}
			json.NewEncoder(w).Encode(payload)
		default:
			http.NotFound(w, r)
		}
	})
}

// inferenceFixture is a stub chat endpoint that counts real summarization
// calls separately from warmup calls
type inferenceFixture struct {
	mu          sync.Mutex
	chatCalls   int
	warmupCalls int
}

func (f *inferenceFixture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		prompt := req.Messages[len(req.Messages)-1].Content
		if strings.Contains(prompt, "Thread: warmup") {
			f.warmupCalls++
		} else {
			f.chatCalls++
		}
		f.mu.Unlock()

		fmt.Fprint(w, `{"model":"test-model","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"Headline\n- a fact"},"done":true}`)
	})
}

func (f *inferenceFixture) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls, f.warmupCalls
}

type pipeline struct {
	topicRepo   *fakeTopicRepo
	summaryRepo *fakeSummaryRepo
	cursorRepo  *fakeCursorRepo
	forumClient *forum.Client
	llmClient   *llm.Client
	guard       *digest.Guard
	preparer    *digest.Preparer
	sink        sink.Sink
}

func newPipeline(t *testing.T, forumURL, inferenceURL string) *pipeline {
	t.Helper()

	topicRepo := newFakeTopicRepo()
	summaryRepo := newFakeSummaryRepo()

	llmClient, err := llm.NewClient(inferenceURL, http.DefaultClient, "test-model",
		5*time.Second, "system prompt", config.FormatText, wordCounter{})
	if err != nil {
		t.Fatalf("Failed to create LLM client: %v", err)
	}

	return &pipeline{
		topicRepo:   topicRepo,
		summaryRepo: summaryRepo,
		cursorRepo:  newFakeCursorRepo(),
		forumClient: forum.NewClient(forumURL, http.DefaultClient, "test-agent", 0, 1),
		llmClient:   llmClient,
		guard:       digest.NewGuard(topicRepo, summaryRepo),
		preparer:    digest.NewPreparer(1800, 24),
		sink:        sink.NewPersistSink(summaryRepo),
	}
}

func (p *pipeline) runOnce(t *testing.T) error {
	t.Helper()
	task := NewRunDigestTask(p.forumClient, p.llmClient, p.guard, p.preparer,
		p.sink, p.topicRepo, p.cursorRepo, 200)
	task.Start()
	return task.Execute(context.Background())
}

func TestRunDigestRoundTripIdempotency(t *testing.T) {
	forumFx := &forumFixture{}
	forumFx.addPost(10, "alice", "<p>Hello world</p>", time.Now().Add(-time.Hour))

	forumServer := httptest.NewServer(forumFx.handler())
	defer forumServer.Close()

	inferenceFx := &inferenceFixture{}
	inferenceServer := httptest.NewServer(inferenceFx.handler())
	defer inferenceServer.Close()

	p := newPipeline(t, forumServer.URL, inferenceServer.URL)

	if err := p.runOnce(t); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	chatCalls, warmupCalls := inferenceFx.counts()
	if chatCalls != 1 {
		t.Fatalf("Expected 1 summarization call after first run, got %d", chatCalls)
	}
	if warmupCalls != 1 {
		t.Errorf("Expected 1 warmup call after first run, got %d", warmupCalls)
	}

	stored, ok := p.summaryRepo.summaries[1]
	if !ok {
		t.Fatal("Expected a stored summary for topic 1")
	}
	if stored.Summary != "Headline\n- a fact" {
		t.Errorf("Unexpected stored summary: %q", stored.Summary)
	}
	if stored.Model != "test-model" {
		t.Errorf("Unexpected stored model: %q", stored.Model)
	}

	cursor, err := p.cursorRepo.GetCursor(CursorDigestRun)
	if err != nil || cursor == nil {
		t.Fatalf("Expected run cursor to be set, got %v (%v)", cursor, err)
	}

	// Second run over unchanged content must not call the model again
	if err := p.runOnce(t); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	chatCalls, _ = inferenceFx.counts()
	if chatCalls != 1 {
		t.Errorf("Expected no new summarization calls on an unchanged topic, got %d total", chatCalls)
	}
}

func TestRunDigestNewPostTriggersResummarization(t *testing.T) {
	forumFx := &forumFixture{}
	forumFx.addPost(10, "alice", "<p>Hello world</p>", time.Now().Add(-time.Hour))

	forumServer := httptest.NewServer(forumFx.handler())
	defer forumServer.Close()

	inferenceFx := &inferenceFixture{}
	inferenceServer := httptest.NewServer(inferenceFx.handler())
	defer inferenceServer.Close()

	p := newPipeline(t, forumServer.URL, inferenceServer.URL)

	if err := p.runOnce(t); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// New activity after the stored summary makes the topic eligible again
	forumFx.addPost(11, "bob", "<p>A reply</p>", time.Now())

	if err := p.runOnce(t); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	chatCalls, _ := inferenceFx.counts()
	if chatCalls != 2 {
		t.Errorf("Expected 2 summarization calls after new activity, got %d", chatCalls)
	}
}

func TestRunDigestTopicFetchFailureSkipsTopic(t *testing.T) {
	forumServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest.json":
			fmt.Fprint(w, `{"topic_list":{"topics":[{"id":1,"title":"First Topic"}]}}`)
		default:
			http.Error(w, "upstream error", http.StatusInternalServerError)
		}
	}))
	defer forumServer.Close()

	inferenceFx := &inferenceFixture{}
	inferenceServer := httptest.NewServer(inferenceFx.handler())
	defer inferenceServer.Close()

	p := newPipeline(t, forumServer.URL, inferenceServer.URL)

	// A failing topic is skipped; the run itself still completes
	if err := p.runOnce(t); err != nil {
		t.Fatalf("Expected run to complete despite topic failure, got: %v", err)
	}

	chatCalls, _ := inferenceFx.counts()
	if chatCalls != 0 {
		t.Errorf("Expected no summarization calls, got %d", chatCalls)
	}

	cursor, err := p.cursorRepo.GetCursor(CursorDigestRun)
	if err != nil || cursor == nil {
		t.Errorf("Expected run cursor to be set after a completed run, got %v (%v)", cursor, err)
	}
}

func TestRunDigestStorageFailureAbortsRun(t *testing.T) {
	forumFx := &forumFixture{}
	forumFx.addPost(10, "alice", "<p>Hello world</p>", time.Now().Add(-time.Hour))

	forumServer := httptest.NewServer(forumFx.handler())
	defer forumServer.Close()

	inferenceFx := &inferenceFixture{}
	inferenceServer := httptest.NewServer(inferenceFx.handler())
	defer inferenceServer.Close()

	p := newPipeline(t, forumServer.URL, inferenceServer.URL)
	p.topicRepo.upsertErr = fmt.Errorf("connection refused")

	err := p.runOnce(t)
	if err == nil {
		t.Fatal("Expected run to abort on storage failure")
	}
	if !strings.Contains(err.Error(), "digest run aborted") {
		t.Errorf("Expected abort error, got: %v", err)
	}

	cursor, getErr := p.cursorRepo.GetCursor(CursorDigestRun)
	if getErr != nil {
		t.Fatalf("Unexpected cursor error: %v", getErr)
	}
	if cursor != nil {
		t.Error("An aborted run must not advance the run cursor")
	}
}

func TestTaskRetryAccounting(t *testing.T) {
	task := NewTask(TaskTypeRunDigest)

	if !task.CanRetry() {
		t.Error("Fresh task should be retryable")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Error("Task at max retries should not be retryable")
	}
	if task.GetRetryCount() != DefaultMaxRetries {
		t.Errorf("Expected retry count %d, got %d", DefaultMaxRetries, task.GetRetryCount())
	}
}
