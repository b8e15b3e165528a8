package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/forum-digest/app/cfg"
	"github.com/lysyi3m/forum-digest/app/database"
	"github.com/lysyi3m/forum-digest/app/digest"
	"github.com/lysyi3m/forum-digest/app/forum"
	"github.com/lysyi3m/forum-digest/app/llm"
	"github.com/lysyi3m/forum-digest/app/sink"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// dueCheckInterval is how often the scheduler checks whether the next
// digest run is due according to the run cursor.
const dueCheckInterval = time.Minute

// taskTimeout bounds one digest run end to end. Individual model calls
// carry their own much smaller budget.
const taskTimeout = 30 * time.Minute

// Scheduler runs digest tasks on a single worker. The inference server
// handles one request at a time, so topic processing must stay strictly
// sequential; a second worker would only queue behind the first.
type Scheduler struct {
	forumClient *forum.Client
	llmClient   *llm.Client
	guard       *digest.Guard
	preparer    *digest.Preparer
	resultSink  sink.Sink
	topicRepo   database.TopicRepository
	cursorRepo  database.CursorRepository
	maxPosts    int
	interval    time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	mu          sync.Mutex
	pending     bool
}

func NewScheduler(forumClient *forum.Client, llmClient *llm.Client, guard *digest.Guard,
	preparer *digest.Preparer, resultSink sink.Sink, topicRepo database.TopicRepository,
	cursorRepo database.CursorRepository, maxPosts int) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		forumClient: forumClient,
		llmClient:   llmClient,
		guard:       guard,
		preparer:    preparer,
		resultSink:  resultSink,
		topicRepo:   topicRepo,
		cursorRepo:  cursorRepo,
		maxPosts:    maxPosts,
		interval:    time.Duration(cfg.DigestInterval) * time.Second,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 10),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(dueCheckInterval)
		defer ticker.Stop()

		s.enqueueIfDue()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueIfDue()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

// EnqueueDigestRun queues a digest run immediately. At most one run is
// queued or executing at any time; a second request is rejected.
func (s *Scheduler) EnqueueDigestRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return fmt.Errorf("digest run already queued or running")
	}

	task := NewRunDigestTask(s.forumClient, s.llmClient, s.guard, s.preparer,
		s.resultSink, s.topicRepo, s.cursorRepo, s.maxPosts)

	select {
	case s.taskQueue <- task:
		s.pending = true
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueIfDue consults the run cursor and queues a run when the
// configured interval has elapsed since the last completed run. A missing
// cursor means the pipeline has never run.
func (s *Scheduler) enqueueIfDue() {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending {
		return
	}

	lastRun, err := s.cursorRepo.GetCursor(CursorDigestRun)
	if err != nil {
		slog.Warn("Failed to read run cursor", "error", err)
		return
	}

	if lastRun != nil && time.Since(*lastRun) < s.interval {
		slog.Debug("Digest run not due yet", "last_run_at", lastRun)
		return
	}

	if err := s.EnqueueDigestRun(); err != nil {
		slog.Warn("Failed to enqueue digest run", "error", err)
	}
}

// requeue puts a retried task back on the queue without going through
// EnqueueDigestRun, keeping the pending flag held across retries
func (s *Scheduler) requeue(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) clearPending() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.clearPending()
		return
	}

	slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.clearPending()
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	// The retry goroutine joins the wait group so Stop cannot close the
	// queue while a re-enqueue is still possible
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-time.After(retryDelay):
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		}

		if retryErr := s.requeue(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "error", retryErr)
			s.clearPending()
		}
	}()
}
