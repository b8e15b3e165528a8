package tasks

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type failingTask struct {
	Task
	executions int
}

func (t *failingTask) Execute(ctx context.Context) error {
	t.executions++
	return fmt.Errorf("execution failed")
}

func newBareScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		interval:  time.Hour,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 10),
	}
}

func TestStopWaitsForScheduledRetry(t *testing.T) {
	s := newBareScheduler()

	task := &failingTask{Task: NewTask(TaskTypeRunDigest)}
	task.Start()

	// Failing execution schedules a retry goroutine with a delay
	s.executeTask(task)
	if task.GetRetryCount() != 1 {
		t.Fatalf("Expected retry count 1 after failed execution, got %d", task.GetRetryCount())
	}

	// Stop must wait out the retry goroutine before closing the queue;
	// a send on the closed channel would panic here
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return; retry goroutine not released on shutdown")
	}
}

func TestRetryRequeuesTask(t *testing.T) {
	s := newBareScheduler()
	defer s.cancel()

	task := &failingTask{Task: NewTask(TaskTypeRunDigest)}
	task.Start()

	s.executeTask(task)

	// First retry delay is one second; the task must reappear on the queue
	select {
	case requeued := <-s.taskQueue:
		if requeued.GetID() != task.GetID() {
			t.Errorf("Expected the same task to be requeued, got id %s", requeued.GetID())
		}
		if requeued.GetRetryCount() != 1 {
			t.Errorf("Expected retry count 1, got %d", requeued.GetRetryCount())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retried task was not requeued")
	}

	s.wg.Wait()
}
