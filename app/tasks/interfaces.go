package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background digest processing.
// Example usage:
//
//	scheduler := tasks.NewScheduler(forumClient, llmClient, guard, preparer, resultSink, topicRepo, summaryRepo, cursorRepo, maxPosts)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueDigestRun()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueDigestRun() error
}
