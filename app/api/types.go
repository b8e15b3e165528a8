package api

import (
	"time"

	"github.com/lysyi3m/forum-digest/app/database"
	"github.com/lysyi3m/forum-digest/app/forum"
	"github.com/lysyi3m/forum-digest/app/tasks"
)

type Handler struct {
	topicRepo   database.TopicRepository
	summaryRepo database.SummaryRepository
	forumClient *forum.Client
	scheduler   tasks.TaskSchedulerInterface
	digestTitle string
	window      time.Duration
	version     string
	siteURL     string
}
