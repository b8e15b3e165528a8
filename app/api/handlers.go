package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/forum-digest/app/config"
	"github.com/lysyi3m/forum-digest/app/database"
	"github.com/lysyi3m/forum-digest/app/forum"
	"github.com/lysyi3m/forum-digest/app/llm"
	"github.com/lysyi3m/forum-digest/app/sink"
	"github.com/lysyi3m/forum-digest/app/tasks"
)

const (
	defaultLatestLimit = 10
	defaultSearchLimit = 20
	maxLimit           = 100
)

// defaultDigestWindow bounds the digest viewer's activity window. The
// excerpt window may be 0 (whole thread), but the viewer always needs a
// finite recency cutoff.
const defaultDigestWindow = 24 * time.Hour

func NewHandler(topicRepo database.TopicRepository, summaryRepo database.SummaryRepository,
	forumClient *forum.Client, scheduler tasks.TaskSchedulerInterface,
	profile *config.Profile, version, siteURL string) *Handler {
	window := time.Duration(profile.Pipeline.WindowHours) * time.Hour
	if window <= 0 {
		window = defaultDigestWindow
	}

	return &Handler{
		topicRepo:   topicRepo,
		summaryRepo: summaryRepo,
		forumClient: forumClient,
		scheduler:   scheduler,
		digestTitle: profile.Render.Title,
		window:      window,
		version:     version,
		siteURL:     siteURL,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if topicCount, err := h.topicRepo.GetTopicCount(); err == nil {
		health["topics"] = topicCount
	}
	if postCount, err := h.topicRepo.GetPostCount(); err == nil {
		health["posts"] = postCount
	}
	if summaryCount, err := h.summaryRepo.GetSummaryCount(); err == nil {
		health["summaries"] = summaryCount
	}

	c.JSON(http.StatusOK, health)
}

// GetDigest renders topics with activity inside the digest window as an
// HTML page, assembled on the fly from stored summaries
func (h *Handler) GetDigest(c *gin.Context) {
	now := time.Now().UTC()

	entries, err := h.summaryRepo.GetDigestEntries(now.Add(-h.window))
	if err != nil {
		slog.Error("Database error", "operation", "get_digest_entries", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, sink.RenderHTML(h.digestTitle, now, h.toSinkEntries(entries)))
}

// GetDigestFeed renders the same digest window as an RSS 2.0 feed
func (h *Handler) GetDigestFeed(c *gin.Context) {
	now := time.Now().UTC()

	entries, err := h.summaryRepo.GetDigestEntries(now.Add(-h.window))
	if err != nil {
		slog.Error("Database error", "operation", "get_digest_entries", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Digest-Items", strconv.Itoa(len(entries)))
	c.String(http.StatusOK, sink.RenderRSS(h.digestTitle, h.siteURL, now, h.toSinkEntries(entries)))
}

func (h *Handler) toSinkEntries(entries []database.DigestEntry) []sink.Entry {
	out := make([]sink.Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, sink.Entry{
			TopicID:    entry.TopicID,
			Title:      entry.Title,
			URL:        h.forumClient.TopicURL(entry.TopicID, 0),
			LastPostAt: entry.LastPostAt,
			Result:     llm.Result{Summary: entry.Summary},
		})
	}
	return out
}

func (h *Handler) ListSummaries(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), defaultLatestLimit)

	summaries, err := h.summaryRepo.GetLatestSummaries(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_latest_summaries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"summaries": h.toSummaryInfos(summaries),
		"total":     len(summaries),
	})
}

func (h *Handler) SearchSummaries(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query parameter 'q'"})
		return
	}

	limit := parseLimit(c.Query("limit"), defaultSearchLimit)

	summaries, err := h.summaryRepo.SearchSummaries(query, limit)
	if err != nil {
		slog.Error("Database error", "operation", "search_summaries", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"query":     query,
		"summaries": h.toSummaryInfos(summaries),
		"total":     len(summaries),
	})
}

func (h *Handler) GetSummaryByID(c *gin.Context) {
	topicID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid topic id"})
		return
	}

	summary, err := h.summaryRepo.GetSummary(topicID)
	if err != nil {
		slog.Error("Database error", "operation", "get_summary", "topic_id", topicID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Summary not found"})
		return
	}

	c.JSON(http.StatusOK, h.toSummaryInfo(*summary))
}

// APIRunDigest queues a digest run immediately instead of waiting for the
// next scheduled one
func (h *Handler) APIRunDigest(c *gin.Context) {
	if err := h.scheduler.EnqueueDigestRun(); err != nil {
		slog.Error("Error enqueueing digest run", "error", err)
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Failed to enqueue digest run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Digest run enqueued",
	})
}

func (h *Handler) toSummaryInfos(summaries []database.SummaryWithTopic) []map[string]interface{} {
	infos := make([]map[string]interface{}, 0, len(summaries))
	for _, summary := range summaries {
		infos = append(infos, h.toSummaryInfo(summary))
	}
	return infos
}

func (h *Handler) toSummaryInfo(summary database.SummaryWithTopic) map[string]interface{} {
	info := map[string]interface{}{
		"topic_id":      summary.TopicID,
		"title":         summary.Title,
		"url":           h.forumClient.TopicURL(summary.TopicID, 0),
		"summary":       llm.Display(summary.Summary),
		"model":         summary.Model,
		"prompt_hash":   summary.PromptHash,
		"input_tokens":  summary.InputTokens,
		"output_tokens": summary.OutputTokens,
		"updated_at":    summary.UpdatedAt,
	}
	if summary.CostUSD != nil {
		info["cost_usd"] = *summary.CostUSD
	}
	return info
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return fallback
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
