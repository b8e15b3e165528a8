package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client fetches topics and posts from a Discourse-compatible JSON API.
// It performs no retries: any non-success status surfaces to the caller,
// which decides whether to abort the topic or the run.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	pageDelay  time.Duration
	maxPages   int
}

func NewClient(baseURL string, httpClient *http.Client, userAgent string, pageDelay time.Duration, maxPages int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		userAgent:  userAgent,
		pageDelay:  pageDelay,
		maxPages:   maxPages,
	}
}

// BaseURL returns the configured forum base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TopicURL builds the public URL for a topic, optionally anchored at a post
func (c *Client) TopicURL(topicID, postID int64) string {
	if postID > 0 {
		return fmt.Sprintf("%s/t/%d/%d", c.baseURL, topicID, postID)
	}
	return fmt.Sprintf("%s/t/%d", c.baseURL, topicID)
}

// FetchLatest returns the forum's latest topic listing
func (c *Client) FetchLatest(ctx context.Context) ([]TopicStub, error) {
	data, _, err := c.get(ctx, c.baseURL+"/latest.json")
	if err != nil {
		return nil, err
	}

	var latest latestResponse
	if err := json.Unmarshal(data, &latest); err != nil {
		return nil, fmt.Errorf("failed to parse latest topics: %w", err)
	}

	return latest.TopicList.Topics, nil
}

// FetchTopic returns a topic with its posts. The first page is always
// fetched; further pages are requested up to the configured maximum,
// stopping deterministically on a short page or a 404 response. A fixed
// delay is kept between page requests to honor upstream rate limits.
func (c *Client) FetchTopic(ctx context.Context, topicID int64) (*Topic, error) {
	data, _, err := c.get(ctx, fmt.Sprintf("%s/t/%d.json", c.baseURL, topicID))
	if err != nil {
		return nil, err
	}

	var topic Topic
	if err := json.Unmarshal(data, &topic); err != nil {
		return nil, fmt.Errorf("failed to parse topic %d: %w", topicID, err)
	}

	pageSize := len(topic.PostStream.Posts)
	if pageSize == 0 {
		return &topic, nil
	}

	for page := 2; page <= c.maxPages; page++ {
		if c.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pageDelay):
			}
		}

		data, status, err := c.get(ctx, fmt.Sprintf("%s/t/%d.json?page=%d", c.baseURL, topicID, page))
		if status == http.StatusNotFound {
			// Past the last page
			break
		}
		if err != nil {
			return nil, err
		}

		var next Topic
		if err := json.Unmarshal(data, &next); err != nil {
			return nil, fmt.Errorf("failed to parse topic %d page %d: %w", topicID, page, err)
		}

		if len(next.PostStream.Posts) == 0 {
			break
		}

		topic.PostStream.Posts = append(topic.PostStream.Posts, next.PostStream.Posts...)

		if len(next.PostStream.Posts) < pageSize {
			// Short page means no more pages
			break
		}
	}

	slog.Debug("Topic fetched", "topic_id", topic.ID, "posts", len(topic.PostStream.Posts))

	return &topic, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}
