package forum

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest.json" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "Test Agent" {
			t.Errorf("Expected user agent 'Test Agent', got %q", r.Header.Get("User-Agent"))
		}
		fmt.Fprint(w, `{"topic_list":{"topics":[{"id":42,"title":"Example Topic"},{"id":43,"title":"Second Topic"}]}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), "Test Agent", 0, 1)

	topics, err := client.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(topics) != 2 {
		t.Fatalf("Expected 2 topics, got %d", len(topics))
	}
	if topics[0].ID != 42 {
		t.Errorf("Expected topic id 42, got %d", topics[0].ID)
	}
	if topics[0].Title != "Example Topic" {
		t.Errorf("Expected title 'Example Topic', got %q", topics[0].Title)
	}
}

func TestFetchLatestHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), "Test Agent", 0, 1)

	if _, err := client.FetchLatest(context.Background()); err == nil {
		t.Error("Expected error for HTTP 502")
	}
}

func TestFetchTopicSinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":42,"title":"Example Topic","post_stream":{"posts":[
			{"id":10,"topic_id":42,"username":"carol","cooked":"<p>Hello</p>","created_at":"2024-01-01T00:00:00Z"}
		]}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), "Test Agent", 0, 1)

	topic, err := client.FetchTopic(context.Background(), 42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if topic.ID != 42 {
		t.Errorf("Expected topic id 42, got %d", topic.ID)
	}
	if len(topic.PostStream.Posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(topic.PostStream.Posts))
	}

	post := topic.PostStream.Posts[0]
	if post.ID != 10 {
		t.Errorf("Expected post id 10, got %d", post.ID)
	}
	if post.Username != "carol" {
		t.Errorf("Expected username 'carol', got %q", post.Username)
	}
	if !post.CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected created_at: %v", post.CreatedAt)
	}
}

func TestFetchTopicPaginationStopsOnShortPage(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page := r.URL.Query().Get("page")
		switch page {
		case "":
			fmt.Fprint(w, `{"id":42,"title":"T","post_stream":{"posts":[
				{"id":1,"topic_id":42,"username":"a","cooked":"<p>1</p>","created_at":"2024-01-01T00:00:00Z"},
				{"id":2,"topic_id":42,"username":"b","cooked":"<p>2</p>","created_at":"2024-01-01T01:00:00Z"}
			]}}`)
		case "2":
			// Short page: fewer posts than the first page
			fmt.Fprint(w, `{"id":42,"title":"T","post_stream":{"posts":[
				{"id":3,"topic_id":42,"username":"c","cooked":"<p>3</p>","created_at":"2024-01-01T02:00:00Z"}
			]}}`)
		default:
			t.Errorf("Unexpected page request: %s", page)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), "Test Agent", 0, 10)

	topic, err := client.FetchTopic(context.Background(), 42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(topic.PostStream.Posts) != 3 {
		t.Errorf("Expected 3 posts total, got %d", len(topic.PostStream.Posts))
	}
	if requests != 2 {
		t.Errorf("Expected 2 requests (short page stops pagination), got %d", requests)
	}
}

func TestFetchTopicPaginationStopsOnNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			fmt.Fprint(w, `{"id":42,"title":"T","post_stream":{"posts":[
				{"id":1,"topic_id":42,"username":"a","cooked":"<p>1</p>","created_at":"2024-01-01T00:00:00Z"}
			]}}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), "Test Agent", 0, 5)

	topic, err := client.FetchTopic(context.Background(), 42)
	if err != nil {
		t.Fatalf("Expected no error when pagination hits 404, got: %v", err)
	}
	if len(topic.PostStream.Posts) != 1 {
		t.Errorf("Expected 1 post, got %d", len(topic.PostStream.Posts))
	}
}

func TestFetchTopicNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), "Test Agent", 0, 1)

	if _, err := client.FetchTopic(context.Background(), 42); err == nil {
		t.Error("Expected error when the topic itself is not found")
	}
}

func TestTopicURL(t *testing.T) {
	client := NewClient("https://forum.example.com/", nil, "Test Agent", 0, 1)

	if got := client.TopicURL(42, 10); got != "https://forum.example.com/t/42/10" {
		t.Errorf("Unexpected topic URL: %s", got)
	}
	if got := client.TopicURL(42, 0); got != "https://forum.example.com/t/42" {
		t.Errorf("Unexpected topic URL without post: %s", got)
	}
}
