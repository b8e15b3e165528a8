package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ TopicRepository = (*TopicRepo)(nil)

// TopicRepo handles database operations for topics and posts
type TopicRepo struct {
	db *DB
}

func NewTopicRepository(db *DB) *TopicRepo {
	return &TopicRepo{db: db}
}

func (r *TopicRepo) UpsertTopic(id int64, title string) error {
	_, err := r.db.Exec(`
		INSERT INTO topics (id, title)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			updated_at = now()
	`, id, title)
	if err != nil {
		return fmt.Errorf("failed to upsert topic: %w", err)
	}

	return nil
}

func (r *TopicRepo) UpsertPost(post Post) error {
	_, err := r.db.Exec(`
		INSERT INTO posts (id, topic_id, username, cooked, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			topic_id = EXCLUDED.topic_id,
			username = EXCLUDED.username,
			cooked = EXCLUDED.cooked,
			created_at = EXCLUDED.created_at
	`, post.ID, post.TopicID, post.Username, post.Cooked, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}

	return nil
}

// GetPostsAsc returns up to limit posts for a topic in ascending creation order
func (r *TopicRepo) GetPostsAsc(topicID int64, limit int) ([]Post, error) {
	rows, err := r.db.Query(`
		SELECT id, topic_id, COALESCE(username, ''), COALESCE(cooked, ''), created_at
		FROM posts
		WHERE topic_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, topicID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var post Post
		err := rows.Scan(&post.ID, &post.TopicID, &post.Username, &post.Cooked, &post.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

// GetMaxPostCreatedAt returns the newest post timestamp for a topic,
// or nil when the topic has no posts
func (r *TopicRepo) GetMaxPostCreatedAt(topicID int64) (*time.Time, error) {
	var maxCreated sql.NullTime
	err := r.db.QueryRow(`
		SELECT MAX(created_at) FROM posts WHERE topic_id = $1
	`, topicID).Scan(&maxCreated)
	if err != nil {
		return nil, fmt.Errorf("failed to get max post timestamp: %w", err)
	}

	if !maxCreated.Valid {
		return nil, nil
	}

	t := maxCreated.Time
	return &t, nil
}

func (r *TopicRepo) GetTopicCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM topics").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get topic count: %w", err)
	}
	return count, nil
}

func (r *TopicRepo) GetPostCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}
