package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ SummaryRepository = (*SummaryRepo)(nil)

// SummaryRepo handles database operations for LLM topic summaries
type SummaryRepo struct {
	db *DB
}

func NewSummaryRepository(db *DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

func (r *SummaryRepo) GetSummary(topicID int64) (*SummaryWithTopic, error) {
	row := r.db.QueryRow(`
		SELECT s.topic_id, t.title, s.summary, s.model, s.prompt_hash,
		       s.input_tokens, s.output_tokens, s.cost_usd, s.updated_at
		FROM topic_summaries_llm s
		JOIN topics t ON t.id = s.topic_id
		WHERE s.topic_id = $1
	`, topicID)

	summary, err := scanSummaryWithTopic(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return summary, nil
}

// GetSummaryUpdatedAt returns when a topic was last summarized,
// or nil when no summary exists
func (r *SummaryRepo) GetSummaryUpdatedAt(topicID int64) (*time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRow(`
		SELECT updated_at FROM topic_summaries_llm WHERE topic_id = $1
	`, topicID).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary timestamp: %w", err)
	}

	return &updatedAt, nil
}

func (r *SummaryRepo) UpsertSummary(summary Summary) error {
	_, err := r.db.Exec(`
		INSERT INTO topic_summaries_llm (topic_id, summary, model, prompt_hash, input_tokens, output_tokens, cost_usd, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (topic_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			model = EXCLUDED.model,
			prompt_hash = EXCLUDED.prompt_hash,
			input_tokens = EXCLUDED.input_tokens,
			output_tokens = EXCLUDED.output_tokens,
			cost_usd = EXCLUDED.cost_usd,
			updated_at = now()
	`, summary.TopicID, summary.Summary, summary.Model, summary.PromptHash,
		summary.InputTokens, summary.OutputTokens, summary.CostUSD)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}

	return nil
}

func (r *SummaryRepo) GetLatestSummaries(limit int) ([]SummaryWithTopic, error) {
	rows, err := r.db.Query(`
		SELECT s.topic_id, t.title, s.summary, s.model, s.prompt_hash,
		       s.input_tokens, s.output_tokens, s.cost_usd, s.updated_at
		FROM topic_summaries_llm s
		JOIN topics t ON t.id = s.topic_id
		ORDER BY s.updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest summaries: %w", err)
	}
	defer rows.Close()

	return collectSummaries(rows)
}

func (r *SummaryRepo) SearchSummaries(query string, limit int) ([]SummaryWithTopic, error) {
	rows, err := r.db.Query(`
		SELECT s.topic_id, t.title, s.summary, s.model, s.prompt_hash,
		       s.input_tokens, s.output_tokens, s.cost_usd, s.updated_at
		FROM topic_summaries_llm s
		JOIN topics t ON t.id = s.topic_id
		WHERE s.summary ILIKE '%' || $1 || '%' OR t.title ILIKE '%' || $1 || '%'
		ORDER BY s.updated_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search summaries: %w", err)
	}
	defer rows.Close()

	return collectSummaries(rows)
}

// GetDigestEntries returns topics with post activity since the given time,
// newest activity first, with summaries attached where they exist
func (r *SummaryRepo) GetDigestEntries(since time.Time) ([]DigestEntry, error) {
	rows, err := r.db.Query(`
		SELECT t.id, t.title, COALESCE(s.summary, ''), MAX(p.created_at) AS last_post
		FROM topics t
		JOIN posts p ON t.id = p.topic_id
		LEFT JOIN topic_summaries_llm s ON t.id = s.topic_id
		WHERE p.created_at >= $1
		GROUP BY t.id, t.title, s.summary
		ORDER BY last_post DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get digest entries: %w", err)
	}
	defer rows.Close()

	var entries []DigestEntry
	for rows.Next() {
		var entry DigestEntry
		err := rows.Scan(&entry.TopicID, &entry.Title, &entry.Summary, &entry.LastPostAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan digest row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating digest rows: %w", err)
	}

	return entries, nil
}

func (r *SummaryRepo) GetSummaryCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM topic_summaries_llm").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get summary count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummaryWithTopic(row rowScanner) (*SummaryWithTopic, error) {
	var summary SummaryWithTopic
	var costUSD sql.NullFloat64

	err := row.Scan(&summary.TopicID, &summary.Title, &summary.Summary,
		&summary.Model, &summary.PromptHash, &summary.InputTokens,
		&summary.OutputTokens, &costUSD, &summary.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if costUSD.Valid {
		summary.CostUSD = &costUSD.Float64
	}

	return &summary, nil
}

func collectSummaries(rows *sql.Rows) ([]SummaryWithTopic, error) {
	var summaries []SummaryWithTopic
	for rows.Next() {
		summary, err := scanSummaryWithTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, *summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return summaries, nil
}
