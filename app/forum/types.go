package forum

import (
	"time"
)

// TopicStub is one entry of the forum's latest-topics listing
type TopicStub struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type latestResponse struct {
	TopicList topicList `json:"topic_list"`
}

type topicList struct {
	Topics []TopicStub `json:"topics"`
}

// Topic is a full topic with its post stream
type Topic struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	PostStream postStream `json:"post_stream"`
}

type postStream struct {
	Posts []Post `json:"posts"`
}

// Post is one message within a topic. Cooked is the rendered HTML body
// as delivered by the forum.
type Post struct {
	ID        int64     `json:"id"`
	TopicID   int64     `json:"topic_id"`
	Username  string    `json:"username"`
	Cooked    string    `json:"cooked"`
	CreatedAt time.Time `json:"created_at"`
}
