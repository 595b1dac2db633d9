package entity

import "time"

// Annotation is one user's judgment on one task. Unique per (discussion, user, task).
type Annotation struct {
	ID           int64     `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	UserID       string    `json:"user_id"`
	TaskID       int       `json:"task_id"`
	Data         TaskData  `json:"data"`
	Timestamp    time.Time `json:"timestamp"`
}
