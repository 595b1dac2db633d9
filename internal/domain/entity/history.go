package entity

import "time"

// StatusHistory is one applied status change of a task slot
type StatusHistory struct {
	ID             int64     `json:"id"`
	DiscussionID   string    `json:"discussion_id"`
	TaskID         int       `json:"task_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Reason         string    `json:"reason"`
	Actor          string    `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
}
