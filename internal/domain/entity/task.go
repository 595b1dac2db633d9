package entity

import (
	"time"

	"github.com/garyjia/discussion-review/internal/domain/workflow"
)

// ReworkFlag is the structured record attached to a slot by a rework or flag action.
type ReworkFlag struct {
	Reason           string    `json:"reason"`
	WorkflowScenario string    `json:"workflow_scenario,omitempty"`
	FlaggedBy        string    `json:"flagged_by"`
	FlaggedAt        time.Time `json:"flagged_at"`
}

// TaskSlot is the per-discussion state of one of the three tasks.
// Status and rework metadata live in separate columns.
type TaskSlot struct {
	DiscussionID   string         `json:"discussion_id"`
	TaskID         int            `json:"task_id"`
	Status         workflow.State `json:"status"`
	AnnotatorCount int            `json:"annotator_count"`
	ReworkFlag     *ReworkFlag    `json:"rework_flag,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Persisted is false for a default slot that has no row yet
	Persisted bool `json:"-"`
}

// NewTaskSlot returns the default slot used before anything was written.
func NewTaskSlot(discussionID string, taskID int) *TaskSlot {
	return &TaskSlot{
		DiscussionID: discussionID,
		TaskID:       taskID,
		Status:       workflow.StateLocked,
	}
}

// Sticky reports whether the slot holds a manual rework or flag.
func (s *TaskSlot) Sticky() bool {
	return s.ReworkFlag != nil || s.Status.IsSticky()
}

// Required returns the annotator quorum of the slot's task.
func (s *TaskSlot) Required() int {
	return workflow.RequiredAnnotators(s.TaskID)
}
