package workflow

import (
	"context"

	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/event"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// WorkflowEngine owns every status write of a discussion's task slots.
// All methods take the discussion lock and run in one transaction; they may be nested inside Within.
type WorkflowEngine interface {
	// Within runs fn holding the discussion lock inside a transaction.
	// Events raised by fn are published after the outermost commit.
	Within(ctx context.Context, discussionID string, fn func(ctx context.Context) error) error

	// Emit queues evt for publication after commit, or publishes it now outside a transaction
	Emit(ctx context.Context, evt *event.Event)

	// Refresh re-derives every slot of the discussion and applies the differences unless DryRun
	Refresh(ctx context.Context, discussionID string, opts RefreshOptions) (*RefreshResult, error)

	// ApplyConsensusArrival moves a slot through consensus_created to its quality outcome.
	// save persists the consensus and reports whether it passed the gate.
	ApplyConsensusArrival(ctx context.Context, discussionID string, taskID int, actor string, save func(ctx context.Context) (bool, error)) (domainwf.State, error)

	// FailQuality forces a decided slot to quality_failed and cascades downstream
	FailQuality(ctx context.Context, discussionID string, taskID int, actor, reason string) (domainwf.State, error)

	// MarkOverridden records an administrator override without cascading
	MarkOverridden(ctx context.Context, discussionID string, taskID int, actor string) (domainwf.State, error)

	// UnlockNextTask opens taskID+1 once taskID is decided
	UnlockNextTask(ctx context.Context, discussionID string, taskID int, actor string) (domainwf.State, error)

	// FlagRework attaches a sticky rework or flag to a slot
	FlagRework(ctx context.Context, req FlagRequest) error

	// ClearRework removes the sticky flag and re-derives the discussion
	ClearRework(ctx context.Context, discussionID string, taskID int, actor string) (domainwf.State, error)

	// RecordAnnotation recounts annotators and promotes the slot once quorum is met
	RecordAnnotation(ctx context.Context, discussionID string, taskID int, actor string) (*entity.TaskSlot, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RefreshOptions controls a derivation pass
type RefreshOptions struct {
	Actor             string
	DryRun            bool
	RecountAnnotators bool
}

// StatusChange is one slot whose stored status differs from its derived status
type StatusChange struct {
	DiscussionID string         `json:"discussion_id"`
	TaskID       int            `json:"task_id"`
	From         domainwf.State `json:"from"`
	To           domainwf.State `json:"to"`
	Reason       string         `json:"reason"`
}

// PreservedFlag is a sticky slot left untouched by derivation
type PreservedFlag struct {
	DiscussionID string         `json:"discussion_id"`
	TaskID       int            `json:"task_id"`
	Status       domainwf.State `json:"status"`
	Scenario     string         `json:"workflow_scenario,omitempty"`
}

// CountRepair is a cached annotator count that did not match the annotations
type CountRepair struct {
	DiscussionID string `json:"discussion_id"`
	TaskID       int    `json:"task_id"`
	From         int    `json:"from"`
	To           int    `json:"to"`
}

// RefreshResult is what one derivation pass found, and applied unless it was a dry run
type RefreshResult struct {
	Changes   []StatusChange  `json:"changes"`
	Preserved []PreservedFlag `json:"preserved"`
	Counts    []CountRepair   `json:"count_repairs,omitempty"`
}

// FlagRequest describes a rework or plain flag action
type FlagRequest struct {
	DiscussionID string
	TaskID       int
	Reason       string
	Scenario     string
	Actor        string
	// Plain sets flagged instead of rework
	Plain bool
}
