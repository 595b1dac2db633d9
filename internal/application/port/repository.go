package port

import (
	"context"

	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/workflow"
)

// DiscussionRepository defines persistence operations for Discussion
type DiscussionRepository interface {
	// Create inserts the discussion; an existing id is left untouched and reported as not created
	Create(ctx context.Context, d *entity.Discussion) (bool, error)
	GetByID(ctx context.Context, id string) (*entity.Discussion, error)
	List(ctx context.Context) ([]*entity.Discussion, error)
	// Delete removes discussions and, by cascade, everything they own
	Delete(ctx context.Context, ids []string) (int, error)
}

// TaskSlotRepository defines persistence operations for TaskSlot.
// Reads of a slot that was never written return the default locked/0 slot without creating it.
type TaskSlotRepository interface {
	Get(ctx context.Context, discussionID string, taskID int) (*entity.TaskSlot, error)
	// ListByDiscussion always returns tasks 1..3 in order
	ListByDiscussion(ctx context.Context, discussionID string) ([]*entity.TaskSlot, error)
	// SetStatus writes status and rework flag together; a nil flag clears it
	SetStatus(ctx context.Context, discussionID string, taskID int, status workflow.State, flag *entity.ReworkFlag) error
	SetAnnotatorCount(ctx context.Context, discussionID string, taskID int, count int) error
}

// AnnotationRepository defines persistence operations for Annotation
type AnnotationRepository interface {
	// Upsert overwrites the user's previous annotation on the same task
	Upsert(ctx context.Context, a *entity.Annotation) error
	CountDistinctAnnotators(ctx context.Context, discussionID string, taskID int) (int, error)
	ListByTask(ctx context.Context, discussionID string, taskID int) ([]*entity.Annotation, error)
}

// ConsensusRepository defines persistence operations for ConsensusAnnotation
type ConsensusRepository interface {
	// Get returns nil without error when no consensus exists
	Get(ctx context.Context, discussionID string, taskID int) (*entity.ConsensusAnnotation, error)
	// Upsert keeps a single row per (discussion, task)
	Upsert(ctx context.Context, c *entity.ConsensusAnnotation) error
	UpdateData(ctx context.Context, discussionID string, taskID int, data entity.TaskData, meta entity.ConsensusMetadata) error
	Count(ctx context.Context, discussionID string, taskID int) (int, error)
}

// UserRepository defines persistence operations for AuthorizedUser
type UserRepository interface {
	Upsert(ctx context.Context, u *entity.AuthorizedUser) error
	Get(ctx context.Context, email string) (*entity.AuthorizedUser, error)
	List(ctx context.Context) ([]*entity.AuthorizedUser, error)
	Delete(ctx context.Context, email string) error
	CountByRole(ctx context.Context, role entity.Role) (int, error)
}

// HistoryRepository defines persistence operations for StatusHistory
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.StatusHistory) error
	ListByTask(ctx context.Context, discussionID string, taskID int) ([]*entity.StatusHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
