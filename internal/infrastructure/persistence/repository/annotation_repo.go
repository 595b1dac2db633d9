package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AnnotationRepository implements port.AnnotationRepository
type AnnotationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnnotationRepository creates a new annotation repository
func NewAnnotationRepository(db *sql.DB, logger *zap.Logger) port.AnnotationRepository {
	return &AnnotationRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert stores the annotation, replacing the same user's earlier one
func (r *AnnotationRepository) Upsert(ctx context.Context, a *entity.Annotation) error {
	if a.Data == nil || a.Data.TaskID() != a.TaskID {
		return apperr.Validation("annotation.upsert", "data does not match task %d", a.TaskID)
	}
	data, err := encodeData(a.Data)
	if err != nil {
		return apperr.Validation("annotation.upsert", "failed to encode data: %v", err)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO annotations (discussion_id, user_id, task_id, data_json, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(discussion_id, user_id, task_id) DO UPDATE SET
			data_json = excluded.data_json,
			timestamp = excluded.timestamp
		RETURNING id
	`

	err = r.getExecutor(ctx).QueryRowContext(ctx, query,
		a.DiscussionID, a.UserID, a.TaskID, data, a.Timestamp,
	).Scan(&a.ID)
	if err != nil {
		r.logger.Error("Failed to upsert annotation",
			zap.String("discussion_id", a.DiscussionID),
			zap.String("user_id", a.UserID),
			zap.Int("task_id", a.TaskID),
			zap.Error(err))
		return handleDBError("annotation.upsert", err)
	}
	return nil
}

// CountDistinctAnnotators counts users with an annotation on the task
func (r *AnnotationRepository) CountDistinctAnnotators(ctx context.Context, discussionID string, taskID int) (int, error) {
	var n int
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM annotations WHERE discussion_id = ? AND task_id = ?`,
		discussionID, taskID,
	).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to count annotators", zap.String("discussion_id", discussionID), zap.Error(err))
		return 0, handleDBError("annotation.count", err)
	}
	return n, nil
}

// ListByTask returns the task's annotations oldest first
func (r *AnnotationRepository) ListByTask(ctx context.Context, discussionID string, taskID int) ([]*entity.Annotation, error) {
	query := `
		SELECT id, user_id, data_json, timestamp
		FROM annotations
		WHERE discussion_id = ? AND task_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, discussionID, taskID)
	if err != nil {
		r.logger.Error("Failed to list annotations", zap.String("discussion_id", discussionID), zap.Error(err))
		return nil, handleDBError("annotation.list", err)
	}
	defer rows.Close()

	var annotations []*entity.Annotation
	for rows.Next() {
		a := &entity.Annotation{DiscussionID: discussionID, TaskID: taskID}
		var raw string
		if err := rows.Scan(&a.ID, &a.UserID, &raw, &a.Timestamp); err != nil {
			return nil, handleDBError("annotation.list", err)
		}
		data, _, err := decodeStoredData(taskID, raw)
		if err != nil {
			r.logger.Error("Skipping unreadable annotation", zap.Int64("annotation_id", a.ID), zap.Error(err))
			continue
		}
		a.Data = data
		annotations = append(annotations, a)
	}
	return annotations, handleDBError("annotation.list", rows.Err())
}

func (r *AnnotationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.AnnotationRepository = (*AnnotationRepository)(nil)
