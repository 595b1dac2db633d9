package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a status change record
func (r *HistoryRepository) Create(ctx context.Context, h *entity.StatusHistory) error {
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO status_history (
			discussion_id, task_id, previous_status, new_status, reason, actor, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		h.DiscussionID,
		h.TaskID,
		h.PreviousStatus,
		h.NewStatus,
		h.Reason,
		h.Actor,
		h.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return handleDBError("history.create", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return handleDBError("history.create", err)
	}

	h.ID = id
	return nil
}

// ListByTask returns a slot's history in the order it was written
func (r *HistoryRepository) ListByTask(ctx context.Context, discussionID string, taskID int) ([]*entity.StatusHistory, error) {
	query := `
		SELECT id, discussion_id, task_id, previous_status, new_status, reason, actor, timestamp
		FROM status_history
		WHERE discussion_id = ? AND task_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, discussionID, taskID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("discussion_id", discussionID), zap.Error(err))
		return nil, handleDBError("history.list", err)
	}
	defer rows.Close()

	var records []*entity.StatusHistory
	for rows.Next() {
		var record entity.StatusHistory
		err := rows.Scan(
			&record.ID,
			&record.DiscussionID,
			&record.TaskID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Reason,
			&record.Actor,
			&record.Timestamp,
		)
		if err != nil {
			return nil, handleDBError("history.list", err)
		}
		records = append(records, &record)
	}

	return records, handleDBError("history.list", rows.Err())
}

func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
