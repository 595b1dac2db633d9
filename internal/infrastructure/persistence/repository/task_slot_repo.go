package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/workflow"
	"github.com/garyjia/discussion-review/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// TaskSlotRepository implements port.TaskSlotRepository
type TaskSlotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskSlotRepository creates a new task slot repository
func NewTaskSlotRepository(db *sql.DB, logger *zap.Logger) port.TaskSlotRepository {
	return &TaskSlotRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the slot, or the default locked slot when no row exists
func (r *TaskSlotRepository) Get(ctx context.Context, discussionID string, taskID int) (*entity.TaskSlot, error) {
	if !workflow.ValidTask(taskID) {
		return nil, apperr.Validation("slot.get", "task id must be 1, 2 or 3, got %d", taskID)
	}

	query := `
		SELECT task_id, status, annotator_count, rework_json, updated_at
		FROM task_slots
		WHERE discussion_id = ? AND task_id = ?
	`

	slot, err := r.scanSlot(discussionID, r.getExecutor(ctx).QueryRowContext(ctx, query, discussionID, taskID))
	if err == sql.ErrNoRows {
		return entity.NewTaskSlot(discussionID, taskID), nil
	}
	if err != nil {
		r.logger.Error("Failed to get task slot",
			zap.String("discussion_id", discussionID),
			zap.Int("task_id", taskID),
			zap.Error(err))
		return nil, handleDBError("slot.get", err)
	}
	return slot, nil
}

// ListByDiscussion returns the three slots in task order
func (r *TaskSlotRepository) ListByDiscussion(ctx context.Context, discussionID string) ([]*entity.TaskSlot, error) {
	query := `
		SELECT task_id, status, annotator_count, rework_json, updated_at
		FROM task_slots
		WHERE discussion_id = ?
		ORDER BY task_id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, discussionID)
	if err != nil {
		r.logger.Error("Failed to list task slots", zap.String("discussion_id", discussionID), zap.Error(err))
		return nil, handleDBError("slot.list", err)
	}
	defer rows.Close()

	slots := make([]*entity.TaskSlot, workflow.LastTask)
	for rows.Next() {
		slot, err := r.scanSlot(discussionID, rows)
		if err != nil {
			return nil, handleDBError("slot.list", err)
		}
		if workflow.ValidTask(slot.TaskID) {
			slots[slot.TaskID-1] = slot
		}
	}
	if err := rows.Err(); err != nil {
		return nil, handleDBError("slot.list", err)
	}

	for i := range slots {
		if slots[i] == nil {
			slots[i] = entity.NewTaskSlot(discussionID, i+1)
		}
	}
	return slots, nil
}

// SetStatus writes status and rework flag, creating the row when needed
func (r *TaskSlotRepository) SetStatus(ctx context.Context, discussionID string, taskID int, status workflow.State, flag *entity.ReworkFlag) error {
	if !workflow.ValidTask(taskID) {
		return apperr.Validation("slot.set_status", "task id must be 1, 2 or 3, got %d", taskID)
	}
	if !status.IsValid() {
		return apperr.Validation("slot.set_status", "unknown status %q", status)
	}

	var reworkJSON interface{}
	if flag != nil {
		b, err := json.Marshal(flag)
		if err != nil {
			return apperr.Validation("slot.set_status", "invalid rework flag: %v", err)
		}
		reworkJSON = string(b)
	}

	query := `
		INSERT INTO task_slots (discussion_id, task_id, status, rework_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(discussion_id, task_id) DO UPDATE SET
			status = excluded.status,
			rework_json = excluded.rework_json,
			updated_at = excluded.updated_at
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, discussionID, taskID, string(status), reworkJSON, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to set task status",
			zap.String("discussion_id", discussionID),
			zap.Int("task_id", taskID),
			zap.String("status", string(status)),
			zap.Error(err))
		return handleDBError("slot.set_status", err)
	}
	return nil
}

// SetAnnotatorCount stores the cached annotator count
func (r *TaskSlotRepository) SetAnnotatorCount(ctx context.Context, discussionID string, taskID int, count int) error {
	if !workflow.ValidTask(taskID) {
		return apperr.Validation("slot.set_count", "task id must be 1, 2 or 3, got %d", taskID)
	}

	query := `
		INSERT INTO task_slots (discussion_id, task_id, annotator_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(discussion_id, task_id) DO UPDATE SET
			annotator_count = excluded.annotator_count,
			updated_at = excluded.updated_at
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, discussionID, taskID, count, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to set annotator count",
			zap.String("discussion_id", discussionID),
			zap.Int("task_id", taskID),
			zap.Error(err))
		return handleDBError("slot.set_count", err)
	}
	return nil
}

func (r *TaskSlotRepository) scanSlot(discussionID string, row rowScanner) (*entity.TaskSlot, error) {
	slot := &entity.TaskSlot{DiscussionID: discussionID, Persisted: true}
	var status string
	var reworkJSON sql.NullString
	if err := row.Scan(&slot.TaskID, &status, &slot.AnnotatorCount, &reworkJSON, &slot.UpdatedAt); err != nil {
		return nil, err
	}
	slot.Status = workflow.State(status)

	if reworkJSON.Valid && reworkJSON.String != "" {
		var flag entity.ReworkFlag
		if err := json.Unmarshal([]byte(reworkJSON.String), &flag); err != nil {
			r.logger.Error("Failed to decode rework flag",
				zap.String("discussion_id", discussionID),
				zap.Int("task_id", slot.TaskID),
				zap.Error(err))
			return nil, fmt.Errorf("decode rework_json: %w", err)
		}
		slot.ReworkFlag = &flag
	}
	return slot, nil
}

func (r *TaskSlotRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.TaskSlotRepository = (*TaskSlotRepository)(nil)
