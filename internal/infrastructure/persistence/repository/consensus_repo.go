package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ConsensusRepository implements port.ConsensusRepository.
// Domain fields and audit metadata are stored in separate columns.
type ConsensusRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConsensusRepository creates a new consensus repository
func NewConsensusRepository(db *sql.DB, logger *zap.Logger) port.ConsensusRepository {
	return &ConsensusRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the consensus for the task, or nil when there is none
func (r *ConsensusRepository) Get(ctx context.Context, discussionID string, taskID int) (*entity.ConsensusAnnotation, error) {
	query := `
		SELECT id, annotator_id, user_id, data_json, metadata_json, timestamp
		FROM consensus_annotations
		WHERE discussion_id = ? AND task_id = ?
	`

	c := &entity.ConsensusAnnotation{DiscussionID: discussionID, TaskID: taskID}
	var dataJSON, metaJSON string
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, discussionID, taskID).Scan(
		&c.ID, &c.AnnotatorID, &c.UserID, &dataJSON, &metaJSON, &c.Timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get consensus",
			zap.String("discussion_id", discussionID),
			zap.Int("task_id", taskID),
			zap.Error(err))
		return nil, handleDBError("consensus.get", err)
	}

	// Older rows kept audit keys inside the payload; the metadata column wins when both exist.
	data, meta, err := decodeStoredData(taskID, dataJSON)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "consensus.get", err)
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, apperr.Store("consensus.get", err)
		}
	}
	c.Data = data
	c.Metadata = meta
	return c, nil
}

// Upsert keeps one consensus row per (discussion, task)
func (r *ConsensusRepository) Upsert(ctx context.Context, c *entity.ConsensusAnnotation) error {
	if c.Data == nil || c.Data.TaskID() != c.TaskID {
		return apperr.Validation("consensus.upsert", "data does not match task %d", c.TaskID)
	}
	data, err := encodeData(c.Data)
	if err != nil {
		return apperr.Validation("consensus.upsert", "failed to encode data: %v", err)
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return apperr.Validation("consensus.upsert", "failed to encode metadata: %v", err)
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO consensus_annotations (
			discussion_id, task_id, annotator_id, user_id, data_json, metadata_json, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(discussion_id, task_id) DO UPDATE SET
			annotator_id = excluded.annotator_id,
			user_id = excluded.user_id,
			data_json = excluded.data_json,
			metadata_json = excluded.metadata_json,
			timestamp = excluded.timestamp
		RETURNING id
	`

	err = r.getExecutor(ctx).QueryRowContext(ctx, query,
		c.DiscussionID, c.TaskID, c.AnnotatorID, c.UserID, data, string(meta), c.Timestamp,
	).Scan(&c.ID)
	if err != nil {
		r.logger.Error("Failed to upsert consensus",
			zap.String("discussion_id", c.DiscussionID),
			zap.Int("task_id", c.TaskID),
			zap.Error(err))
		return handleDBError("consensus.upsert", err)
	}
	return nil
}

// UpdateData rewrites payload and metadata of an existing consensus
func (r *ConsensusRepository) UpdateData(ctx context.Context, discussionID string, taskID int, data entity.TaskData, meta entity.ConsensusMetadata) error {
	encoded, err := encodeData(data)
	if err != nil {
		return apperr.Validation("consensus.update", "failed to encode data: %v", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return apperr.Validation("consensus.update", "failed to encode metadata: %v", err)
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		UPDATE consensus_annotations
		SET data_json = ?, metadata_json = ?
		WHERE discussion_id = ? AND task_id = ?
	`, encoded, string(metaJSON), discussionID, taskID)
	if err != nil {
		r.logger.Error("Failed to update consensus data",
			zap.String("discussion_id", discussionID),
			zap.Int("task_id", taskID),
			zap.Error(err))
		return handleDBError("consensus.update", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return handleDBError("consensus.update", err)
	}
	if n == 0 {
		return apperr.NotFound("consensus.update", "no consensus for %s task %d", discussionID, taskID)
	}
	return nil
}

// Count returns 0 or 1
func (r *ConsensusRepository) Count(ctx context.Context, discussionID string, taskID int) (int, error) {
	var n int
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consensus_annotations WHERE discussion_id = ? AND task_id = ?`,
		discussionID, taskID,
	).Scan(&n)
	if err != nil {
		return 0, handleDBError("consensus.count", err)
	}
	return n, nil
}

func (r *ConsensusRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.ConsensusRepository = (*ConsensusRepository)(nil)
