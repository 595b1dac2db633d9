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

// DiscussionRepository implements port.DiscussionRepository
type DiscussionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDiscussionRepository creates a new discussion repository
func NewDiscussionRepository(db *sql.DB, logger *zap.Logger) port.DiscussionRepository {
	return &DiscussionRepository{
		db:     db,
		logger: logger,
	}
}

const discussionColumns = `id, title, url, repository, number, language,
	release_tag, release_url, release_date, created_at, imported_at`

// Create inserts a discussion unless one with the same id exists
func (r *DiscussionRepository) Create(ctx context.Context, d *entity.Discussion) (bool, error) {
	if d.ImportedAt.IsZero() {
		d.ImportedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO discussions (` + discussionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		d.ID,
		d.Title,
		d.URL,
		d.Repository,
		d.Number,
		d.Language,
		d.ReleaseTag,
		d.ReleaseURL,
		d.ReleaseDate,
		timeOrNil(d.CreatedAt),
		d.ImportedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create discussion", zap.String("discussion_id", d.ID), zap.Error(err))
		return false, handleDBError("discussion.create", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, handleDBError("discussion.create", err)
	}
	return n > 0, nil
}

// GetByID retrieves a discussion by id
func (r *DiscussionRepository) GetByID(ctx context.Context, id string) (*entity.Discussion, error) {
	query := `SELECT ` + discussionColumns + ` FROM discussions WHERE id = ?`

	d, err := scanDiscussion(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("discussion.get", "discussion %s not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get discussion", zap.String("discussion_id", id), zap.Error(err))
		return nil, handleDBError("discussion.get", err)
	}
	return d, nil
}

// List returns all discussions ordered by id
func (r *DiscussionRepository) List(ctx context.Context) ([]*entity.Discussion, error) {
	query := `SELECT ` + discussionColumns + ` FROM discussions ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list discussions", zap.Error(err))
		return nil, handleDBError("discussion.list", err)
	}
	defer rows.Close()

	var discussions []*entity.Discussion
	for rows.Next() {
		d, err := scanDiscussion(rows)
		if err != nil {
			return nil, handleDBError("discussion.list", err)
		}
		discussions = append(discussions, d)
	}
	return discussions, handleDBError("discussion.list", rows.Err())
}

// Delete removes the given discussions; owned rows go with them
func (r *DiscussionRepository) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM discussions WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		r.logger.Error("Failed to delete discussions", zap.Int("count", len(ids)), zap.Error(err))
		return 0, handleDBError("discussion.delete", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, handleDBError("discussion.delete", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDiscussion(row rowScanner) (*entity.Discussion, error) {
	var d entity.Discussion
	var createdAt sql.NullTime
	err := row.Scan(
		&d.ID,
		&d.Title,
		&d.URL,
		&d.Repository,
		&d.Number,
		&d.Language,
		&d.ReleaseTag,
		&d.ReleaseURL,
		&d.ReleaseDate,
		&createdAt,
		&d.ImportedAt,
	)
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		d.CreatedAt = createdAt.Time
	}
	return &d, nil
}

func (r *DiscussionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.DiscussionRepository = (*DiscussionRepository)(nil)
