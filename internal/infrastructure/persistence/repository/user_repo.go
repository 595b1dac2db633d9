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

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert adds the user or changes their role
func (r *UserRepository) Upsert(ctx context.Context, u *entity.AuthorizedUser) error {
	u.Email = entity.NormalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO authorized_users (email, role, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET role = excluded.role
	`, u.Email, string(u.Role), u.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("email", u.Email), zap.Error(err))
		return handleDBError("user.upsert", err)
	}
	return nil
}

// Get retrieves a user by email
func (r *UserRepository) Get(ctx context.Context, email string) (*entity.AuthorizedUser, error) {
	email = entity.NormalizeEmail(email)

	var u entity.AuthorizedUser
	var role string
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT email, role, created_at FROM authorized_users WHERE email = ?`, email,
	).Scan(&u.Email, &role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user.get", "user %s is not authorized", email)
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("email", email), zap.Error(err))
		return nil, handleDBError("user.get", err)
	}
	u.Role = entity.Role(role)
	return &u, nil
}

// List returns all users ordered by email
func (r *UserRepository) List(ctx context.Context) ([]*entity.AuthorizedUser, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT email, role, created_at FROM authorized_users ORDER BY email`)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, handleDBError("user.list", err)
	}
	defer rows.Close()

	var users []*entity.AuthorizedUser
	for rows.Next() {
		var u entity.AuthorizedUser
		var role string
		if err := rows.Scan(&u.Email, &role, &u.CreatedAt); err != nil {
			return nil, handleDBError("user.list", err)
		}
		u.Role = entity.Role(role)
		users = append(users, &u)
	}
	return users, handleDBError("user.list", rows.Err())
}

// Delete removes a user
func (r *UserRepository) Delete(ctx context.Context, email string) error {
	email = entity.NormalizeEmail(email)

	result, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM authorized_users WHERE email = ?`, email)
	if err != nil {
		r.logger.Error("Failed to delete user", zap.String("email", email), zap.Error(err))
		return handleDBError("user.delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return handleDBError("user.delete", err)
	}
	if n == 0 {
		return apperr.NotFound("user.delete", "user %s is not authorized", email)
	}
	return nil
}

// CountByRole counts users holding role
func (r *UserRepository) CountByRole(ctx context.Context, role entity.Role) (int, error) {
	var n int
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authorized_users WHERE role = ?`, string(role),
	).Scan(&n)
	if err != nil {
		return 0, handleDBError("user.count", err)
	}
	return n, nil
}

func (r *UserRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
