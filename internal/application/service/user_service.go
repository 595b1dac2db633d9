package service

import (
	"context"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/pkg/utils"
)

// UserService manages the authorized users list
type UserService interface {
	// AddUser adds a user or changes their role; the actor must be an admin
	AddUser(ctx context.Context, actor, email, role string) (*entity.AuthorizedUser, error)
	// RemoveUser removes a user; the actor must be an admin
	RemoveUser(ctx context.Context, actor, email string) error
	// EnsureUser is AddUser for operators and bootstrap, without an acting user
	EnsureUser(ctx context.Context, email, role string) (*entity.AuthorizedUser, error)
	// DeleteUser is RemoveUser for operators
	DeleteUser(ctx context.Context, email string) error
	GetUser(ctx context.Context, email string) (*entity.AuthorizedUser, error)
	ListUsers(ctx context.Context) ([]*entity.AuthorizedUser, error)
}

type userServiceImpl struct {
	userRepo  port.UserRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo port.UserRepository, txManager port.TransactionManager, logger Logger) UserService {
	return &userServiceImpl{
		userRepo:  userRepo,
		txManager: txManager,
		logger:    logger,
	}
}

func (s *userServiceImpl) AddUser(ctx context.Context, actor, email, role string) (*entity.AuthorizedUser, error) {
	if _, err := authorize(ctx, s.userRepo, "user.add", actor, policyAdmin); err != nil {
		return nil, err
	}
	return s.EnsureUser(ctx, email, role)
}

func (s *userServiceImpl) EnsureUser(ctx context.Context, email, role string) (*entity.AuthorizedUser, error) {
	const op = "user.add"

	email = entity.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation(op, "email is required")
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	r, err := entity.ParseRole(role)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}

	user := &entity.AuthorizedUser{Email: email, Role: r}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.userRepo.Get(txCtx, email)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		if existing != nil {
			user.CreatedAt = existing.CreatedAt
			if existing.Role == entity.RoleAdmin && r != entity.RoleAdmin {
				if err := s.ensureAnotherAdmin(txCtx, op); err != nil {
					return err
				}
			}
		}
		return s.userRepo.Upsert(txCtx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User saved", "email", email, "role", r)
	return user, nil
}

func (s *userServiceImpl) RemoveUser(ctx context.Context, actor, email string) error {
	if _, err := authorize(ctx, s.userRepo, "user.remove", actor, policyAdmin); err != nil {
		return err
	}
	return s.DeleteUser(ctx, email)
}

func (s *userServiceImpl) DeleteUser(ctx context.Context, email string) error {
	const op = "user.remove"
	email = entity.NormalizeEmail(email)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.userRepo.Get(txCtx, email)
		if err != nil {
			return err
		}
		if existing.Role == entity.RoleAdmin {
			if err := s.ensureAnotherAdmin(txCtx, op); err != nil {
				return err
			}
		}
		return s.userRepo.Delete(txCtx, email)
	})
	if err != nil {
		return err
	}

	s.logger.Info("User removed", "email", email)
	return nil
}

// ensureAnotherAdmin refuses to drop the only remaining admin
func (s *userServiceImpl) ensureAnotherAdmin(ctx context.Context, op string) error {
	admins, err := s.userRepo.CountByRole(ctx, entity.RoleAdmin)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return apperr.Conflict(op, "at least one admin must remain")
	}
	return nil
}

func (s *userServiceImpl) GetUser(ctx context.Context, email string) (*entity.AuthorizedUser, error) {
	return s.userRepo.Get(ctx, email)
}

func (s *userServiceImpl) ListUsers(ctx context.Context) ([]*entity.AuthorizedUser, error) {
	return s.userRepo.List(ctx)
}
