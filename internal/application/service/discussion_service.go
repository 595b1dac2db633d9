package service

import (
	"context"
	"strings"
	"time"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/event"
	"github.com/garyjia/discussion-review/pkg/utils"
)

// DiscussionInput is one discussion as delivered by the importer
type DiscussionInput struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Repository  string     `json:"repository"`
	Number      int        `json:"number"`
	Language    string     `json:"language"`
	ReleaseTag  string     `json:"release_tag"`
	ReleaseURL  string     `json:"release_url"`
	ReleaseDate string     `json:"release_date"`
	CreatedAt   *time.Time `json:"created_at"`
}

// ImportResult reports which ids were created and which already existed
type ImportResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// DiscussionService imports and removes discussions
type DiscussionService interface {
	ImportDiscussions(ctx context.Context, actor string, inputs []DiscussionInput) (*ImportResult, error)
	DeleteDiscussions(ctx context.Context, actor string, ids []string) (int, error)
	GetDiscussion(ctx context.Context, id string) (*entity.Discussion, error)
	ListDiscussions(ctx context.Context) ([]*entity.Discussion, error)
}

type discussionServiceImpl struct {
	discussionRepo port.DiscussionRepository
	userRepo       port.UserRepository
	txManager      port.TransactionManager
	engine         workflow.WorkflowEngine
	logger         Logger
}

// NewDiscussionService creates a new DiscussionService
func NewDiscussionService(
	discussionRepo port.DiscussionRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	engine workflow.WorkflowEngine,
	logger Logger,
) DiscussionService {
	return &discussionServiceImpl{
		discussionRepo: discussionRepo,
		userRepo:       userRepo,
		txManager:      txManager,
		engine:         engine,
		logger:         logger,
	}
}

// ImportDiscussions creates discussions in one transaction, then unlocks task 1 of each new one.
// Re-importing an id leaves the stored discussion untouched.
func (s *discussionServiceImpl) ImportDiscussions(ctx context.Context, actor string, inputs []DiscussionInput) (*ImportResult, error) {
	const op = "discussion.import"
	if _, err := authorize(ctx, s.userRepo, op, actor, policyAdmin); err != nil {
		return nil, err
	}

	discussions := make([]*entity.Discussion, 0, len(inputs))
	for i, in := range inputs {
		id, err := entity.DiscussionID(in.Repository, in.Number, in.URL)
		if err != nil {
			return nil, apperr.Validation(op, "discussion %d: %v", i, err)
		}
		title := strings.TrimSpace(utils.SanitizeString(in.Title))
		if title == "" {
			return nil, apperr.Validation(op, "discussion %s: title is required", id)
		}
		d := &entity.Discussion{
			ID:          id,
			Title:       title,
			URL:         in.URL,
			Repository:  in.Repository,
			Number:      in.Number,
			Language:    in.Language,
			ReleaseTag:  in.ReleaseTag,
			ReleaseURL:  in.ReleaseURL,
			ReleaseDate: in.ReleaseDate,
		}
		if in.CreatedAt != nil {
			d.CreatedAt = in.CreatedAt.UTC()
		}
		discussions = append(discussions, d)
	}

	result := &ImportResult{Created: []string{}, Skipped: []string{}}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, d := range discussions {
			created, err := s.discussionRepo.Create(txCtx, d)
			if err != nil {
				return err
			}
			if created {
				result.Created = append(result.Created, d.ID)
			} else {
				result.Skipped = append(result.Skipped, d.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range result.Created {
		if _, err := s.engine.Refresh(ctx, id, workflow.RefreshOptions{}); err != nil {
			s.logger.Error("Failed to initialize task statuses", "discussion_id", id, "error", err)
		}
	}

	s.engine.Emit(ctx, event.NewEvent(event.TypeDiscussionsImported, "", 0, map[string]interface{}{
		"created": len(result.Created),
		"skipped": len(result.Skipped),
	}).WithActor(entity.NormalizeEmail(actor)))

	s.logger.Info("Discussions imported", "created", len(result.Created), "skipped", len(result.Skipped))
	return result, nil
}

// DeleteDiscussions removes discussions with their slots, annotations, consensus and history
func (s *discussionServiceImpl) DeleteDiscussions(ctx context.Context, actor string, ids []string) (int, error) {
	const op = "discussion.delete"
	if _, err := authorize(ctx, s.userRepo, op, actor, policyAdmin); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, apperr.Validation(op, "no discussion ids given")
	}

	var deleted int
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		n, err := s.discussionRepo.Delete(txCtx, ids)
		deleted = n
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Discussions deleted", "requested", len(ids), "deleted", deleted)
	return deleted, nil
}

func (s *discussionServiceImpl) GetDiscussion(ctx context.Context, id string) (*entity.Discussion, error) {
	return s.discussionRepo.GetByID(ctx, id)
}

func (s *discussionServiceImpl) ListDiscussions(ctx context.Context) ([]*entity.Discussion, error) {
	return s.discussionRepo.List(ctx)
}
