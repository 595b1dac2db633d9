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
	"github.com/garyjia/discussion-review/internal/domain/quality"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// ConsensusRequest is an administrator's consensus decision for one task
type ConsensusRequest struct {
	DiscussionID string
	TaskID       int
	// AnnotatorID is the annotator the consensus nominally represents; empty means the saver
	AnnotatorID string
	Data        map[string]interface{}
	SavedBy     string
}

// ConsensusResult is the outcome of saving a consensus
type ConsensusResult struct {
	Consensus   *entity.ConsensusAnnotation `json:"consensus"`
	Status      domainwf.State              `json:"status"`
	Quality     quality.Outcome             `json:"quality"`
	Retroactive *RetroactiveResult          `json:"retroactive,omitempty"`
}

// ConsensusService creates, updates and overrides consensus annotations
type ConsensusService interface {
	CreateOrUpdateConsensus(ctx context.Context, req ConsensusRequest) (*ConsensusResult, error)
	// OverrideConsensus replaces the consensus as an admin; statuses of other tasks are not touched
	OverrideConsensus(ctx context.Context, discussionID string, taskID int, data map[string]interface{}, by string) (*ConsensusResult, error)
	GetConsensus(ctx context.Context, discussionID string, taskID int) (*entity.ConsensusAnnotation, error)
	UnlockNextTask(ctx context.Context, actor, discussionID string, taskID int) (domainwf.State, error)
	FlagRework(ctx context.Context, actor string, req workflow.FlagRequest) error
	ClearRework(ctx context.Context, actor, discussionID string, taskID int) (domainwf.State, error)
}

type consensusServiceImpl struct {
	discussionRepo port.DiscussionRepository
	consensusRepo  port.ConsensusRepository
	userRepo       port.UserRepository
	engine         workflow.WorkflowEngine
	retroactive    *RetroactiveHandler
	logger         Logger
	now            func() time.Time
}

// NewConsensusService creates a new ConsensusService
func NewConsensusService(
	discussionRepo port.DiscussionRepository,
	consensusRepo port.ConsensusRepository,
	userRepo port.UserRepository,
	engine workflow.WorkflowEngine,
	retroactive *RetroactiveHandler,
	logger Logger,
) ConsensusService {
	return &consensusServiceImpl{
		discussionRepo: discussionRepo,
		consensusRepo:  consensusRepo,
		userRepo:       userRepo,
		engine:         engine,
		retroactive:    retroactive,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *consensusServiceImpl) CreateOrUpdateConsensus(ctx context.Context, req ConsensusRequest) (*ConsensusResult, error) {
	const op = "consensus.save"

	user, err := authorize(ctx, s.userRepo, op, req.SavedBy, policyConsensus)
	if err != nil {
		return nil, err
	}
	data, err := s.validate(ctx, op, req.DiscussionID, req.TaskID, req.Data)
	if err != nil {
		return nil, err
	}

	annotatorID := strings.TrimSpace(req.AnnotatorID)
	if annotatorID == "" {
		annotatorID = user.Email
	}

	result := &ConsensusResult{Quality: quality.Evaluate(data)}
	err = s.engine.Within(ctx, req.DiscussionID, func(ctx context.Context) error {
		status, err := s.engine.ApplyConsensusArrival(ctx, req.DiscussionID, req.TaskID, user.Email, func(ctx context.Context) (bool, error) {
			c, err := s.upsert(ctx, req.DiscussionID, req.TaskID, annotatorID, user.Email, data, false)
			if err != nil {
				return false, err
			}
			result.Consensus = c
			return result.Quality.Passed, nil
		})
		if err != nil {
			return err
		}
		result.Status = status

		if req.TaskID == domainwf.LastTask {
			retro, err := s.retroactive.Apply(ctx, req.DiscussionID, data, user.Email)
			if err != nil {
				return err
			}
			result.Retroactive = retro
		}

		s.engine.Emit(ctx, event.NewEvent(event.TypeConsensusSaved, req.DiscussionID, req.TaskID, map[string]interface{}{
			"status":          status.String(),
			"passed":          result.Quality.Passed,
			"failed_criteria": result.Quality.Failed,
		}).WithActor(user.Email))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Consensus saved",
		"discussion_id", req.DiscussionID,
		"task_id", req.TaskID,
		"status", result.Status,
		"passed", result.Quality.Passed)
	return result, nil
}

func (s *consensusServiceImpl) OverrideConsensus(ctx context.Context, discussionID string, taskID int, raw map[string]interface{}, by string) (*ConsensusResult, error) {
	const op = "consensus.override"

	user, err := authorize(ctx, s.userRepo, op, by, policyAdmin)
	if err != nil {
		return nil, err
	}
	data, err := s.validate(ctx, op, discussionID, taskID, raw)
	if err != nil {
		return nil, err
	}

	result := &ConsensusResult{Quality: quality.Evaluate(data)}
	err = s.engine.Within(ctx, discussionID, func(ctx context.Context) error {
		c, err := s.upsert(ctx, discussionID, taskID, user.Email, user.Email, data, true)
		if err != nil {
			return err
		}
		result.Consensus = c

		status, err := s.engine.MarkOverridden(ctx, discussionID, taskID, user.Email)
		if err != nil {
			return err
		}
		result.Status = status

		s.engine.Emit(ctx, event.NewEvent(event.TypeConsensusOverridden, discussionID, taskID, map[string]interface{}{
			"status": status.String(),
			"passed": result.Quality.Passed,
		}).WithActor(user.Email))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Consensus overridden", "discussion_id", discussionID, "task_id", taskID, "by", user.Email)
	return result, nil
}

// upsert writes the consensus row keeping its creation time.
// A regular save clears an earlier override.
func (s *consensusServiceImpl) upsert(ctx context.Context, discussionID string, taskID int, annotatorID, userID string, data entity.TaskData, override bool) (*entity.ConsensusAnnotation, error) {
	existing, err := s.consensusRepo.Get(ctx, discussionID, taskID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	meta := entity.ConsensusMetadata{CreatedAt: now, LastUpdatedAt: now}
	if existing != nil {
		meta.CreatedAt = existing.Metadata.CreatedAt
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = existing.Timestamp
		}
		meta.RetroactivelyUpdatedByTask3 = existing.Metadata.RetroactivelyUpdatedByTask3
		meta.RetroactiveUpdateTimestamp = existing.Metadata.RetroactiveUpdateTimestamp
		meta.OriginalExplanation = existing.Metadata.OriginalExplanation
	}
	if override {
		meta.OverriddenByUser = userID
		meta.OverrideTimestamp = &now
	}

	c := &entity.ConsensusAnnotation{
		DiscussionID: discussionID,
		TaskID:       taskID,
		AnnotatorID:  annotatorID,
		UserID:       userID,
		Data:         data,
		Metadata:     meta,
		Timestamp:    now,
	}
	if err := s.consensusRepo.Upsert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *consensusServiceImpl) validate(ctx context.Context, op, discussionID string, taskID int, raw map[string]interface{}) (entity.TaskData, error) {
	if !domainwf.ValidTask(taskID) {
		return nil, apperr.Validation(op, "task id must be 1, 2 or 3, got %d", taskID)
	}
	data, err := entity.DecodeTaskData(taskID, raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.discussionRepo.GetByID(ctx, discussionID); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *consensusServiceImpl) GetConsensus(ctx context.Context, discussionID string, taskID int) (*entity.ConsensusAnnotation, error) {
	c, err := s.consensusRepo.Get(ctx, discussionID, taskID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("consensus.get", "no consensus for %s task %d", discussionID, taskID)
	}
	return c, nil
}

func (s *consensusServiceImpl) UnlockNextTask(ctx context.Context, actor, discussionID string, taskID int) (domainwf.State, error) {
	const op = "workflow.unlock_next"
	user, err := authorize(ctx, s.userRepo, op, actor, policyConsensus)
	if err != nil {
		return "", err
	}
	if _, err := s.discussionRepo.GetByID(ctx, discussionID); err != nil {
		return "", err
	}
	return s.engine.UnlockNextTask(ctx, discussionID, taskID, user.Email)
}

func (s *consensusServiceImpl) FlagRework(ctx context.Context, actor string, req workflow.FlagRequest) error {
	const op = "workflow.flag_rework"
	user, err := authorize(ctx, s.userRepo, op, actor, policyConsensus)
	if err != nil {
		return err
	}
	if _, err := s.discussionRepo.GetByID(ctx, req.DiscussionID); err != nil {
		return err
	}
	req.Actor = user.Email
	if err := s.engine.FlagRework(ctx, req); err != nil {
		return err
	}

	s.logger.Info("Task flagged for rework",
		"discussion_id", req.DiscussionID,
		"task_id", req.TaskID,
		"scenario", req.Scenario,
		"by", user.Email)
	return nil
}

func (s *consensusServiceImpl) ClearRework(ctx context.Context, actor, discussionID string, taskID int) (domainwf.State, error) {
	const op = "workflow.clear_rework"
	user, err := authorize(ctx, s.userRepo, op, actor, policyConsensus)
	if err != nil {
		return "", err
	}
	if _, err := s.discussionRepo.GetByID(ctx, discussionID); err != nil {
		return "", err
	}
	if !domainwf.ValidTask(taskID) {
		return "", apperr.Validation(op, "task id must be 1, 2 or 3, got %d", taskID)
	}
	return s.engine.ClearRework(ctx, discussionID, taskID, user.Email)
}
