package service

import (
	"context"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/event"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// AnnotationService records annotator judgments
type AnnotationService interface {
	// SubmitAnnotation upserts the actor's annotation and returns the slot after quorum promotion
	SubmitAnnotation(ctx context.Context, actor, discussionID string, taskID int, data map[string]interface{}) (*entity.TaskSlot, error)
	ListAnnotations(ctx context.Context, discussionID string, taskID int) ([]*entity.Annotation, error)
}

type annotationServiceImpl struct {
	discussionRepo port.DiscussionRepository
	annotationRepo port.AnnotationRepository
	slotRepo       port.TaskSlotRepository
	userRepo       port.UserRepository
	engine         workflow.WorkflowEngine
	logger         Logger
}

// NewAnnotationService creates a new AnnotationService
func NewAnnotationService(
	discussionRepo port.DiscussionRepository,
	annotationRepo port.AnnotationRepository,
	slotRepo port.TaskSlotRepository,
	userRepo port.UserRepository,
	engine workflow.WorkflowEngine,
	logger Logger,
) AnnotationService {
	return &annotationServiceImpl{
		discussionRepo: discussionRepo,
		annotationRepo: annotationRepo,
		slotRepo:       slotRepo,
		userRepo:       userRepo,
		engine:         engine,
		logger:         logger,
	}
}

func (s *annotationServiceImpl) SubmitAnnotation(ctx context.Context, actor, discussionID string, taskID int, data map[string]interface{}) (*entity.TaskSlot, error) {
	const op = "annotation.submit"

	user, err := authorize(ctx, s.userRepo, op, actor, policyAnnotate)
	if err != nil {
		return nil, err
	}
	if !domainwf.ValidTask(taskID) {
		return nil, apperr.Validation(op, "task id must be 1, 2 or 3, got %d", taskID)
	}
	payload, err := entity.DecodeTaskData(taskID, data)
	if err != nil {
		return nil, err
	}
	if _, err := s.discussionRepo.GetByID(ctx, discussionID); err != nil {
		return nil, err
	}

	var slot *entity.TaskSlot
	err = s.engine.Within(ctx, discussionID, func(ctx context.Context) error {
		if _, err := s.engine.Refresh(ctx, discussionID, workflow.RefreshOptions{}); err != nil {
			return err
		}
		current, err := s.slotRepo.Get(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		if current.Status == domainwf.StateLocked || current.Status == domainwf.StateBlocked {
			return apperr.Conflict(op, "task %d of %s is %s and does not accept annotations", taskID, discussionID, current.Status)
		}

		annotation := &entity.Annotation{
			DiscussionID: discussionID,
			UserID:       user.Email,
			TaskID:       taskID,
			Data:         payload,
		}
		if err := s.annotationRepo.Upsert(ctx, annotation); err != nil {
			return err
		}

		slot, err = s.engine.RecordAnnotation(ctx, discussionID, taskID, user.Email)
		if err != nil {
			return err
		}

		s.engine.Emit(ctx, event.NewEvent(event.TypeAnnotationSubmitted, discussionID, taskID, map[string]interface{}{
			"annotator_count": slot.AnnotatorCount,
			"status":          slot.Status.String(),
		}).WithActor(user.Email))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Annotation recorded",
		"discussion_id", discussionID,
		"task_id", taskID,
		"user", user.Email,
		"annotators", slot.AnnotatorCount,
		"status", slot.Status)
	return slot, nil
}

func (s *annotationServiceImpl) ListAnnotations(ctx context.Context, discussionID string, taskID int) ([]*entity.Annotation, error) {
	if !domainwf.ValidTask(taskID) {
		return nil, apperr.Validation("annotation.list", "task id must be 1, 2 or 3, got %d", taskID)
	}
	return s.annotationRepo.ListByTask(ctx, discussionID, taskID)
}
