package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/event"
	"github.com/garyjia/discussion-review/internal/domain/quality"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// RetroactiveResult describes a correction of the task 2 consensus
type RetroactiveResult struct {
	OriginalExplanation bool           `json:"original_explanation"`
	Task2Passed         bool           `json:"task2_passed"`
	Task2Status         domainwf.State `json:"task2_status"`
}

// RetroactiveHandler corrects the task 2 consensus when task 3 finds no supporting docs.
// It must run inside the task 3 consensus transaction.
type RetroactiveHandler struct {
	consensusRepo port.ConsensusRepository
	engine        workflow.WorkflowEngine
	logger        Logger
	now           func() time.Time
}

// NewRetroactiveHandler creates a new RetroactiveHandler
func NewRetroactiveHandler(consensusRepo port.ConsensusRepository, engine workflow.WorkflowEngine, logger Logger) *RetroactiveHandler {
	return &RetroactiveHandler{
		consensusRepo: consensusRepo,
		engine:        engine,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Apply returns nil when no correction applies
func (h *RetroactiveHandler) Apply(ctx context.Context, discussionID string, taskThree entity.TaskData, actor string) (*RetroactiveResult, error) {
	d3, ok := taskThree.(entity.TaskThreeData)
	if !ok || d3.SupportingDocsAvailable == nil || *d3.SupportingDocsAvailable {
		return nil, nil
	}

	t2, err := h.consensusRepo.Get(ctx, discussionID, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to load task 2 consensus: %w", err)
	}
	if t2 == nil {
		return nil, nil
	}
	d2, ok := t2.Data.(entity.TaskTwoData)
	if !ok {
		return nil, fmt.Errorf("task 2 consensus of %s holds %T", discussionID, t2.Data)
	}

	now := h.now()
	original := d2.Explanation
	d2.Explanation = false

	meta := t2.Metadata
	meta.RetroactivelyUpdatedByTask3 = true
	meta.RetroactiveUpdateTimestamp = &now
	meta.LastUpdatedAt = now
	if meta.OriginalExplanation == nil {
		meta.OriginalExplanation = &original
	}

	if err := h.consensusRepo.UpdateData(ctx, discussionID, 2, d2, meta); err != nil {
		return nil, fmt.Errorf("failed to update task 2 consensus: %w", err)
	}

	result := &RetroactiveResult{
		OriginalExplanation: *meta.OriginalExplanation,
		Task2Passed:         quality.Passes(d2),
	}
	if !result.Task2Passed {
		status, err := h.engine.FailQuality(ctx, discussionID, 2, actor, "task 3 found no supporting docs")
		if err != nil {
			return nil, err
		}
		result.Task2Status = status
	}

	h.engine.Emit(ctx, event.NewEvent(event.TypeRetroactiveCorrection, discussionID, 2, map[string]interface{}{
		"original_explanation": original,
		"task2_passed":         result.Task2Passed,
		"task2_status":         result.Task2Status.String(),
	}).WithActor(actor))

	h.logger.Info("Task 2 consensus corrected by task 3",
		"discussion_id", discussionID,
		"original_explanation", original,
		"task2_status", result.Task2Status)
	return result, nil
}
