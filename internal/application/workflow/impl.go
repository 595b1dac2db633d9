package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/discussion-review/internal/application/dispatcher"
	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/event"
	"github.com/garyjia/discussion-review/internal/domain/quality"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	slotRepo       port.TaskSlotRepository
	annotationRepo port.AnnotationRepository
	consensusRepo  port.ConsensusRepository
	historyRepo    port.HistoryRepository
	txManager      port.TransactionManager
	dispatcher     dispatcher.Dispatcher
	locks          *LockSet
	logger         Logger
	now            func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the dispatcher that receives events after commit
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithLockSet shares a lock set between engines over the same database
func WithLockSet(l *LockSet) EngineOption {
	return func(e *engineImpl) {
		e.locks = l
	}
}

// WithClock overrides time.Now for history and flag timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	slotRepo port.TaskSlotRepository,
	annotationRepo port.AnnotationRepository,
	consensusRepo port.ConsensusRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		slotRepo:       slotRepo,
		annotationRepo: annotationRepo,
		consensusRepo:  consensusRepo,
		historyRepo:    historyRepo,
		txManager:      txManager,
		now:            func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		e.locks = NewLockSet()
	}

	return e
}

func (e *engineImpl) Within(ctx context.Context, discussionID string, fn func(ctx context.Context) error) error {
	if holds(ctx, discussionID) {
		return e.txManager.WithTransaction(ctx, fn)
	}

	unlock, err := e.locks.Lock(ctx, discussionID)
	if err != nil {
		return fmt.Errorf("failed to lock discussion %s: %w", discussionID, err)
	}
	defer unlock()

	lockedCtx := withHeld(ctx, discussionID)
	box := outboxFrom(lockedCtx)
	outermost := box == nil
	if outermost {
		lockedCtx, box = withOutbox(lockedCtx)
	}

	if err := e.txManager.WithTransaction(lockedCtx, fn); err != nil {
		if outermost {
			box.drain()
		}
		return err
	}

	if outermost {
		e.publish(ctx, box.drain())
	}
	return nil
}

func (e *engineImpl) Emit(ctx context.Context, evt *event.Event) {
	if evt == nil {
		return
	}
	if box := outboxFrom(ctx); box != nil {
		box.add(evt)
		return
	}
	e.publish(ctx, []*event.Event{evt})
}

func (e *engineImpl) publish(ctx context.Context, events []*event.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, evt := range events {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

func (e *engineImpl) Refresh(ctx context.Context, discussionID string, opts RefreshOptions) (*RefreshResult, error) {
	var result *RefreshResult
	err := e.Within(ctx, discussionID, func(ctx context.Context) error {
		r, err := e.refresh(ctx, discussionID, opts)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// refresh derives every slot and writes the differences. Caller holds the lock.
func (e *engineImpl) refresh(ctx context.Context, discussionID string, opts RefreshOptions) (*RefreshResult, error) {
	actor := opts.Actor
	if actor == "" {
		actor = entity.SystemActor
	}

	slots, err := e.slotRepo.ListByDiscussion(ctx, discussionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task slots: %w", err)
	}

	result := &RefreshResult{}
	byTask := make(map[int]*entity.TaskSlot, len(slots))
	facts := make([]domainwf.SlotFacts, 0, len(slots))

	for _, slot := range slots {
		byTask[slot.TaskID] = slot

		if opts.RecountAnnotators {
			actual, err := e.annotationRepo.CountDistinctAnnotators(ctx, discussionID, slot.TaskID)
			if err != nil {
				return nil, fmt.Errorf("failed to count annotators: %w", err)
			}
			if actual != slot.AnnotatorCount {
				result.Counts = append(result.Counts, CountRepair{
					DiscussionID: discussionID,
					TaskID:       slot.TaskID,
					From:         slot.AnnotatorCount,
					To:           actual,
				})
				if !opts.DryRun {
					if err := e.slotRepo.SetAnnotatorCount(ctx, discussionID, slot.TaskID, actual); err != nil {
						return nil, err
					}
				}
				slot.AnnotatorCount = actual
			}
		}

		f := domainwf.SlotFacts{
			TaskID:         slot.TaskID,
			Stored:         slot.Status,
			AnnotatorCount: slot.AnnotatorCount,
			Flagged:        slot.ReworkFlag != nil,
		}
		if slot.ReworkFlag != nil {
			f.Scenario = slot.ReworkFlag.WorkflowScenario
		}

		c, err := e.consensusRepo.Get(ctx, discussionID, slot.TaskID)
		if err != nil {
			return nil, fmt.Errorf("failed to load consensus: %w", err)
		}
		if c != nil {
			f.HasConsensus = true
			f.Overridden = c.Overridden()
			f.QualityPassed = quality.Passes(c.Data)
		}
		facts = append(facts, f)
	}

	for _, d := range domainwf.Derive(facts) {
		slot := byTask[d.TaskID]
		if d.Preserved {
			pf := PreservedFlag{DiscussionID: discussionID, TaskID: d.TaskID, Status: slot.Status}
			if slot.ReworkFlag != nil {
				pf.Scenario = slot.ReworkFlag.WorkflowScenario
			}
			result.Preserved = append(result.Preserved, pf)
			continue
		}
		if d.Status == slot.Status {
			continue
		}

		result.Changes = append(result.Changes, StatusChange{
			DiscussionID: discussionID,
			TaskID:       d.TaskID,
			From:         slot.Status,
			To:           d.Status,
			Reason:       d.Reason,
		})
		if opts.DryRun {
			continue
		}
		if err := e.setStatus(ctx, slot, d.Status, nil, actor, d.Reason); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// setStatus writes status and flag together and records the change
func (e *engineImpl) setStatus(ctx context.Context, slot *entity.TaskSlot, to domainwf.State, flag *entity.ReworkFlag, actor, reason string) error {
	from := slot.Status
	if err := e.slotRepo.SetStatus(ctx, slot.DiscussionID, slot.TaskID, to, flag); err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	slot.Status = to
	slot.ReworkFlag = flag
	slot.Persisted = true

	if from == to {
		return nil
	}

	history := &entity.StatusHistory{
		DiscussionID:   slot.DiscussionID,
		TaskID:         slot.TaskID,
		PreviousStatus: from.String(),
		NewStatus:      to.String(),
		Reason:         reason,
		Actor:          actor,
		Timestamp:      e.now(),
	}
	if err := e.historyRepo.Create(ctx, history); err != nil {
		return fmt.Errorf("failed to create history record: %w", err)
	}

	e.Emit(ctx, event.NewEvent(event.TypeTaskStatusChanged, slot.DiscussionID, slot.TaskID, map[string]interface{}{
		"previous_status": from.String(),
		"new_status":      to.String(),
		"reason":          reason,
	}).WithActor(actor))
	return nil
}

// fire validates trigger against the slot's machine and applies the resulting state
func (e *engineImpl) fire(ctx context.Context, op string, slot *entity.TaskSlot, trigger domainwf.Trigger, flag *entity.ReworkFlag, actor, reason string) error {
	machine := BuildTaskStateMachine(slot)
	if err := machine.Fire(ctx, trigger); err != nil {
		return &apperr.Error{
			Kind:    apperr.KindConflict,
			Op:      op,
			Message: fmt.Sprintf("task %d of %s is %s", slot.TaskID, slot.DiscussionID, slot.Status),
			Err:     err,
		}
	}
	return e.setStatus(ctx, slot, machine.State(), flag, actor, reason)
}

func (e *engineImpl) ApplyConsensusArrival(ctx context.Context, discussionID string, taskID int, actor string, save func(ctx context.Context) (bool, error)) (domainwf.State, error) {
	const op = "workflow.consensus_arrival"
	var final domainwf.State

	err := e.Within(ctx, discussionID, func(ctx context.Context) error {
		if _, err := e.refresh(ctx, discussionID, RefreshOptions{}); err != nil {
			return err
		}

		slot, err := e.slotRepo.Get(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		if !BuildTaskStateMachine(slot).CanFire(domainwf.TriggerCreateConsensus) {
			return apperr.Conflict(op, "task %d of %s is %s; consensus needs ready_for_consensus or a decided task",
				taskID, discussionID, slot.Status)
		}

		passed, err := save(ctx)
		if err != nil {
			return err
		}

		if err := e.fire(ctx, op, slot, domainwf.TriggerCreateConsensus, nil, actor, "consensus saved"); err != nil {
			return err
		}

		trigger, reason := domainwf.TriggerPassQuality, "consensus passed quality gate"
		if !passed {
			trigger, reason = domainwf.TriggerFailQuality, "consensus failed quality gate"
		}
		if err := e.fire(ctx, op, slot, trigger, nil, actor, reason); err != nil {
			return err
		}

		if _, err := e.refresh(ctx, discussionID, RefreshOptions{}); err != nil {
			return err
		}
		final = slot.Status
		return nil
	})
	if err != nil {
		return "", err
	}

	e.info("Consensus applied", "discussion_id", discussionID, "task_id", taskID, "status", final)
	return final, nil
}

func (e *engineImpl) FailQuality(ctx context.Context, discussionID string, taskID int, actor, reason string) (domainwf.State, error) {
	const op = "workflow.fail_quality"
	var final domainwf.State

	err := e.Within(ctx, discussionID, func(ctx context.Context) error {
		slot, err := e.slotRepo.Get(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		final = slot.Status
		if slot.Sticky() || slot.Status == domainwf.StateQualityFailed {
			return nil
		}

		if err := e.fire(ctx, op, slot, domainwf.TriggerFailQuality, nil, actor, reason); err != nil {
			return err
		}
		if _, err := e.refresh(ctx, discussionID, RefreshOptions{}); err != nil {
			return err
		}
		final = slot.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

func (e *engineImpl) MarkOverridden(ctx context.Context, discussionID string, taskID int, actor string) (domainwf.State, error) {
	var final domainwf.State

	err := e.Within(ctx, discussionID, func(ctx context.Context) error {
		slot, err := e.slotRepo.Get(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		if !slot.Sticky() && !slot.Status.IsDone() {
			if err := e.setStatus(ctx, slot, domainwf.StateConsensusCreated, nil, actor, "consensus overridden"); err != nil {
				return err
			}
		}
		final = slot.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

func (e *engineImpl) UnlockNextTask(ctx context.Context, discussionID string, taskID int, actor string) (domainwf.State, error) {
	const op = "workflow.unlock_next"
	if taskID < domainwf.FirstTask || taskID >= domainwf.LastTask {
		return "", apperr.Validation(op, "task %d has no next task", taskID)
	}

	var final domainwf.State
	err := e.Within(ctx, discussionID, func(ctx context.Context) error {
		if _, err := e.refresh(ctx, discussionID, RefreshOptions{}); err != nil {
			return err
		}

		current, err := e.slotRepo.Get(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		if current.Status != domainwf.StateCompleted && current.Status != domainwf.StateConsensusCreated {
			return apperr.Conflict(op, "task %d of %s is %s; it must be completed or consensus_created",
				taskID, discussionID, current.Status)
		}

		next, err := e.slotRepo.Get(ctx, discussionID, taskID+1)
		if err != nil {
			return err
		}
		if next.Status == domainwf.StateUnlocked || next.Status == domainwf.StateReadyForConsensus {
			final = next.Status
			return nil
		}

		reason := fmt.Sprintf("unlocked after task %d", taskID)
		if err := e.fire(ctx, op, next, domainwf.TriggerUnlock, nil, actor, reason); err != nil {
			return err
		}
		if _, err := e.refresh(ctx, discussionID, RefreshOptions{}); err != nil {
			return err
		}

		next, err = e.slotRepo.Get(ctx, discussionID, taskID+1)
		if err != nil {
			return err
		}
		final = next.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

func (e *engineImpl) FlagRework(ctx context.Context, req FlagRequest) error {
	const op = "workflow.flag_rework"
	if !domainwf.ValidTask(req.TaskID) {
		return apperr.Validation(op, "task id must be 1, 2 or 3, got %d", req.TaskID)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return apperr.Validation(op, "reason is required")
	}
	stopAt, err := domainwf.ParseScenario(req.Scenario)
	if err != nil {
		return apperr.Validation(op, "%v", err)
	}
	if stopAt > 0 && stopAt != req.TaskID {
		return apperr.Validation(op, "scenario %s must name the flagged task %d", req.Scenario, req.TaskID)
	}
	if req.Plain && req.Scenario != "" {
		return apperr.Validation(op, "a plain flag takes no workflow scenario")
	}

	return e.Within(ctx, req.DiscussionID, func(ctx context.Context) error {
		slot, err := e.slotRepo.Get(ctx, req.DiscussionID, req.TaskID)
		if err != nil {
			return err
		}

		flag := &entity.ReworkFlag{
			Reason:           req.Reason,
			WorkflowScenario: req.Scenario,
			FlaggedBy:        req.Actor,
			FlaggedAt:        e.now(),
		}
		trigger := domainwf.TriggerFlagRework
		if req.Plain {
			trigger = domainwf.TriggerFlag
		}
		if err := e.fire(ctx, op, slot, trigger, flag, req.Actor, req.Reason); err != nil {
			return err
		}

		e.Emit(ctx, event.NewEvent(event.TypeReworkFlagged, req.DiscussionID, req.TaskID, map[string]interface{}{
			"reason":            req.Reason,
			"workflow_scenario": req.Scenario,
			"status":            slot.Status.String(),
		}).WithActor(req.Actor))

		_, err = e.refresh(ctx, req.DiscussionID, RefreshOptions{})
		return err
	})
}

func (e *engineImpl) ClearRework(ctx context.Context, discussionID string, taskID int, actor string) (domainwf.State, error) {
	const op = "workflow.clear_rework"
	var final domainwf.State

	err := e.Within(ctx, discussionID, func(ctx context.Context) error {
		slot, err := e.slotRepo.Get(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		if !slot.Sticky() {
			return apperr.Conflict(op, "task %d of %s has no rework flag", taskID, discussionID)
		}

		if slot.Status.IsSticky() {
			err = e.fire(ctx, op, slot, domainwf.TriggerClearFlag, nil, actor, "rework cleared")
		} else {
			err = e.setStatus(ctx, slot, slot.Status, nil, actor, "rework cleared")
		}
		if err != nil {
			return err
		}

		if _, err := e.refresh(ctx, discussionID, RefreshOptions{}); err != nil {
			return err
		}
		slot, err = e.slotRepo.Get(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		final = slot.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

func (e *engineImpl) RecordAnnotation(ctx context.Context, discussionID string, taskID int, actor string) (*entity.TaskSlot, error) {
	const op = "workflow.record_annotation"
	var result *entity.TaskSlot

	err := e.Within(ctx, discussionID, func(ctx context.Context) error {
		count, err := e.annotationRepo.CountDistinctAnnotators(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		slot, err := e.slotRepo.Get(ctx, discussionID, taskID)
		if err != nil {
			return err
		}
		if count != slot.AnnotatorCount {
			if err := e.slotRepo.SetAnnotatorCount(ctx, discussionID, taskID, count); err != nil {
				return err
			}
			slot.AnnotatorCount = count
		}

		if slot.Status == domainwf.StateUnlocked {
			machine := BuildTaskStateMachine(slot)
			if _, err := machine.Peek(ctx, domainwf.TriggerReachQuorum); err == nil {
				reason := fmt.Sprintf("%d of %d annotators", count, slot.Required())
				if err := e.fire(ctx, op, slot, domainwf.TriggerReachQuorum, slot.ReworkFlag, actor, reason); err != nil {
					return err
				}
			}
		}

		if _, err := e.refresh(ctx, discussionID, RefreshOptions{}); err != nil {
			return err
		}
		result, err = e.slotRepo.Get(ctx, discussionID, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *engineImpl) info(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

// Verify interface compliance
var _ WorkflowEngine = (*engineImpl)(nil)
