package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/event"
	"golang.org/x/sync/errgroup"
)

// ReconcileError is a discussion the pass could not process
type ReconcileError struct {
	DiscussionID string `json:"discussion_id"`
	Error        string `json:"error"`
}

// ReconcileResult summarizes one reconciliation pass
type ReconcileResult struct {
	DryRun          bool                     `json:"dry_run"`
	Discussions     int                      `json:"discussions"`
	Updates         []workflow.StatusChange  `json:"updates"`
	PreservedRework []workflow.PreservedFlag `json:"preserved_rework"`
	CountRepairs    []workflow.CountRepair   `json:"count_repairs"`
	Errors          []ReconcileError         `json:"errors"`
	Duration        time.Duration            `json:"duration"`
}

// ReconcileService re-derives every stored status and repairs the drift
type ReconcileService interface {
	// ReconcileStatuses runs as the system; a dry run writes nothing
	ReconcileStatuses(ctx context.Context, dryRun bool) (*ReconcileResult, error)
	// ReconcileAs runs on behalf of an admin
	ReconcileAs(ctx context.Context, actor string, dryRun bool) (*ReconcileResult, error)
}

type reconcileServiceImpl struct {
	discussionRepo port.DiscussionRepository
	userRepo       port.UserRepository
	engine         workflow.WorkflowEngine
	concurrency    int
	logger         Logger
}

// NewReconcileService creates a new ReconcileService.
// concurrency bounds how many discussions are processed at once.
func NewReconcileService(
	discussionRepo port.DiscussionRepository,
	userRepo port.UserRepository,
	engine workflow.WorkflowEngine,
	concurrency int,
	logger Logger,
) ReconcileService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &reconcileServiceImpl{
		discussionRepo: discussionRepo,
		userRepo:       userRepo,
		engine:         engine,
		concurrency:    concurrency,
		logger:         logger,
	}
}

func (s *reconcileServiceImpl) ReconcileAs(ctx context.Context, actor string, dryRun bool) (*ReconcileResult, error) {
	if _, err := authorize(ctx, s.userRepo, "workflow.reconcile", actor, policyAdmin); err != nil {
		return nil, err
	}
	return s.ReconcileStatuses(ctx, dryRun)
}

func (s *reconcileServiceImpl) ReconcileStatuses(ctx context.Context, dryRun bool) (*ReconcileResult, error) {
	started := time.Now()

	discussions, err := s.discussionRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		DryRun:          dryRun,
		Discussions:     len(discussions),
		Updates:         []workflow.StatusChange{},
		PreservedRework: []workflow.PreservedFlag{},
		CountRepairs:    []workflow.CountRepair{},
		Errors:          []ReconcileError{},
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, d := range discussions {
		id := d.ID
		g.Go(func() error {
			r, err := s.engine.Refresh(ctx, id, workflow.RefreshOptions{
				Actor:             entity.SystemActor,
				DryRun:            dryRun,
				RecountAnnotators: true,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("Failed to reconcile discussion", "discussion_id", id, "error", err)
				result.Errors = append(result.Errors, ReconcileError{DiscussionID: id, Error: err.Error()})
				return nil
			}
			result.Updates = append(result.Updates, r.Changes...)
			result.PreservedRework = append(result.PreservedRework, r.Preserved...)
			result.CountRepairs = append(result.CountRepairs, r.Counts...)
			return nil
		})
	}
	_ = g.Wait()

	sortReconcileResult(result)
	result.Duration = time.Since(started)

	if !dryRun {
		s.engine.Emit(ctx, event.NewEvent(event.TypeReconcileCompleted, "", 0, map[string]interface{}{
			"discussions": result.Discussions,
			"updates":     len(result.Updates),
			"preserved":   len(result.PreservedRework),
			"errors":      len(result.Errors),
		}).WithActor(entity.SystemActor))
	}

	s.logger.Info("Reconciliation finished",
		"dry_run", dryRun,
		"discussions", result.Discussions,
		"updates", len(result.Updates),
		"preserved", len(result.PreservedRework),
		"errors", len(result.Errors),
		"duration", result.Duration)
	return result, nil
}

func sortReconcileResult(r *ReconcileResult) {
	sort.Slice(r.Updates, func(i, j int) bool {
		if r.Updates[i].DiscussionID != r.Updates[j].DiscussionID {
			return r.Updates[i].DiscussionID < r.Updates[j].DiscussionID
		}
		return r.Updates[i].TaskID < r.Updates[j].TaskID
	})
	sort.Slice(r.PreservedRework, func(i, j int) bool {
		if r.PreservedRework[i].DiscussionID != r.PreservedRework[j].DiscussionID {
			return r.PreservedRework[i].DiscussionID < r.PreservedRework[j].DiscussionID
		}
		return r.PreservedRework[i].TaskID < r.PreservedRework[j].TaskID
	})
	sort.Slice(r.CountRepairs, func(i, j int) bool {
		if r.CountRepairs[i].DiscussionID != r.CountRepairs[j].DiscussionID {
			return r.CountRepairs[i].DiscussionID < r.CountRepairs[j].DiscussionID
		}
		return r.CountRepairs[i].TaskID < r.CountRepairs[j].TaskID
	})
	sort.Slice(r.Errors, func(i, j int) bool { return r.Errors[i].DiscussionID < r.Errors[j].DiscussionID })
}
