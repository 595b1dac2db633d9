package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/garyjia/discussion-review/internal/application/port"
	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/report"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportService_EvaluateQuality(t *testing.T) {
	svc := NewReportService(nil, nil, nil, nil, nil, nil, nil, &mockLogger{})

	tests := []struct {
		name       string
		taskID     int
		data       map[string]interface{}
		wantPassed bool
		wantFailed []string
		wantKind   apperr.Kind
	}{
		{name: "task 1 passes", taskID: 1, data: taskOnePass, wantPassed: true},
		{name: "task 1 string truthiness", taskID: 1, data: map[string]interface{}{"relevance": "yes", "learning": "true", "clarity": 1}, wantPassed: true},
		{name: "task 1 fails relevance", taskID: 1, data: taskOneFail, wantFailed: []string{"relevance"}},
		{name: "task 2 execution N/A", taskID: 2, data: map[string]interface{}{"aspects": true, "explanation": true, "execution": "N/A"}, wantPassed: true},
		{name: "task 2 execution missing", taskID: 2, data: map[string]interface{}{"aspects": true, "explanation": true}, wantPassed: true},
		{name: "task 2 not executable", taskID: 2, data: map[string]interface{}{"aspects": true, "explanation": true, "execution": "Error"}, wantFailed: []string{"execution"}},
		{name: "task 3 always passes", taskID: 3, data: taskThreeNo, wantPassed: true},
		{name: "unknown task", taskID: 5, data: taskOnePass, wantKind: apperr.KindValidation},
		{name: "reserved key", taskID: 1, data: map[string]interface{}{"_consensus_metadata": map[string]interface{}{}}, wantKind: apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.EvaluateQuality(tt.taskID, tt.data)
			if tt.wantKind != apperr.KindUnknown {
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, out.Passed)
			assert.Equal(t, tt.wantFailed, out.Failed)
		})
	}
}

func TestReportService_ExportNotConfigured(t *testing.T) {
	svc := NewReportService(nil, nil, nil, nil, nil, nil, nil, &mockLogger{})

	_, err := svc.ExportBottleneckReport(context.Background(), io.Discard)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.SaveBottleneckExport(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestFlow_ExportBottleneckReport(t *testing.T) {
	env := newFlowEnv(t)
	env.importDiscussion(t, 1)

	var buf bytes.Buffer
	r, err := env.reports.ExportBottleneckReport(env.ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, r.TotalDiscussions)
	assert.Equal(t, "xlsx", buf.String())
}

func TestReportService_ExportWriterFailure(t *testing.T) {
	env := newFlowEnv(t)
	env.importDiscussion(t, 1)

	impl := env.reports.(*reportServiceImpl)
	svc := NewReportService(impl.discussionRepo, impl.slotRepo, nil, nil, nil, &mockExporter{
		writeFunc: func(w io.Writer, r *report.BottleneckReport) error { return errors.New("sheet too large") },
	}, &mockStorage{}, &mockLogger{})

	_, err := svc.SaveBottleneckExport(env.ctx)
	assert.ErrorContains(t, err, "sheet too large")
}

// failingDiscussionRepo overrides List and GetByID when the func fields are set
type failingDiscussionRepo struct {
	port.DiscussionRepository
	listFunc    func(ctx context.Context) ([]*entity.Discussion, error)
	getByIDFunc func(ctx context.Context, id string) (*entity.Discussion, error)
}

func (r *failingDiscussionRepo) List(ctx context.Context) ([]*entity.Discussion, error) {
	if r.listFunc != nil {
		return r.listFunc(ctx)
	}
	return r.DiscussionRepository.List(ctx)
}

func (r *failingDiscussionRepo) GetByID(ctx context.Context, id string) (*entity.Discussion, error) {
	if r.getByIDFunc != nil {
		return r.getByIDFunc(ctx, id)
	}
	return r.DiscussionRepository.GetByID(ctx, id)
}

type failingSlotRepo struct {
	port.TaskSlotRepository
	getFunc func(ctx context.Context, discussionID string, taskID int) (*entity.TaskSlot, error)
}

func (r *failingSlotRepo) Get(ctx context.Context, discussionID string, taskID int) (*entity.TaskSlot, error) {
	if r.getFunc != nil {
		return r.getFunc(ctx, discussionID, taskID)
	}
	return r.TaskSlotRepository.Get(ctx, discussionID, taskID)
}

func TestReportService_BottleneckReportDegradesOnListFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   apperr.Kind
		wantErrors []string
	}{
		{
			name:       "store failure degrades",
			err:        apperr.Store("discussion.list", errors.New("database is locked")),
			wantErrors: []string{"discussions: discussion.list: store failure: database is locked"},
		},
		{
			name:       "plain error degrades",
			err:        errors.New("connection reset"),
			wantErrors: []string{"discussions: connection reset"},
		},
		{
			name:     "validation is returned",
			err:      apperr.Validation("discussion.list", "bad filter"),
			wantKind: apperr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &failingDiscussionRepo{listFunc: func(ctx context.Context) ([]*entity.Discussion, error) {
				return nil, tt.err
			}}
			svc := NewReportService(repo, nil, nil, nil, nil, nil, nil, &mockLogger{})

			r, err := svc.GetBottleneckReport(context.Background())
			if tt.wantKind != apperr.KindUnknown {
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, r.TotalDiscussions)
			assert.Empty(t, r.StuckDiscussions)
			assert.Equal(t, tt.wantErrors, r.Errors)
		})
	}
}

func TestReportService_TaskStatusReportDegradesOnReadFailure(t *testing.T) {
	env := newFlowEnv(t)
	id := env.importDiscussion(t, 1)
	impl := env.reports.(*reportServiceImpl)

	t.Run("slot read failure", func(t *testing.T) {
		slots := &failingSlotRepo{
			TaskSlotRepository: impl.slotRepo,
			getFunc: func(ctx context.Context, discussionID string, taskID int) (*entity.TaskSlot, error) {
				return nil, apperr.Store("task_slot.get", errors.New("disk I/O error"))
			},
		}
		svc := NewReportService(impl.discussionRepo, slots, impl.annotationRepo, impl.consensusRepo, impl.historyRepo, nil, nil, &mockLogger{})

		r, err := svc.GetTaskStatusReport(env.ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, id, r.DiscussionID)
		assert.Equal(t, 3, r.Required)
		assert.Equal(t, "No action available", r.RecommendedAction)
		require.Len(t, r.Errors, 1)
		assert.Contains(t, r.Errors[0], "task slot: ")
		assert.Contains(t, r.Errors[0], "disk I/O error")
	})

	t.Run("discussion read failure", func(t *testing.T) {
		discussions := &failingDiscussionRepo{
			DiscussionRepository: impl.discussionRepo,
			getByIDFunc: func(ctx context.Context, id string) (*entity.Discussion, error) {
				return nil, errors.New("connection reset")
			},
		}
		svc := NewReportService(discussions, impl.slotRepo, impl.annotationRepo, impl.consensusRepo, impl.historyRepo, nil, nil, &mockLogger{})

		r, err := svc.GetTaskStatusReport(env.ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, domainwf.StateUnlocked, r.Status)
		assert.Equal(t, []string{"discussion: connection reset"}, r.Errors)
	})

	t.Run("not found is returned", func(t *testing.T) {
		slots := &failingSlotRepo{
			TaskSlotRepository: impl.slotRepo,
			getFunc: func(ctx context.Context, discussionID string, taskID int) (*entity.TaskSlot, error) {
				return nil, apperr.NotFound("task_slot.get", "task slot not found")
			},
		}
		svc := NewReportService(impl.discussionRepo, slots, impl.annotationRepo, impl.consensusRepo, impl.historyRepo, nil, nil, &mockLogger{})

		_, err := svc.GetTaskStatusReport(env.ctx, id, 1)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}
