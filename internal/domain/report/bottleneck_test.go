package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/workflow"
)

func slot(task int, status workflow.State, count int) SlotView {
	return SlotView{TaskID: task, Status: status, AnnotatorCount: count, Required: workflow.RequiredAnnotators(task)}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		slot     SlotView
		statuses map[int]workflow.State
		want     Category
		ok       bool
	}{
		{
			name:     "blocked after quality failure is expected",
			slot:     slot(2, workflow.StateBlocked, 0),
			statuses: map[int]workflow.State{1: workflow.StateQualityFailed, 2: workflow.StateBlocked},
			want:     CategoryQualityBlocked, ok: true,
		},
		{
			name:     "blocked after completion is a bottleneck",
			slot:     slot(2, workflow.StateBlocked, 0),
			statuses: map[int]workflow.State{1: workflow.StateCompleted, 2: workflow.StateBlocked},
			want:     CategoryBlockedNonQuality, ok: true,
		},
		{
			name:     "quality failure two tasks up",
			slot:     slot(3, workflow.StateBlocked, 0),
			statuses: map[int]workflow.State{1: workflow.StateQualityFailed, 2: workflow.StateBlocked, 3: workflow.StateBlocked},
			want:     CategoryQualityBlocked, ok: true,
		},
		{
			name: "rework wins over everything",
			slot: SlotView{TaskID: 1, Status: workflow.StateRework, AnnotatorCount: 0, Required: 3},
			want: CategoryReworkFlagged, ok: true,
		},
		{
			name: "collecting",
			slot: slot(1, workflow.StateUnlocked, 2),
			want: CategoryCollecting, ok: true,
		},
		{
			name: "ready",
			slot: slot(3, workflow.StateReadyForConsensus, 5),
			want: CategoryReadyForConsensus, ok: true,
		},
		{
			name: "completed is not counted",
			slot: slot(1, workflow.StateCompleted, 3),
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.slot, tt.statuses)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildBottleneckReport(t *testing.T) {
	discussions := []DiscussionSlots{
		{
			DiscussionID: "b_quality",
			Slots: []SlotView{
				slot(1, workflow.StateQualityFailed, 3),
				slot(2, workflow.StateBlocked, 0),
				slot(3, workflow.StateBlocked, 0),
			},
		},
		{
			DiscussionID: "a_stuck",
			Slots: []SlotView{
				slot(1, workflow.StateCompleted, 3),
				slot(2, workflow.StateBlocked, 0),
				slot(3, workflow.StateLocked, 0),
			},
		},
		{
			DiscussionID: "c_ready",
			Slots: []SlotView{
				slot(1, workflow.StateReadyForConsensus, 3),
				slot(2, workflow.StateLocked, 0),
				slot(3, workflow.StateLocked, 0),
			},
		},
	}

	r := BuildBottleneckReport(discussions, time.Unix(0, 0))

	assert.Equal(t, 3, r.TotalDiscussions)
	require.Len(t, r.StuckDiscussions, 2)
	assert.Equal(t, "a_stuck", r.StuckDiscussions[0].DiscussionID)
	assert.Equal(t, "c_ready", r.StuckDiscussions[1].DiscussionID)

	assert.Equal(t, 2, r.CategoryCounts[CategoryQualityBlocked])
	assert.Equal(t, 1, r.CategoryCounts[CategoryBlockedNonQuality])
	assert.Equal(t, 1, r.CategoryCounts[CategoryReadyForConsensus])
	assert.Equal(t, 3, r.CategoryCounts[CategoryCollecting])
	assert.Equal(t, 0, r.CategoryCounts[CategoryReworkFlagged])
	assert.Equal(t, 1, r.TaskCounts[2][CategoryBlockedNonQuality])
	assert.Len(t, r.Slots, 9)

	require.Len(t, r.Recommendations, 4)
	assert.Equal(t, PriorityHigh, r.Recommendations[0].Priority)
	assert.Equal(t, CategoryBlockedNonQuality, r.Recommendations[0].Category)
	assert.Equal(t, PriorityMedium, r.Recommendations[1].Priority)
	assert.Equal(t, PriorityInfo, r.Recommendations[3].Priority)
}

func TestRecommendAction(t *testing.T) {
	s := entity.NewTaskSlot("d", 3)
	s.Status = workflow.StateUnlocked
	assert.Equal(t, "Collect 2 more annotation(s)", RecommendAction(s, 3))

	s.Status = workflow.StateCompleted
	assert.Contains(t, RecommendAction(s, 5), "complete")

	s.Status = workflow.StateRework
	s.ReworkFlag = &entity.ReworkFlag{Reason: "wrong language"}
	assert.Contains(t, RecommendAction(s, 0), "wrong language")
}
