package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/discussion-review/internal/application/service"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	"github.com/garyjia/discussion-review/internal/domain/agreement"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/quality"
	"github.com/garyjia/discussion-review/internal/domain/report"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

func TestRenderReconcile(t *testing.T) {
	var buf bytes.Buffer
	renderReconcile(&buf, &service.ReconcileResult{
		DryRun:      true,
		Discussions: 2,
		Duration:    1500 * time.Millisecond,
		Updates: []workflow.StatusChange{
			{DiscussionID: "octo_widgets_1", TaskID: 1, From: domainwf.StateLocked, To: domainwf.StateReadyForConsensus, Reason: "quorum reached"},
		},
		CountRepairs: []workflow.CountRepair{{DiscussionID: "octo_widgets_1", TaskID: 1, From: 7, To: 3}},
		Errors:       []service.ReconcileError{{DiscussionID: "octo_widgets_2", Error: "database is locked"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Reconciled 2 discussions in 1.5s (dry run, nothing written)")
	assert.Contains(t, out, "ready_for_consensus")
	assert.Contains(t, out, "Annotator count repairs")
	assert.NotContains(t, out, "Preserved rework flags")
	assert.Contains(t, out, "error: octo_widgets_2: database is locked")
}

func TestRenderBottlenecks(t *testing.T) {
	r := report.BuildBottleneckReport([]report.DiscussionSlots{{
		DiscussionID: "octo_widgets_1",
		Slots: []report.SlotView{
			{DiscussionID: "octo_widgets_1", TaskID: 1, Status: domainwf.StateRework, AnnotatorCount: 3, Required: 3, Flagged: true},
			{DiscussionID: "octo_widgets_1", TaskID: 2, Status: domainwf.StateLocked, Required: 3},
			{DiscussionID: "octo_widgets_1", TaskID: 3, Status: domainwf.StateLocked, Required: 5},
		},
	}}, time.Now())

	var buf bytes.Buffer
	renderBottlenecks(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "1 discussions, 1 stuck")
	assert.Contains(t, out, "rework_flagged")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "[HIGH] Resolve 1 task(s) flagged for rework")
}

func TestRenderTaskStatus(t *testing.T) {
	var buf bytes.Buffer
	renderTaskStatus(&buf, &report.TaskStatusReport{
		DiscussionID:      "octo_widgets_1",
		TaskID:            1,
		Status:            domainwf.StateQualityFailed,
		AnnotationsCount:  3,
		Required:          3,
		RecommendedAction: "Revise the consensus",
		Quality:           &quality.Outcome{TaskID: 1, Failed: []string{"relevance", "clarity"}},
		AgreementAnalysis: &agreement.Analysis{
			AnnotationCount: 3,
			OverallRate:     66.7,
			Fields:          []agreement.FieldAgreement{{Field: "relevance", ConsensusValue: true, Agreed: 2, Total: 3, Rate: 66.7}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "octo_widgets_1 task 1: quality_failed (3/3 annotations)")
	assert.Contains(t, out, "Quality gate: failed (relevance, clarity)")
	assert.Contains(t, out, "Agreement 66.7%")
	assert.Contains(t, out, "2/3")
}

func TestRenderUsers(t *testing.T) {
	var buf bytes.Buffer
	renderUsers(&buf, []*entity.AuthorizedUser{{Email: "ops@example.com", Role: entity.RoleAdmin}})
	assert.Contains(t, buf.String(), "ops@example.com")
	assert.Contains(t, buf.String(), "admin")
}
