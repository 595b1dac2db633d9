package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garyjia/discussion-review/internal/application/dispatcher"
	"github.com/garyjia/discussion-review/internal/domain/event"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()
	ctx := context.Background()

	events := []*event.Event{
		event.NewEvent(event.TypeTaskStatusChanged, "d1", 1, map[string]interface{}{"new_status": "completed"}),
		event.NewEvent(event.TypeTaskStatusChanged, "d2", 1, map[string]interface{}{"new_status": "completed"}),
		event.NewEvent(event.TypeReworkFlagged, "d1", 2, map[string]interface{}{"workflow_scenario": "stop_at_task2"}),
		event.NewEvent(event.TypeReworkFlagged, "d1", 3, map[string]interface{}{"reason": "typo"}),
		event.NewEvent(event.TypeRetroactiveCorrection, "d1", 2, map[string]interface{}{"task2_passed": false}),
		event.NewEvent(event.TypeReconcileCompleted, "", 0, map[string]interface{}{"updates": 3, "errors": 1}),
		event.NewEvent(event.TypeDiscussionsImported, "", 0, map[string]interface{}{"created": 2, "skipped": 1}),
	}
	for _, evt := range events {
		require.NoError(t, m.Observe(ctx, evt))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(event.TypeTaskStatusChanged.String())))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("1", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reworkFlags.WithLabelValues("stop_at_task2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reworkFlags.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retroCorrections.WithLabelValues("false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.reconcileUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconcileErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.imported))
}

func TestMetrics_RegisterAndServe(t *testing.T) {
	m := New()
	d := dispatcher.NewDispatcher()
	m.Register(d)
	assert.Equal(t, 1, d.HandlerCount(event.TypeConsensusSaved))

	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeConsensusSaved, "d1", 1, nil)))
	m.ObserveRequest(http.MethodGet, "/api/v1/reports/bottlenecks", http.StatusOK, 15*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	require.NoError(t, d.Close())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `discussion_review_events_total{type="consensus.saved"} 1`)
	assert.Contains(t, body, `discussion_review_http_requests_total{code="200",method="GET",route="/api/v1/reports/bottlenecks"} 1`)
	assert.Contains(t, body, `route="unmatched"`)
}
