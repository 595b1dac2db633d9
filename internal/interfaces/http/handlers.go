package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/discussion-review/internal/application/service"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	domainwf "github.com/garyjia/discussion-review/internal/domain/workflow"
)

// HeaderActor carries the acting user's email
const HeaderActor = "X-User-Email"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ImportRequest is the body of POST /api/discussions
type ImportRequest struct {
	Discussions []service.DiscussionInput `json:"discussions"`
}

// DeleteRequest is the body of DELETE /api/discussions
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// TaskDataRequest carries raw task data for annotations and consensus
type TaskDataRequest struct {
	Data        map[string]interface{} `json:"data"`
	AnnotatorID string                 `json:"annotator_id,omitempty"`
}

// ReworkRequest is the body of POST .../rework
type ReworkRequest struct {
	Reason   string `json:"reason"`
	Scenario string `json:"workflow_scenario,omitempty"`
	Plain    bool   `json:"plain,omitempty"`
}

// EvaluateRequest is the body of POST /api/quality/evaluate
type EvaluateRequest struct {
	TaskID int                    `json:"task_id"`
	Data   map[string]interface{} `json:"data"`
}

// UserRequest is the body of POST /api/users
type UserRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// StatusResponse reports a task status after an action
type StatusResponse struct {
	DiscussionID string `json:"discussion_id"`
	TaskID       int    `json:"task_id"`
	Status       string `json:"status"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func actor(c *gin.Context) string {
	return c.GetHeader(HeaderActor)
}

// taskParams reads :id and :task; it writes the 400 itself
func taskParams(c *gin.Context) (string, int, bool) {
	taskID, err := strconv.Atoi(c.Param("task"))
	if err != nil {
		badRequest(c, "invalid task id")
		return "", 0, false
	}
	return c.Param("id"), taskID, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// ListDiscussions handles GET /api/discussions
func (h *Handlers) ListDiscussions(c *gin.Context) {
	discussions, err := h.services.Discussions.ListDiscussions(c.Request.Context())
	if err != nil {
		h.respondError(c, "list discussions", err)
		return
	}
	ok(c, discussions)
}

// GetDiscussion handles GET /api/discussions/:id
func (h *Handlers) GetDiscussion(c *gin.Context) {
	d, err := h.services.Discussions.GetDiscussion(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get discussion", err)
		return
	}
	ok(c, d)
}

// ImportDiscussions handles POST /api/discussions
func (h *Handlers) ImportDiscussions(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Discussions.ImportDiscussions(c.Request.Context(), actor(c), req.Discussions)
	if err != nil {
		h.respondError(c, "import discussions", err)
		return
	}
	ok(c, result)
}

// DeleteDiscussions handles DELETE /api/discussions
func (h *Handlers) DeleteDiscussions(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	deleted, err := h.services.Discussions.DeleteDiscussions(c.Request.Context(), actor(c), req.IDs)
	if err != nil {
		h.respondError(c, "delete discussions", err)
		return
	}
	ok(c, gin.H{"deleted": deleted})
}

// ListAnnotations handles GET .../annotations
func (h *Handlers) ListAnnotations(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}

	annotations, err := h.services.Annotations.ListAnnotations(c.Request.Context(), id, taskID)
	if err != nil {
		h.respondError(c, "list annotations", err)
		return
	}
	ok(c, annotations)
}

// SubmitAnnotation handles PUT .../annotations
func (h *Handlers) SubmitAnnotation(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}
	var req TaskDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	slot, err := h.services.Annotations.SubmitAnnotation(c.Request.Context(), actor(c), id, taskID, req.Data)
	if err != nil {
		h.respondError(c, "submit annotation", err)
		return
	}
	ok(c, slot)
}

// GetConsensus handles GET .../consensus
func (h *Handlers) GetConsensus(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}

	consensus, err := h.services.Consensus.GetConsensus(c.Request.Context(), id, taskID)
	if err != nil {
		h.respondError(c, "get consensus", err)
		return
	}
	ok(c, consensus)
}

// SaveConsensus handles PUT .../consensus
func (h *Handlers) SaveConsensus(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}
	var req TaskDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Consensus.CreateOrUpdateConsensus(c.Request.Context(), service.ConsensusRequest{
		DiscussionID: id,
		TaskID:       taskID,
		AnnotatorID:  req.AnnotatorID,
		Data:         req.Data,
		SavedBy:      actor(c),
	})
	if err != nil {
		h.respondError(c, "save consensus", err)
		return
	}
	ok(c, result)
}

// OverrideConsensus handles POST .../consensus/override
func (h *Handlers) OverrideConsensus(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}
	var req TaskDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Consensus.OverrideConsensus(c.Request.Context(), id, taskID, req.Data, actor(c))
	if err != nil {
		h.respondError(c, "override consensus", err)
		return
	}
	ok(c, result)
}

// UnlockNextTask handles POST .../unlock-next
func (h *Handlers) UnlockNextTask(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}

	status, err := h.services.Consensus.UnlockNextTask(c.Request.Context(), actor(c), id, taskID)
	if err != nil {
		h.respondError(c, "unlock next task", err)
		return
	}
	ok(c, StatusResponse{DiscussionID: id, TaskID: taskID + 1, Status: status.String()})
}

// FlagRework handles POST .../rework
func (h *Handlers) FlagRework(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}
	var req ReworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	err := h.services.Consensus.FlagRework(c.Request.Context(), actor(c), workflow.FlagRequest{
		DiscussionID: id,
		TaskID:       taskID,
		Reason:       req.Reason,
		Scenario:     req.Scenario,
		Plain:        req.Plain,
	})
	if err != nil {
		h.respondError(c, "flag rework", err)
		return
	}

	status := domainwf.StateRework
	if req.Plain {
		status = domainwf.StateFlagged
	}
	ok(c, StatusResponse{DiscussionID: id, TaskID: taskID, Status: status.String()})
}

// ClearRework handles DELETE .../rework
func (h *Handlers) ClearRework(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}

	status, err := h.services.Consensus.ClearRework(c.Request.Context(), actor(c), id, taskID)
	if err != nil {
		h.respondError(c, "clear rework", err)
		return
	}
	ok(c, StatusResponse{DiscussionID: id, TaskID: taskID, Status: status.String()})
}

// GetTaskStatusReport handles GET .../report
func (h *Handlers) GetTaskStatusReport(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}

	r, err := h.services.Reports.GetTaskStatusReport(c.Request.Context(), id, taskID)
	if err != nil {
		h.respondError(c, "task status report", err)
		return
	}
	ok(c, r)
}

// GetStatusHistory handles GET .../history
func (h *Handlers) GetStatusHistory(c *gin.Context) {
	id, taskID, valid := taskParams(c)
	if !valid {
		return
	}

	history, err := h.services.Reports.GetStatusHistory(c.Request.Context(), id, taskID)
	if err != nil {
		h.respondError(c, "status history", err)
		return
	}
	ok(c, history)
}

// EvaluateQuality handles POST /api/quality/evaluate
func (h *Handlers) EvaluateQuality(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	outcome, err := h.services.Reports.EvaluateQuality(req.TaskID, req.Data)
	if err != nil {
		h.respondError(c, "evaluate quality", err)
		return
	}
	ok(c, outcome)
}

// Reconcile handles POST /api/admin/reconcile
func (h *Handlers) Reconcile(c *gin.Context) {
	dryRun := false
	if raw := c.Query("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "invalid dry_run value")
			return
		}
		dryRun = v
	}

	result, err := h.services.Reconcile.ReconcileAs(c.Request.Context(), actor(c), dryRun)
	if err != nil {
		h.respondError(c, "reconcile", err)
		return
	}
	ok(c, result)
}

// GetBottleneckReport handles GET /api/reports/bottlenecks
func (h *Handlers) GetBottleneckReport(c *gin.Context) {
	r, err := h.services.Reports.GetBottleneckReport(c.Request.Context())
	if err != nil {
		h.respondError(c, "bottleneck report", err)
		return
	}
	ok(c, r)
}

// DownloadBottleneckReport handles GET /api/reports/bottlenecks.xlsx
func (h *Handlers) DownloadBottleneckReport(c *gin.Context) {
	var buf bytes.Buffer
	r, err := h.services.Reports.ExportBottleneckReport(c.Request.Context(), &buf)
	if err != nil {
		h.respondError(c, "export bottleneck report", err)
		return
	}

	filename := fmt.Sprintf("bottlenecks_%s.xlsx", r.GeneratedAt.UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// SaveBottleneckExport handles POST /api/reports/bottlenecks/export
func (h *Handlers) SaveBottleneckExport(c *gin.Context) {
	path, err := h.services.Reports.SaveBottleneckExport(c.Request.Context())
	if err != nil {
		h.respondError(c, "save bottleneck export", err)
		return
	}
	ok(c, gin.H{"path": path})
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.services.Users.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, "list users", err)
		return
	}
	ok(c, users)
}

// AddUser handles POST /api/users
func (h *Handlers) AddUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.services.Users.AddUser(c.Request.Context(), actor(c), req.Email, req.Role)
	if err != nil {
		h.respondError(c, "add user", err)
		return
	}
	ok(c, user)
}

// RemoveUser handles DELETE /api/users/:email
func (h *Handlers) RemoveUser(c *gin.Context) {
	email := c.Param("email")
	if err := h.services.Users.RemoveUser(c.Request.Context(), actor(c), email); err != nil {
		h.respondError(c, "remove user", err)
		return
	}
	ok(c, gin.H{"removed": email})
}
