package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/infrastructure/monitoring"
	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/notify"
	"github.com/scriptgate/scriptgate/internal/queue"
	"github.com/scriptgate/scriptgate/internal/shared/types"
	"github.com/scriptgate/scriptgate/internal/validator"
)

// Handlers bundles the HTTP endpoints over the validator and the
// admission queue.
type Handlers struct {
	validator *validator.Validator
	queue     *queue.Queue
	notifier  *notify.Notifier
	metrics   *monitoring.Metrics
	logger    *logging.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(v *validator.Validator, q *queue.Queue, n *notify.Notifier, m *monitoring.Metrics, logger *logging.Logger) *Handlers {
	return &Handlers{
		validator: v,
		queue:     q,
		notifier:  n,
		metrics:   m,
		logger:    logger,
	}
}

// Root returns service information.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "scriptgate",
		"status":  "running",
	})
}

// Health returns service health and current queue load.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"queue":  h.queue.Stats(),
	})
}

type validateRequest struct {
	Script string `json:"script"`
}

// ValidateScript runs the static validator over one script and returns
// the verdict. Invalid scripts are a normal 200 response; line/column
// are surfaced for editor diagnostics.
func (h *Handlers) ValidateScript(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	result := h.validator.Validate(req.Script)
	if h.metrics != nil {
		h.metrics.RecordValidation(result.Valid, string(result.ErrorType))
	}
	c.JSON(http.StatusOK, result)
}

type submitScript struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Script string `json:"script" binding:"required"`
}

type submitRequest struct {
	JobID          string         `json:"job_id" binding:"required"`
	RunID          string         `json:"run_id"`
	Trigger        string         `json:"trigger"`
	OrganizationID string         `json:"organization_id"`
	ProjectID      string         `json:"project_id"`
	Scripts        []submitScript `json:"scripts" binding:"required,min=1"`
}

// SubmitRun validates every script of the task and submits it for
// admission. 202 means executing now, 200 means queued, 429 means the
// capacity limit was hit and the run will never start unless
// resubmitted.
func (h *Handlers) SubmitRun(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body: " + err.Error(),
		})
		return
	}

	trigger := types.Trigger(req.Trigger)
	if req.Trigger == "" {
		trigger = types.TriggerManual
	}
	if !trigger.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "unknown trigger kind: " + req.Trigger,
		})
		return
	}

	// Every script must pass validation before the task may be
	// submitted; the first failure reports which script broke the rules.
	scripts := make([]types.TestScript, 0, len(req.Scripts))
	for _, s := range req.Scripts {
		result := h.validator.Validate(s.Script)
		if h.metrics != nil {
			h.metrics.RecordValidation(result.Valid, string(result.ErrorType))
		}
		if !result.Valid {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success":    false,
				"error":      "script validation failed",
				"script_id":  s.ID,
				"validation": result,
			})
			return
		}
		scripts = append(scripts, types.TestScript{ID: s.ID, Name: s.Name, Script: s.Script})
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	task := types.JobExecutionTask{
		JobID:          req.JobID,
		RunID:          runID,
		TestScripts:    scripts,
		Trigger:        trigger,
		OrganizationID: req.OrganizationID,
		ProjectID:      req.ProjectID,
	}

	decision, err := h.queue.Submit(task)
	if err != nil {
		if errors.Is(err, queue.ErrCapacityExceeded) {
			h.notifier.RunRejected(task, err.Error(), h.queue.Stats())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"run_id":  runID,
				"error":   err.Error(),
			})
			return
		}
		h.logger.Error("submit failed", zap.String("run_id", runID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	h.notifier.RunSubmitted(task, decision.String(), h.queue.Stats())

	status := http.StatusOK
	if decision == queue.DecisionAdmitted {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"success":  true,
		"run_id":   runID,
		"decision": decision.String(),
		"stats":    h.queue.Stats(),
	})
}

// QueueStats returns a consistent snapshot of queue load for observers
// that poll instead of streaming.
func (h *Handlers) QueueStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.queue.Stats(),
	})
}
