package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"novacontent/internal/app"
	"novacontent/internal/model"
	"novacontent/internal/queue"
)

const recentJobsLimit = 25

type Triggerer interface {
	Trigger(ctx context.Context, req app.TriggerRequest) (*app.TriggerResult, error)
}

type Productions interface {
	GetProduction(ctx context.Context, id int64) (*model.Production, error)
	ListProductions(ctx context.Context, limit int) ([]*model.Production, error)
}

type Queue interface {
	Stats(ctx context.Context) (*queue.Stats, error)
	List(ctx context.Context, state queue.State, limit int) ([]*queue.Job, error)
	Get(ctx context.Context, id string) (*queue.Job, error)
}

type Handler struct {
	trigger     Triggerer
	productions Productions
	queue       Queue
}

func NewHandler(trigger Triggerer, productions Productions, q Queue) *Handler {
	return &Handler{trigger: trigger, productions: productions, queue: q}
}

type triggerBody struct {
	Topic   string `json:"topic"`
	NicheID int64  `json:"nicheId" binding:"required,gt=0"`
}

// POST /trigger
func (h *Handler) Trigger(c *gin.Context) {
	var body triggerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_input", fmt.Errorf("nicheId is required: %w", err))
		return
	}

	res, err := h.trigger.Trigger(c.Request.Context(), app.TriggerRequest{Topic: body.Topic, NicheID: body.NicheID})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// GET /productions/:id
func (h *Handler) GetProduction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid_production_id", fmt.Errorf("invalid production id %q", c.Param("id")))
		return
	}
	p, err := h.productions.GetProduction(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, p)
}

// GET /productions
func (h *Handler) ListProductions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.productions.ListProductions(c.Request.Context(), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	if list == nil {
		list = []*model.Production{}
	}
	respondOK(c, gin.H{"productions": list})
}

type jobView struct {
	ID           string      `json:"id"`
	ProductionID int64       `json:"productionId"`
	State        queue.State `json:"state"`
	Progress     int         `json:"progress"`
	AttemptsMade int         `json:"attemptsMade"`
	MaxAttempts  int         `json:"maxAttempts"`
	LastError    string      `json:"lastError,omitempty"`
	Result       string      `json:"result,omitempty"`
	CreatedAt    string      `json:"createdAt"`
}

func viewJob(j *queue.Job) jobView {
	return jobView{
		ID:           j.ID,
		ProductionID: j.Payload.ProductionID,
		State:        j.State,
		Progress:     j.Progress,
		AttemptsMade: j.AttemptsMade,
		MaxAttempts:  j.MaxAttempts,
		LastError:    j.LastError,
		Result:       j.Result,
		CreatedAt:    j.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// GET /admin/queues
func (h *Handler) QueueDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.queue.Stats(ctx)
	if err != nil {
		respondErr(c, err)
		return
	}

	state := queue.State(c.Query("state"))
	jobs, err := h.queue.List(ctx, state, recentJobsLimit)
	if err != nil {
		respondErr(c, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, viewJob(j))
	}
	respondOK(c, gin.H{"queue": stats.Queue, "counts": stats.Counts, "jobs": views})
}

// GET /admin/queues/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, viewJob(job))
}

// GET /
func Index(c *gin.Context) {
	c.String(http.StatusOK, "NovaContent Engine is running")
}

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
