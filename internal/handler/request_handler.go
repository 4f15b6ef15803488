package handler

import (
	"net/http"

	"attendance/internal/middleware"
	"attendance/internal/model"
	"attendance/internal/repository"
	"attendance/internal/service"
	"attendance/internal/workflow"
	"attendance/pkg/pagination"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RejectRequestDTO is the optional body of PUT /api/requests/:id/reject
type RejectRequestDTO struct {
	Reason string `json:"reason"`
}

// ResolveResponse is the resolved request plus how the other admins were updated
type ResolveResponse struct {
	Request       *model.AbsenceRequest `json:"request"`
	Retracted     service.FanoutResult  `json:"retracted"`
	OwnerNotified bool                  `json:"owner_notified"`
}

type RequestHandler struct {
	absences service.AbsenceService
	workflow *workflow.Orchestrator
	secret   []byte
}

func NewRequestHandler(absences service.AbsenceService, wf *workflow.Orchestrator, secret []byte) *RequestHandler {
	return &RequestHandler{absences: absences, workflow: wf, secret: secret}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	requests.Use(middleware.RequireRole(h.secret, model.AdminRoles...))
	{
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.GET("/:id/history", h.GetHistory)
		requests.PUT("/:id/approve", h.ApproveRequest)
		requests.PUT("/:id/reject", h.RejectRequest)
	}
}

// ListRequests returns requests, optionally filtered by status and employee.
// A pending filter is ordered oldest first like the review queue.
// @Summary      List absence requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        status       query     string  false  "pending|approved|rejected|cancelled|all"
// @Param        employee_id  query     string  false  "Employee ID"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=response.Page}
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	var filter repository.AbsenceFilter
	if status := c.Query("status"); status != "" && status != "all" {
		filter.Status = model.RequestStatus(status)
		if !filter.Status.Valid() {
			badRequest(c, "invalid status")
			return
		}
	}
	if raw := c.Query("employee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid employee_id")
			return
		}
		filter.EmployeeID = &id
	}

	p := pagination.Parse(c)
	requests, total, err := h.absences.List(c.Request.Context(), filter, p.Offset, p.Limit)
	if err != nil {
		respondError(c, "list_requests", err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, requests, total, p.Page, p.Limit))
}

// GetRequest returns one request with its owner
// @Summary      Get absence request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.AbsenceRequest}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	request, err := h.absences.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get_request", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

// GetHistory returns the audit trail of a request, oldest first
// @Summary      Request history
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]model.RequestHistoryEntry}
// @Router       /api/requests/{id}/history [get]
func (h *RequestHandler) GetHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	entries, err := h.absences.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, "request_history", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// ApproveRequest approves a pending request
// @Summary      Approve request
// @Tags         requests
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=ResolveResponse}
// @Failure      409  {object}  response.Response  "already processed"
// @Router       /api/requests/{id}/approve [put]
func (h *RequestHandler) ApproveRequest(c *gin.Context) {
	h.resolve(c, model.StatusApproved, "")
}

// RejectRequest rejects a pending request
// @Summary      Reject request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Param        id    path      string            true   "Request ID"
// @Param        body  body      RejectRequestDTO  false  "Reason"
// @Success      200   {object}  response.Response{data=ResolveResponse}
// @Failure      409   {object}  response.Response  "already processed"
// @Router       /api/requests/{id}/reject [put]
func (h *RequestHandler) RejectRequest(c *gin.Context) {
	var req RejectRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body, the reason is optional
		req.Reason = ""
	}
	h.resolve(c, model.StatusRejected, req.Reason)
}

func (h *RequestHandler) resolve(c *gin.Context, status model.RequestStatus, reason string) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	actorID, _ := middleware.CurrentEmployeeID(c)
	res, err := h.workflow.Resolve(c.Request.Context(), workflow.ResolveInput{
		RequestID: id,
		Status:    status,
		ActorID:   &actorID,
		Reason:    reason,
	})
	if err != nil {
		respondError(c, "resolve_request", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, ResolveResponse{
		Request:       res.Request,
		Retracted:     res.Retracted,
		OwnerNotified: res.OwnerNotified,
	}))
}
