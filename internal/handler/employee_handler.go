package handler

import (
	"net/http"

	"attendance/internal/middleware"
	"attendance/internal/model"
	"attendance/internal/service"
	"attendance/internal/workflow"
	"attendance/pkg/pagination"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateEmployeeRequest is the body of POST /api/employees
type CreateEmployeeRequest struct {
	service.CreateEmployeeInput
	WithInvite bool `json:"with_invite"`
}

// CreateEmployeeResponse carries the new employee and, when requested, the first code
type CreateEmployeeResponse struct {
	Employee *model.Employee    `json:"employee"`
	Invite   *model.InviteToken `json:"invite,omitempty"`
}

// SetRoleRequest is the body of PUT /api/employees/:id/role
type SetRoleRequest struct {
	Role model.Role `json:"role" binding:"required"`
}

type EmployeeHandler struct {
	employees service.EmployeeService
	workflow  *workflow.Orchestrator
	secret    []byte
}

func NewEmployeeHandler(employees service.EmployeeService, wf *workflow.Orchestrator, secret []byte) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, workflow: wf, secret: secret}
}

func (h *EmployeeHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/employees")
	group.Use(middleware.RequireRole(h.secret, model.AdminRoles...))
	{
		group.GET("", h.ListEmployees)
		group.POST("", h.CreateEmployee)
		group.GET("/:id", h.GetEmployee)
		group.DELETE("/:id", h.DeleteEmployee)
		group.PUT("/:id/role", h.SetRole)
		group.POST("/:id/deactivate", h.Deactivate)
		group.POST("/:id/invites", h.IssueInvite)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// ListEmployees returns employees ordered by surname
// @Summary      List employees
// @Tags         employees
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/employees [get]
func (h *EmployeeHandler) ListEmployees(c *gin.Context) {
	p := pagination.Parse(c)
	employees, total, err := h.employees.List(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, "list_employees", err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, employees, total, p.Page, p.Limit))
}

// CreateEmployee adds an employee, optionally issuing the first invite code
// @Summary      Create employee
// @Tags         employees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      CreateEmployeeRequest  true  "Employee"
// @Success      201   {object}  response.Response{data=CreateEmployeeResponse}
// @Failure      400   {object}  response.Response
// @Failure      409   {object}  response.Response
// @Router       /api/employees [post]
func (h *EmployeeHandler) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	employee, invite, err := h.employees.Create(c.Request.Context(), req.CreateEmployeeInput, req.WithInvite)
	if err != nil {
		respondError(c, "create_employee", err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, CreateEmployeeResponse{Employee: employee, Invite: invite}))
}

// GetEmployee returns one employee
// @Summary      Get employee
// @Tags         employees
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Employee ID"
// @Success      200  {object}  response.Response{data=model.Employee}
// @Failure      404  {object}  response.Response
// @Router       /api/employees/{id} [get]
func (h *EmployeeHandler) GetEmployee(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	employee, err := h.employees.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get_employee", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, employee))
}

// DeleteEmployee removes an employee with everything that belongs to them
// @Summary      Delete employee
// @Tags         employees
// @Security     BearerAuth
// @Param        id   path      string  true  "Employee ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response  "superuser is protected"
// @Router       /api/employees/{id} [delete]
func (h *EmployeeHandler) DeleteEmployee(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.employees.Delete(c.Request.Context(), id); err != nil {
		respondError(c, "delete_employee", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": id}))
}

// SetRole switches an employee between member and admin
// @Summary      Set employee role
// @Tags         employees
// @Security     BearerAuth
// @Accept       json
// @Param        id    path      string          true  "Employee ID"
// @Param        body  body      SetRoleRequest  true  "Role"
// @Success      200   {object}  response.Response{data=model.Employee}
// @Router       /api/employees/{id}/role [put]
func (h *EmployeeHandler) SetRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	employee, err := h.employees.SetRole(c.Request.Context(), id, req.Role)
	if err != nil {
		respondError(c, "set_role", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, employee))
}

// Deactivate stops notifications to an employee without deleting history
// @Summary      Deactivate employee
// @Tags         employees
// @Security     BearerAuth
// @Param        id   path      string  true  "Employee ID"
// @Success      200  {object}  response.Response{data=model.Employee}
// @Router       /api/employees/{id}/deactivate [post]
func (h *EmployeeHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	employee, err := h.employees.Deactivate(c.Request.Context(), id)
	if err != nil {
		respondError(c, "deactivate_employee", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, employee))
}

// IssueInvite supersedes earlier codes and issues a new one
// @Summary      Issue invite code
// @Tags         employees
// @Security     BearerAuth
// @Param        id   path      string  true  "Employee ID"
// @Success      201  {object}  response.Response{data=model.InviteToken}
// @Router       /api/employees/{id}/invites [post]
func (h *EmployeeHandler) IssueInvite(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	issuer, _ := middleware.CurrentEmployeeID(c)
	res, err := h.workflow.IssueInviteByID(c.Request.Context(), id, issuer)
	if err != nil {
		respondError(c, "issue_invite", err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res.Token))
}
