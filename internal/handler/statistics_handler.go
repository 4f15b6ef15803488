package handler

import (
	"net/http"
	"time"

	"attendance/internal/middleware"
	"attendance/internal/model"
	"attendance/internal/service"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	secret            []byte
	loc               *time.Location
}

func NewStatisticsHandler(statisticsService service.StatisticsService, secret []byte, loc *time.Location) *StatisticsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &StatisticsHandler{statisticsService: statisticsService, secret: secret, loc: loc}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	{
		statsGroup.GET("", middleware.RequireRole(h.secret, model.AdminRoles...), h.GetStatistics)
	}
}

func (h *StatisticsHandler) parseBound(raw string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	day, err := time.ParseInLocation("2006-01-02", raw, h.loc)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return day, true
}

// @Summary      Absence statistics
// @Description  Requests by status and type overlapping the window, and approved days per employee
// @Tags         statistics
// @Produce      json
// @Param        from  query string false "Start (YYYY-MM-DD or RFC3339), default first day of month"
// @Param        to    query string false "End (YYYY-MM-DD or RFC3339), default now"
// @Success      200 {object} response.Response{data=model.AbsenceStatistics}
// @Failure      400 {object} response.Response "Invalid date format"
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	now := time.Now().In(h.loc)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.loc)
	to := now

	if raw := c.Query("from"); raw != "" {
		t, ok := h.parseBound(raw, false)
		if !ok {
			badRequest(c, "invalid from, expected YYYY-MM-DD or RFC3339")
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, ok := h.parseBound(raw, true)
		if !ok {
			badRequest(c, "invalid to, expected YYYY-MM-DD or RFC3339")
			return
		}
		to = t
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, "statistics", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
