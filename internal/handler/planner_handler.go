package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/service"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/response"
)

type plannerService interface {
	AddCourse(ctx context.Context, userID string, req dto.AddCourseRequest) (*models.PlannerItem, error)
	List(ctx context.Context, userID string) ([]models.PlannerEntry, error)
	Remove(ctx context.Context, userID, itemID string) error
}

type planExporter interface {
	Export(ctx context.Context, userID, format string) (*service.ExportResult, error)
}

// PlannerHandler exposes the caller's plan.
type PlannerHandler struct {
	service  plannerService
	exporter planExporter
}

// NewPlannerHandler constructs the handler.
func NewPlannerHandler(svc plannerService, exporter planExporter) *PlannerHandler {
	return &PlannerHandler{service: svc, exporter: exporter}
}

// Add godoc
// @Summary Add a course to the plan
// @Description Rejects duplicates and time conflicts. A conflict response lists every overlapping pair and the sections of the course that would fit.
// @Tags Planner
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AddCourseRequest true "Course to add"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plan-add [post]
func (h *PlannerHandler) Add(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AddCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, "courseId required"))
		return
	}

	item, err := h.service.AddCourse(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.CreatedItem(c, item)
}

// List godoc
// @Summary List the plan
// @Tags Planner
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /planner [get]
func (h *PlannerHandler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []models.PlannerEntry{}
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Remove godoc
// @Summary Remove a plan item
// @Tags Planner
// @Security BearerAuth
// @Param id path string true "Plan item ID"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /planner/{id} [delete]
func (h *PlannerHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), userIDFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the plan as a timetable
// @Tags Planner
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /planner/export [get]
func (h *PlannerHandler) Export(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.exporter.Export(c.Request.Context(), userID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Body)
}
