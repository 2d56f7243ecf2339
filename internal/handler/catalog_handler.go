package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/middleware"
	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/pkg/response"
)

type catalogService interface {
	ListCourses(ctx context.Context, filter models.CourseFilter, search bool) (*dto.CoursePage, bool, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	CourseSchedules(ctx context.Context, id string) (*dto.CourseSchedules, error)
	GetSection(ctx context.Context, id string) (*models.Section, error)
	SectionCards(ctx context.Context, userID, query string, page, pageSize int) (*dto.SectionCardPage, error)
}

// CatalogHandler serves course and section reads.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(svc catalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// ListCourses godoc
// @Summary List courses
// @Tags Catalog
// @Produce json
// @Param page query int false "Page" default(1)
// @Param pageSize query int false "Page size (max 100)" default(20)
// @Param include query string false "Set to sections to embed sections"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	h.listCourses(c, false)
}

// SearchCourses godoc
// @Summary Search courses by name or teacher
// @Tags Catalog
// @Produce json
// @Param q query string true "Search text"
// @Param page query int false "Page" default(1)
// @Param pageSize query int false "Page size (max 100)" default(20)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/search [get]
func (h *CatalogHandler) SearchCourses(c *gin.Context) {
	h.listCourses(c, true)
}

func (h *CatalogHandler) listCourses(c *gin.Context, search bool) {
	filter := models.CourseFilter{
		Query:           c.Query("q"),
		Page:            queryInt(c, "page", 1),
		PageSize:        queryInt(c, "pageSize", 20),
		IncludeSections: strings.EqualFold(c.Query("include"), "sections"),
	}
	page, hit, err := h.service.ListCourses(c.Request.Context(), filter, search)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, page.Items, page.Pagination, middleware.ExtractMeta(c))
}

// GetCourse godoc
// @Summary Get a course with its sections
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	course, err := h.service.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// CourseSchedules godoc
// @Summary List every schedule of a course
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/schedules [get]
func (h *CatalogHandler) CourseSchedules(c *gin.Context) {
	schedules, err := h.service.CourseSchedules(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// GetSection godoc
// @Summary Get a section
// @Tags Catalog
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *CatalogHandler) GetSection(c *gin.Context) {
	section, err := h.service.GetSection(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// SectionCards godoc
// @Summary List section cards
// @Description With a caller identity each card also reports isSelected, isConflict, conflictWith and canAdd.
// @Tags Catalog
// @Produce json
// @Param q query string false "Search text"
// @Param page query int false "Page" default(1)
// @Param pageSize query int false "Page size (max 100)" default(20)
// @Success 200 {object} response.Envelope
// @Router /sections/cards [get]
func (h *CatalogHandler) SectionCards(c *gin.Context) {
	page, err := h.service.SectionCards(c.Request.Context(), userIDFromContext(c), c.Query("q"), queryInt(c, "page", 1), queryInt(c, "pageSize", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, page.Pagination, middleware.ExtractMeta(c))
}
