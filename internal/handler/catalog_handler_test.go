package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/middleware"
	"github.com/noah-isme/course-planner-api/internal/models"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
)

type fakeCatalogService struct {
	lastFilter models.CourseFilter
	lastSearch bool
	lastUser   string
	hit        bool
}

func (f *fakeCatalogService) ListCourses(ctx context.Context, filter models.CourseFilter, search bool) (*dto.CoursePage, bool, error) {
	f.lastFilter, f.lastSearch = filter, search
	if search && filter.Query == "" {
		return nil, false, appErrors.Clone(appErrors.ErrBadRequest, "q is required")
	}
	return &dto.CoursePage{
		Items:      []models.Course{{ID: "c1", Name: "Calculus"}},
		Pagination: models.NewPagination(filter.Page, filter.PageSize, 1),
	}, f.hit, nil
}

func (f *fakeCatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	if id != "c1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return &models.Course{ID: "c1"}, nil
}

func (f *fakeCatalogService) CourseSchedules(ctx context.Context, id string) (*dto.CourseSchedules, error) {
	return &dto.CourseSchedules{CourseID: id, Schedules: []models.ScheduleRef{}}, nil
}

func (f *fakeCatalogService) GetSection(ctx context.Context, id string) (*models.Section, error) {
	return nil, errors.New("boom")
}

func (f *fakeCatalogService) SectionCards(ctx context.Context, userID, query string, page, pageSize int) (*dto.SectionCardPage, error) {
	f.lastUser = userID
	return &dto.SectionCardPage{Items: []models.SectionCard{}, Pagination: models.NewPagination(page, pageSize, 0)}, nil
}

func catalogRouter(svc *fakeCatalogService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	if userID != "" {
		r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserIDKey, userID) })
	}
	h := NewCatalogHandler(svc)
	r.GET("/courses", h.ListCourses)
	r.GET("/courses/search", h.SearchCourses)
	r.GET("/courses/:id", h.GetCourse)
	r.GET("/courses/:id/schedules", h.CourseSchedules)
	r.GET("/sections/cards", h.SectionCards)
	r.GET("/sections/:id", h.GetSection)
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCatalogHandlerListCourses(t *testing.T) {
	svc := &fakeCatalogService{hit: true}
	rec := get(catalogRouter(svc, ""), "/courses?page=2&pageSize=5&include=sections")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 5, svc.lastFilter.PageSize)
	assert.True(t, svc.lastFilter.IncludeSections)
	assert.False(t, svc.lastSearch)

	var envelope struct {
		Data       []models.Course        `json:"data"`
		Pagination models.Pagination      `json:"pagination"`
		Meta       map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)
	assert.Equal(t, 2, envelope.Pagination.Page)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestCatalogHandlerSearchRequiresQuery(t *testing.T) {
	svc := &fakeCatalogService{}
	rec := get(catalogRouter(svc, ""), "/courses/search")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, svc.lastSearch)
}

func TestCatalogHandlerCourseLookup(t *testing.T) {
	r := catalogRouter(&fakeCatalogService{}, "")

	assert.Equal(t, http.StatusOK, get(r, "/courses/c1").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/courses/nope").Code)
	assert.Equal(t, http.StatusOK, get(r, "/courses/c1/schedules").Code)
}

func TestCatalogHandlerHidesInternalErrors(t *testing.T) {
	rec := get(catalogRouter(&fakeCatalogService{}, ""), "/sections/s1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestCatalogHandlerSectionCardsPassesIdentity(t *testing.T) {
	svc := &fakeCatalogService{}
	rec := get(catalogRouter(svc, "u1"), "/sections/cards?page=x")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", svc.lastUser)
}
