package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/models"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
)

type stubCourseReader struct {
	courses   []models.Course
	sections  []models.Section
	listCalls int
}

func (s *stubCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	for i := range s.courses {
		if s.courses[i].ID == id {
			c := s.courses[i]
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubCourseReader) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	s.listCalls++
	out := make([]models.Course, len(s.courses))
	copy(out, s.courses)
	return out, len(out), nil
}

func (s *stubCourseReader) ListSections(ctx context.Context, courseIDs ...string) ([]models.Section, error) {
	var out []models.Section
	for _, id := range courseIDs {
		for _, sec := range s.sections {
			if sec.CourseID == id {
				out = append(out, sec)
			}
		}
	}
	return out, nil
}

func (s *stubCourseReader) ListSchedules(ctx context.Context, courseID string) ([]models.ScheduleRef, error) {
	var out []models.ScheduleRef
	for _, sec := range s.sections {
		if sec.CourseID != courseID {
			continue
		}
		for _, sch := range sec.Schedules {
			out = append(out, models.ScheduleRef{Schedule: sch, SectionCode: sec.Code, CourseID: courseID})
		}
	}
	return out, nil
}

type stubSectionReader struct {
	rows []models.SectionRow
}

func (s *stubSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	for _, row := range s.rows {
		if row.ID == id {
			sec := row.Section
			return &sec, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubSectionReader) ListCards(ctx context.Context, query string, page, pageSize int) ([]models.SectionRow, int, error) {
	return s.rows, len(s.rows), nil
}

type memoryCache struct {
	values map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestCatalogServiceListCoursesCaches(t *testing.T) {
	courses := &stubCourseReader{
		courses:  []models.Course{{ID: "c1", Name: "Calculus"}, {ID: "c2", Name: "Art"}},
		sections: []models.Section{{ID: "s1", CourseID: "c1", Code: "A"}},
	}
	cache := NewCacheService(&memoryCache{values: map[string][]byte{}}, NewMetricsService(), time.Minute, nil, true)
	svc := NewCatalogService(courses, &stubSectionReader{}, &mockPlanStore{}, cache, time.Minute, nil)

	page, hit, err := svc.ListCourses(context.Background(), models.CourseFilter{IncludeSections: true}, false)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, page.Items, 2)
	require.Len(t, page.Items[0].Sections, 1)
	assert.Empty(t, page.Items[1].Sections)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 20, page.Pagination.PageSize)
	assert.Equal(t, 2, page.Pagination.TotalCount)

	again, hit, err := svc.ListCourses(context.Background(), models.CourseFilter{IncludeSections: true}, false)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, courses.listCalls)
	assert.Len(t, again.Items, 2)
}

func TestCatalogServiceSearchRequiresQuery(t *testing.T) {
	svc := NewCatalogService(&stubCourseReader{}, &stubSectionReader{}, &mockPlanStore{}, nil, 0, nil)

	_, _, err := svc.ListCourses(context.Background(), models.CourseFilter{Query: "  "}, true)
	assert.ErrorIs(t, err, appErrors.ErrBadRequest)
}

func TestCatalogServiceGetCourseNotFound(t *testing.T) {
	svc := NewCatalogService(&stubCourseReader{}, &stubSectionReader{}, &mockPlanStore{}, nil, 0, nil)

	_, err := svc.GetCourse(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.GetSection(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func cardRows() []models.SectionRow {
	return []models.SectionRow{
		{
			Section:          models.Section{ID: "p1", CourseID: "physics", Code: "A", Quota: 30, Schedules: []models.Schedule{schedule("x1", "p1", 1, 150, 250)}},
			CourseName:       "Physics",
			CourseRequired:   boolPtr(true),
			CourseDepartment: strPtr("  Science   Dept "),
			Enrolled:         10,
		},
		{
			Section:        models.Section{ID: "a1", CourseID: "art", Code: "A", Quota: 5, Schedules: []models.Schedule{schedule("x2", "a1", 3, 100, 200)}},
			CourseName:     "Art",
			CourseRequired: boolPtr(false),
			Enrolled:       5,
		},
		{
			Section:    models.Section{ID: "held-2", CourseID: "held", Code: "B", Quota: 30, Schedules: []models.Schedule{schedule("x3", "held-2", 1, 100, 200)}},
			CourseName: "Calculus",
		},
	}
}

func TestCatalogServiceSectionCardsAnonymous(t *testing.T) {
	_, store, _, _ := plannerFixture()
	svc := NewCatalogService(&stubCourseReader{}, &stubSectionReader{rows: cardRows()}, store, nil, 0, nil)

	page, err := svc.SectionCards(context.Background(), "", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	physics := page.Items[0]
	assert.Equal(t, "必修", physics.RequiredText)
	require.NotNil(t, physics.Department)
	assert.Equal(t, "Science Dept", *physics.Department)
	assert.Equal(t, 20, physics.Remaining)
	assert.False(t, physics.IsConflict)
	assert.False(t, physics.CanAdd)
	assert.Equal(t, "選修", page.Items[1].RequiredText)
	assert.Equal(t, "未知", page.Items[1].DepartmentText)
	assert.Equal(t, "未知", page.Items[2].RequiredText)
}

func TestCatalogServiceSectionCardsForUser(t *testing.T) {
	_, store, _, _ := plannerFixture()
	svc := NewCatalogService(&stubCourseReader{}, &stubSectionReader{rows: cardRows()}, store, nil, 0, nil)

	page, err := svc.SectionCards(context.Background(), "u1", "", 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	physics := page.Items[0]
	assert.True(t, physics.IsConflict)
	assert.Equal(t, []string{"Calculus"}, physics.ConflictWith)
	assert.False(t, physics.CanAdd)

	art := page.Items[1]
	assert.False(t, art.IsConflict)
	assert.Equal(t, 0, art.Remaining)
	assert.False(t, art.CanAdd, "full sections cannot be added")

	other := page.Items[2]
	assert.False(t, other.IsSelected, "plan is pinned to another section")
	assert.False(t, other.IsConflict, "own course schedules are ignored")
	assert.False(t, other.CanAdd)
}
