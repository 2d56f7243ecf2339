package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/conflict"
	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/repository"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/events"
)

type mockCatalog struct {
	courses  map[string]*models.Course
	sections map[string][]models.Section
}

func (m *mockCatalog) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (m *mockCatalog) ListSections(ctx context.Context, courseIDs ...string) ([]models.Section, error) {
	var out []models.Section
	for _, id := range courseIDs {
		out = append(out, m.sections[id]...)
	}
	return out, nil
}

type mockPlanStore struct {
	items     []models.PlannerItem
	refs      map[string][]models.ScheduleRef
	createErr error
	creates   int
}

func (m *mockPlanStore) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.PlannerItem, error) {
	for i := range m.items {
		if m.items[i].UserID == userID && m.items[i].CourseID == courseID {
			item := m.items[i]
			return &item, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPlanStore) ListByUser(ctx context.Context, userID string) ([]models.PlannerEntry, error) {
	var out []models.PlannerEntry
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, models.PlannerEntry{PlannerItem: item})
		}
	}
	return out, nil
}

func (m *mockPlanStore) ListPlannedSchedules(ctx context.Context, userID string) ([]models.ScheduleRef, error) {
	return m.refs[userID], nil
}

func (m *mockPlanStore) Create(ctx context.Context, item *models.PlannerItem) error {
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	item.ID = fmt.Sprintf("item-%d", len(m.items)+1)
	item.CreatedAt = time.Now().UTC()
	m.items = append(m.items, *item)
	return nil
}

func (m *mockPlanStore) Delete(ctx context.Context, userID, id string) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func schedule(id, sectionID string, day, start, end int) models.Schedule {
	return models.Schedule{ID: id, SectionID: sectionID, Day: day, Start: models.IntTime(start), End: models.IntTime(end)}
}

// plannerFixture: user u1 holds course "held" meeting Monday [100,200).
func plannerFixture() (*PlannerService, *mockPlanStore, *capturePublisher, *MetricsService) {
	catalog := &mockCatalog{
		courses: map[string]*models.Course{
			"held":  {ID: "held", Name: "Calculus", Teacher: "Lin"},
			"free":  {ID: "free", Name: "Art", Teacher: "Wu"},
			"clash": {ID: "clash", Name: "Physics", Teacher: "Chen"},
			"split": {ID: "split", Name: "Biology", Teacher: "Hsu"},
		},
		sections: map[string][]models.Section{
			"free":  {{ID: "free-1", CourseID: "free", Code: "A", Schedules: []models.Schedule{schedule("f1", "free-1", 3, 100, 200)}}},
			"clash": {{ID: "clash-1", CourseID: "clash", Code: "A", Schedules: []models.Schedule{schedule("c1", "clash-1", 1, 150, 250)}}},
			"split": {
				{ID: "S1", CourseID: "split", Code: "S1", Schedules: []models.Schedule{schedule("s1", "S1", 1, 150, 250)}},
				{ID: "S2", CourseID: "split", Code: "S2", Schedules: []models.Schedule{schedule("s2", "S2", 2, 100, 200)}},
			},
		},
	}
	held := "held-1"
	store := &mockPlanStore{
		items: []models.PlannerItem{{ID: "existing", UserID: "u1", CourseID: "held", SectionID: &held}},
		refs: map[string][]models.ScheduleRef{
			"u1": {{Schedule: schedule("h1", held, 1, 100, 200), SectionCode: "A", CourseID: "held", CourseName: "Calculus"}},
		},
	}
	pub := &capturePublisher{}
	metrics := NewMetricsService()
	return NewPlannerService(catalog, store, nil, nil, pub, metrics), store, pub, metrics
}

func TestPlannerServiceAddCourseEmptyPlan(t *testing.T) {
	svc, store, pub, metrics := plannerFixture()

	item, err := svc.AddCourse(context.Background(), "u2", dto.AddCourseRequest{CourseID: "clash"})
	require.NoError(t, err)
	assert.Equal(t, "u2", item.UserID)
	assert.Equal(t, "clash", item.CourseID)
	assert.Nil(t, item.SectionID)
	assert.Equal(t, 1, store.creates)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypePlannerItemAdded, pub.events[0].Type)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.plannerAdds.WithLabelValues("CREATED")))
}

func TestPlannerServiceAddCourseDuplicate(t *testing.T) {
	svc, store, pub, _ := plannerFixture()

	_, err := svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "held"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)
	assert.Equal(t, 0, store.creates)
	assert.Empty(t, pub.events)
}

func TestPlannerServiceAddCourseConflict(t *testing.T) {
	svc, store, _, metrics := plannerFixture()

	_, err := svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "clash"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTimeConflict.Code, appErr.Code)
	assert.Equal(t, "週一第 150-200 節衝堂：你選的「Physics」與「Calculus」重疊", appErr.Message)
	assert.Equal(t, 0, store.creates)

	details, ok := appErr.Details.(dto.ConflictDetails)
	require.True(t, ok)
	require.Len(t, details.Conflicts, 1)
	assert.Equal(t, conflict.Span{Start: 150, End: 200, Length: 50}, details.Conflicts[0].Overlap)
	assert.Equal(t, "clash-1", details.Conflicts[0].Candidate.SectionID)
	assert.Equal(t, "held", details.Conflicts[0].Existing.CourseID)
	assert.Equal(t, 0, details.Suggestions.Count)
	require.NotNil(t, details.Suggestions.Reason)
	assert.Equal(t, "此課程沒有任何不衝堂班別", *details.Suggestions.Reason)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.plannerAdds.WithLabelValues("TIME_CONFLICT")))
}

func TestPlannerServiceSuggestsFreeSections(t *testing.T) {
	svc, _, _, _ := plannerFixture()

	_, err := svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "split"})
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	require.Equal(t, appErrors.ErrTimeConflict.Code, appErr.Code)

	details := appErr.Details.(dto.ConflictDetails)
	assert.Equal(t, 1, details.Suggestions.Count)
	require.Len(t, details.Suggestions.Sections, 1)
	assert.Equal(t, "S2", details.Suggestions.Sections[0].SectionID)
	assert.Nil(t, details.Suggestions.Reason)
}

func TestPlannerServicePinnedFreeSectionIsAccepted(t *testing.T) {
	svc, store, _, _ := plannerFixture()
	pin := "S2"

	item, err := svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "split", SectionID: &pin})
	require.NoError(t, err)
	require.NotNil(t, item.SectionID)
	assert.Equal(t, "S2", *item.SectionID)
	assert.Equal(t, 1, store.creates)
}

func TestPlannerServicePinnedConflictingSectionIsRejected(t *testing.T) {
	svc, _, _, _ := plannerFixture()
	pin := "S1"

	_, err := svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "split", SectionID: &pin})
	assert.ErrorIs(t, err, appErrors.ErrTimeConflict)
}

func TestPlannerServiceRejectsForeignSection(t *testing.T) {
	svc, _, _, _ := plannerFixture()
	pin := "free-1"

	_, err := svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "split", SectionID: &pin})
	assert.ErrorIs(t, err, appErrors.ErrBadRequest)
}

func TestPlannerServiceValidation(t *testing.T) {
	svc, _, _, _ := plannerFixture()

	_, err := svc.AddCourse(context.Background(), "", dto.AddCourseRequest{CourseID: "free"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "  "})
	assert.ErrorIs(t, err, appErrors.ErrBadRequest)

	_, err = svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "missing"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestPlannerServiceUniqueViolationIsDuplicate(t *testing.T) {
	svc, store, pub, _ := plannerFixture()
	store.createErr = repository.ErrDuplicateKey

	_, err := svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "free"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)
	assert.Empty(t, pub.events)
}

func TestPlannerServiceStoreFailureIsInternal(t *testing.T) {
	svc, store, _, _ := plannerFixture()
	store.createErr = errors.New("connection reset")

	_, err := svc.AddCourse(context.Background(), "u1", dto.AddCourseRequest{CourseID: "free"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.False(t, appErrors.IsExpected(err))
}

func TestPlannerServiceListAndRemove(t *testing.T) {
	svc, _, _, _ := plannerFixture()

	entries, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, svc.Remove(context.Background(), "u1", "existing"))
	assert.ErrorIs(t, svc.Remove(context.Background(), "u1", "existing"), appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(context.Background(), "", "existing"), appErrors.ErrUnauthorized)

	_, err = svc.List(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
