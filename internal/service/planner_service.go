package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner-api/internal/conflict"
	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/repository"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/events"
)

const noFreeSectionReason = "此課程沒有任何不衝堂班別"

type plannerCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListSections(ctx context.Context, courseIDs ...string) ([]models.Section, error)
}

type plannerStore interface {
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.PlannerItem, error)
	ListByUser(ctx context.Context, userID string) ([]models.PlannerEntry, error)
	ListPlannedSchedules(ctx context.Context, userID string) ([]models.ScheduleRef, error)
	Create(ctx context.Context, item *models.PlannerItem) error
	Delete(ctx context.Context, userID, id string) error
}

// PlannerService manages a user's plan. Adding a course runs, in order: identity check, input
// validation, duplicate check, conflict check, insert. Only the insert writes.
type PlannerService struct {
	courses   plannerCourseReader
	items     plannerStore
	validator *validator.Validate
	logger    *zap.Logger
	events    events.Publisher
	metrics   *MetricsService
}

// NewPlannerService constructs a PlannerService.
func NewPlannerService(courses plannerCourseReader, items plannerStore, validate *validator.Validate, logger *zap.Logger, publisher events.Publisher, metrics *MetricsService) *PlannerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &PlannerService{courses: courses, items: items, validator: validate, logger: logger, events: publisher, metrics: metrics}
}

// AddCourse commits a course to the user's plan or explains why it cannot.
func (s *PlannerService) AddCourse(ctx context.Context, userID string, req dto.AddCourseRequest) (*models.PlannerItem, error) {
	item, pairs, err := s.addCourse(ctx, userID, req)
	outcome := "CREATED"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.metrics.RecordPlannerAdd(outcome, pairs)
	return item, err
}

func (s *PlannerService) addCourse(ctx context.Context, userID string, req dto.AddCourseRequest) (*models.PlannerItem, int, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, appErrors.ErrUnauthorized
	}

	req.CourseID = strings.TrimSpace(req.CourseID)
	if err := s.validator.Struct(req); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, "courseId required")
	}

	if _, err := s.items.FindByUserAndCourse(ctx, userID, req.CourseID); err == nil {
		return nil, 0, appErrors.Clone(appErrors.ErrDuplicate, "你已經加入過這門課")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check plan")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	sections, err := s.courses.ListSections(ctx, course.ID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	for i := range sections {
		sections[i].Course = course
	}
	if req.SectionID != nil && !containsSection(sections, *req.SectionID) {
		return nil, 0, appErrors.Clone(appErrors.ErrBadRequest, "sectionId does not belong to course")
	}

	existing, err := s.items.ListPlannedSchedules(ctx, userID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan schedules")
	}

	report := conflict.Evaluate(sections, existing)
	conflicts := report.Conflicts
	if req.SectionID != nil {
		conflicts = conflictsOfSection(conflicts, *req.SectionID)
	}
	if len(conflicts) > 0 {
		return nil, len(conflicts), conflictError(course, req.SectionID, conflicts, report.FreeSections())
	}

	item := &models.PlannerItem{UserID: userID, CourseID: course.ID, SectionID: req.SectionID}
	if err := s.items.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, 0, appErrors.Clone(appErrors.ErrDuplicate, "你已經加入過這門課")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan item")
	}

	_ = s.events.Publish(ctx, events.New(events.TypePlannerItemAdded, events.PlannerItemAdded{
		ItemID:    item.ID,
		UserID:    item.UserID,
		CourseID:  item.CourseID,
		SectionID: item.SectionID,
		CreatedAt: item.CreatedAt,
	}))
	return item, 0, nil
}

// List returns the user's plan.
func (s *PlannerService) List(ctx context.Context, userID string) ([]models.PlannerEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.ErrUnauthorized
	}
	entries, err := s.items.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	return entries, nil
}

// Remove deletes one of the user's plan items.
func (s *PlannerService) Remove(ctx context.Context, userID, itemID string) error {
	if strings.TrimSpace(userID) == "" {
		return appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(itemID) == "" {
		return appErrors.Clone(appErrors.ErrBadRequest, "id required")
	}
	if err := s.items.Delete(ctx, userID, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "plan item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove plan item")
	}
	return nil
}

// Timetable returns every schedule the user is committed to, sorted by day and start.
func (s *PlannerService) Timetable(ctx context.Context, userID string) ([]models.ScheduleRef, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.ErrUnauthorized
	}
	refs, err := s.items.ListPlannedSchedules(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan schedules")
	}
	return refs, nil
}

func conflictError(course *models.Course, sectionID *string, conflicts []conflict.Conflict, free []conflict.SectionVerdict) error {
	first := conflicts[0]
	oldName := first.Existing.CourseName
	if oldName == "" {
		oldName = "已選課程"
	}
	message := fmt.Sprintf("%s第 %d-%d 節衝堂：你選的「%s」與「%s」重疊",
		first.DayText, first.Overlap.Start, first.Overlap.End, course.Name, oldName)

	suggestions := dto.Suggestions{Count: len(free), Sections: free}
	if len(free) == 0 {
		reason := noFreeSectionReason
		suggestions.Reason = &reason
	}
	name, teacher := course.Name, course.Teacher
	details := dto.ConflictDetails{
		Target:      dto.ConflictTarget{CourseID: course.ID, CourseName: &name, Teacher: &teacher, SectionID: sectionID},
		Conflicts:   conflicts,
		Suggestions: suggestions,
	}
	return appErrors.WithDetails(appErrors.ErrTimeConflict, message, details)
}

func containsSection(sections []models.Section, id string) bool {
	for _, s := range sections {
		if s.ID == id {
			return true
		}
	}
	return false
}

func conflictsOfSection(conflicts []conflict.Conflict, sectionID string) []conflict.Conflict {
	out := make([]conflict.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		if c.Candidate.SectionID == sectionID {
			out = append(out, c)
		}
	}
	return out
}
