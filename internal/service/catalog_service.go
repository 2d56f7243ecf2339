package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-planner-api/internal/conflict"
	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/models"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
)

const unknownText = "未知"

type catalogCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListSections(ctx context.Context, courseIDs ...string) ([]models.Section, error)
	ListSchedules(ctx context.Context, courseID string) ([]models.ScheduleRef, error)
}

type catalogSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListCards(ctx context.Context, query string, page, pageSize int) ([]models.SectionRow, int, error)
}

type catalogPlanReader interface {
	ListByUser(ctx context.Context, userID string) ([]models.PlannerEntry, error)
	ListPlannedSchedules(ctx context.Context, userID string) ([]models.ScheduleRef, error)
}

// CatalogService serves read-only course and section views. Course pages are cached when a cache
// is configured.
type CatalogService struct {
	courses  catalogCourseReader
	sections catalogSectionReader
	plans    catalogPlanReader
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogService constructs a CatalogService. cache may be nil.
func NewCatalogService(courses catalogCourseReader, sections catalogSectionReader, plans catalogPlanReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{courses: courses, sections: sections, plans: plans, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ListCourses returns a page of courses and whether it came from the cache. Search requires a
// non-empty query.
func (s *CatalogService) ListCourses(ctx context.Context, filter models.CourseFilter, search bool) (*dto.CoursePage, bool, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	if search && filter.Query == "" {
		return nil, false, appErrors.Clone(appErrors.ErrBadRequest, "q is required")
	}
	filter.Normalize()

	key := fmt.Sprintf("courses:p%d:s%d:sec%t:q=%s", filter.Page, filter.PageSize, filter.IncludeSections, strings.ToLower(filter.Query))
	var cached dto.CoursePage
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if filter.IncludeSections && len(courses) > 0 {
		if err := s.attachSections(ctx, courses); err != nil {
			return nil, false, err
		}
	}

	page := &dto.CoursePage{Items: courses, Pagination: models.NewPagination(filter.Page, filter.PageSize, total)}
	s.cache.Set(ctx, key, page, s.cacheTTL)
	return page, false, nil
}

// GetCourse returns a course with sections and schedules.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	sections, err := s.courses.ListSections(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	course.Sections = sections
	return course, nil
}

// CourseSchedules flattens every schedule of a course.
func (s *CatalogService) CourseSchedules(ctx context.Context, id string) (*dto.CourseSchedules, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "id required")
	}
	refs, err := s.courses.ListSchedules(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}
	return &dto.CourseSchedules{CourseID: id, Schedules: refs}, nil
}

// GetSection returns a section with schedules and owning course.
func (s *CatalogService) GetSection(ctx context.Context, id string) (*models.Section, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "id required")
	}
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// SectionCards lists sections as catalog cards. With a userID the cards also say whether the
// section is already planned, collides with the plan, and can be added.
func (s *CatalogService) SectionCards(ctx context.Context, userID, query string, page, pageSize int) (*dto.SectionCardPage, error) {
	filter := models.CourseFilter{Page: page, PageSize: pageSize}
	filter.Normalize()

	rows, total, err := s.sections.ListCards(ctx, query, filter.Page, filter.PageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}

	var plan planView
	if userID != "" {
		if plan, err = s.loadPlan(ctx, userID); err != nil {
			return nil, err
		}
	}

	cards := make([]models.SectionCard, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, buildCard(row, plan, userID != ""))
	}
	return &dto.SectionCardPage{Items: cards, Pagination: models.NewPagination(filter.Page, filter.PageSize, total)}, nil
}

type planView struct {
	courses   map[string]*string
	schedules []models.ScheduleRef
}

func (s *CatalogService) loadPlan(ctx context.Context, userID string) (planView, error) {
	entries, err := s.plans.ListByUser(ctx, userID)
	if err != nil {
		return planView{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	refs, err := s.plans.ListPlannedSchedules(ctx, userID)
	if err != nil {
		return planView{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan schedules")
	}
	view := planView{courses: make(map[string]*string, len(entries)), schedules: refs}
	for _, e := range entries {
		view.courses[e.CourseID] = e.SectionID
	}
	return view, nil
}

func buildCard(row models.SectionRow, plan planView, identified bool) models.SectionCard {
	department := collapseSpaces(row.CourseDepartment)
	card := models.SectionCard{
		CourseID:       row.CourseID,
		SectionID:      row.ID,
		CourseCode:     row.CourseCode,
		SectionCode:    row.Code,
		Name:           row.CourseName,
		Credits:        row.CourseCredits,
		Teacher:        row.CourseTeacher,
		Required:       row.CourseRequired,
		RequiredText:   requiredText(row.CourseRequired),
		Department:     department,
		DepartmentText: unknownText,
		Grade:          row.CourseGrade,
		Schedules:      conflict.SortSchedules(row.Schedules),
		Location:       row.Location,
		Quota:          row.Quota,
		Enrolled:       row.Enrolled,
		Remaining:      row.Quota - row.Enrolled,
		ConflictWith:   []string{},
	}
	if department != nil {
		card.DepartmentText = *department
	}
	if !identified {
		return card
	}

	pinned, planned := plan.courses[row.CourseID]
	card.IsSelected = planned && (pinned == nil || *pinned == row.ID)
	if !card.IsSelected {
		others := make([]models.ScheduleRef, 0, len(plan.schedules))
		for _, ref := range plan.schedules {
			if ref.CourseID != row.CourseID {
				others = append(others, ref)
			}
		}
		card.ConflictWith = conflict.ConflictingCourses(row.Schedules, others)
		card.IsConflict = len(card.ConflictWith) > 0
	}
	card.CanAdd = !planned && !card.IsConflict && card.Remaining > 0
	return card
}

func requiredText(required *bool) string {
	switch {
	case required == nil:
		return unknownText
	case *required:
		return "必修"
	default:
		return "選修"
	}
}

func collapseSpaces(s *string) *string {
	if s == nil {
		return nil
	}
	clean := strings.Join(strings.Fields(*s), " ")
	if clean == "" {
		return nil
	}
	return &clean
}

func (s *CatalogService) findCourse(ctx context.Context, id string) (*models.Course, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "id required")
	}
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *CatalogService) attachSections(ctx context.Context, courses []models.Course) error {
	ids := make([]string, len(courses))
	index := make(map[string]int, len(courses))
	for i := range courses {
		ids[i] = courses[i].ID
		index[courses[i].ID] = i
		courses[i].Sections = []models.Section{}
	}
	sections, err := s.courses.ListSections(ctx, ids...)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	for _, sec := range sections {
		if i, ok := index[sec.CourseID]; ok {
			courses[i].Sections = append(courses[i].Sections, sec)
		}
	}
	return nil
}
