package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-planner-api/internal/models"
)

const (
	courseColumns   = `id, code, name, teacher, credits, department, grade, required, created_at`
	sectionColumns  = `id, course_id, code, quota, location, created_at`
	scheduleColumns = `id, section_id, day, start, "end"`
)

// CourseRepository reads the catalog. The planner never writes to it.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course without its sections.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// List returns a page of courses, newest first, optionally narrowed by a case-insensitive substring
// of name or teacher.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	filter.Normalize()

	baseQuery := `FROM courses`
	var args []interface{}
	if q := strings.TrimSpace(filter.Query); q != "" {
		baseQuery += ` WHERE (LOWER(name) LIKE $1 OR LOWER(teacher) LIKE $1)`
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d", courseColumns, baseQuery, filter.PageSize, filter.Offset())
	courses := make([]models.Course, 0)
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListSections returns the sections of the given courses with their schedules attached, ordered
// by section code.
func (r *CourseRepository) ListSections(ctx context.Context, courseIDs ...string) ([]models.Section, error) {
	if len(courseIDs) == 0 {
		return []models.Section{}, nil
	}
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE course_id = ANY($1) ORDER BY code, id`
	sections := make([]models.Section, 0)
	if err := r.db.SelectContext(ctx, &sections, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	if err := attachSchedules(ctx, r.db, sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ListSchedules returns every schedule of a course with its section identity, ordered by day and start.
func (r *CourseRepository) ListSchedules(ctx context.Context, courseID string) ([]models.ScheduleRef, error) {
	const query = `SELECT sc.id, sc.section_id, sc.day, sc.start, sc."end", s.code AS section_code, c.id AS course_id, c.name AS course_name
FROM schedules sc
JOIN sections s ON s.id = sc.section_id
JOIN courses c ON c.id = s.course_id
WHERE s.course_id = $1
ORDER BY sc.day, sc.start NULLS LAST, s.code`
	refs := make([]models.ScheduleRef, 0)
	if err := r.db.SelectContext(ctx, &refs, query, courseID); err != nil {
		return nil, fmt.Errorf("list course schedules: %w", err)
	}
	return refs, nil
}

func attachSchedules(ctx context.Context, db sqlx.QueryerContext, sections []models.Section) error {
	if len(sections) == 0 {
		return nil
	}
	ids := make([]string, len(sections))
	index := make(map[string]int, len(sections))
	for i := range sections {
		ids[i] = sections[i].ID
		index[sections[i].ID] = i
		sections[i].Schedules = []models.Schedule{}
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE section_id = ANY($1) ORDER BY day, start NULLS LAST, id`
	var schedules []models.Schedule
	if err := sqlx.SelectContext(ctx, db, &schedules, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}
	for _, s := range schedules {
		if i, ok := index[s.SectionID]; ok {
			sections[i].Schedules = append(sections[i].Schedules, s)
		}
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
