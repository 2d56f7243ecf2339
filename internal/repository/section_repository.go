package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-planner-api/internal/models"
)

// SectionRepository reads sections and the card listing.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByID returns a section with its schedules and owning course.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1 LIMIT 1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find section: %w", err)
	}

	courseQuery := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, courseQuery, section.CourseID); err != nil {
		return nil, fmt.Errorf("find section course: %w", err)
	}
	section.Course = &course

	sections := []models.Section{section}
	if err := attachSchedules(ctx, r.db, sections); err != nil {
		return nil, err
	}
	return &sections[0], nil
}

// ListCards returns a page of sections joined with course fields and enrollment counts, newest first.
func (r *SectionRepository) ListCards(ctx context.Context, query string, page, pageSize int) ([]models.SectionRow, int, error) {
	filter := models.CourseFilter{Page: page, PageSize: pageSize}
	filter.Normalize()

	baseQuery := `FROM sections s JOIN courses c ON c.id = s.course_id`
	var args []interface{}
	if q := strings.TrimSpace(query); q != "" {
		baseQuery += ` WHERE (LOWER(c.name) LIKE $1 OR LOWER(c.teacher) LIKE $1)`
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}

	listQuery := fmt.Sprintf(`SELECT s.id, s.course_id, s.code, s.quota, s.location, s.created_at,
c.code AS course_code, c.name AS course_name, c.teacher AS course_teacher, c.credits AS course_credits,
c.required AS course_required, c.department AS course_department, c.grade AS course_grade,
(SELECT COUNT(*) FROM planner_items p WHERE p.section_id = s.id) AS enrolled
%s ORDER BY s.created_at DESC, s.id LIMIT %d OFFSET %d`, baseQuery, filter.PageSize, filter.Offset())

	rows := make([]models.SectionRow, 0)
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list section cards: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count section cards: %w", err)
	}

	if len(rows) > 0 {
		sections := make([]models.Section, len(rows))
		for i := range rows {
			sections[i] = rows[i].Section
		}
		if err := attachSchedules(ctx, r.db, sections); err != nil {
			return nil, 0, err
		}
		for i := range rows {
			rows[i].Schedules = sections[i].Schedules
		}
	}
	return rows, total, nil
}
