package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-planner-api/internal/models"
)

// PlannerRepository persists planner items.
type PlannerRepository struct {
	db *sqlx.DB
}

// NewPlannerRepository constructs the repository.
func NewPlannerRepository(db *sqlx.DB) *PlannerRepository {
	return &PlannerRepository{db: db}
}

// FindByUserAndCourse returns the user's item for a course.
func (r *PlannerRepository) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.PlannerItem, error) {
	const query = `SELECT id, user_id, course_id, section_id, created_at FROM planner_items WHERE user_id = $1 AND course_id = $2 LIMIT 1`
	var item models.PlannerItem
	if err := r.db.GetContext(ctx, &item, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find planner item: %w", err)
	}
	return &item, nil
}

// ListByUser returns the user's items with catalog names, oldest first.
func (r *PlannerRepository) ListByUser(ctx context.Context, userID string) ([]models.PlannerEntry, error) {
	const query = `SELECT p.id, p.user_id, p.course_id, p.section_id, p.created_at,
c.name AS course_name, c.teacher, c.credits, s.code AS section_code
FROM planner_items p
JOIN courses c ON c.id = p.course_id
LEFT JOIN sections s ON s.id = p.section_id
WHERE p.user_id = $1
ORDER BY p.created_at, p.id`
	entries := make([]models.PlannerEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list planner items: %w", err)
	}
	return entries, nil
}

// ListPlannedSchedules returns every schedule the user is committed to. An item pinned to a section
// contributes that section only; otherwise all sections of the course count.
func (r *PlannerRepository) ListPlannedSchedules(ctx context.Context, userID string) ([]models.ScheduleRef, error) {
	const query = `SELECT sc.id, sc.section_id, sc.day, sc.start, sc."end", s.code AS section_code, c.id AS course_id, c.name AS course_name
FROM planner_items p
JOIN courses c ON c.id = p.course_id
JOIN sections s ON s.course_id = p.course_id AND (p.section_id IS NULL OR s.id = p.section_id)
JOIN schedules sc ON sc.section_id = s.id
WHERE p.user_id = $1
ORDER BY sc.day, sc.start NULLS LAST, s.code`
	refs := make([]models.ScheduleRef, 0)
	if err := r.db.SelectContext(ctx, &refs, query, userID); err != nil {
		return nil, fmt.Errorf("list planned schedules: %w", err)
	}
	return refs, nil
}

// Create inserts an item. A concurrent insert for the same (user, course) yields ErrDuplicateKey.
func (r *PlannerRepository) Create(ctx context.Context, item *models.PlannerItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO planner_items (id, user_id, course_id, section_id, created_at) VALUES (:id, :user_id, :course_id, :section_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create planner item: %w", err)
	}
	return nil
}

// Delete removes one of the user's items. It returns sql.ErrNoRows when nothing matched.
func (r *PlannerRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM planner_items WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete planner item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete planner item: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
