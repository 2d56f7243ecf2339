package models

import "time"

// PlannerItem is a user's commitment to a course, optionally pinned to one of its sections.
// At most one item exists per (user, course).
type PlannerItem struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	CourseID  string    `db:"course_id" json:"courseId"`
	SectionID *string   `db:"section_id" json:"sectionId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PlannerEntry is a planner item joined with catalog names for display.
type PlannerEntry struct {
	PlannerItem
	CourseName  string  `db:"course_name" json:"courseName"`
	Teacher     string  `db:"teacher" json:"teacher"`
	Credits     int     `db:"credits" json:"credits"`
	SectionCode *string `db:"section_code" json:"sectionCode"`
}
