package models

import "time"

// Course is a catalog entry. The planner never mutates it.
type Course struct {
	ID         string    `db:"id" json:"id"`
	Code       *string   `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	Teacher    string    `db:"teacher" json:"teacher"`
	Credits    int       `db:"credits" json:"credits"`
	Department *string   `db:"department" json:"department"`
	Grade      *string   `db:"grade" json:"grade"`
	Required   *bool     `db:"required" json:"required"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	Sections   []Section `db:"-" json:"sections,omitempty"`
}

// Section is one concrete offering of a course.
type Section struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Code      string     `db:"code" json:"code"`
	Quota     int        `db:"quota" json:"quota"`
	Location  *string    `db:"location" json:"location"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Schedules []Schedule `db:"-" json:"schedules"`
	Course    *Course    `db:"-" json:"course,omitempty"`
}

// CourseFilter describes catalog listing and search parameters.
type CourseFilter struct {
	Query           string
	Page            int
	PageSize        int
	IncludeSections bool
}

// Normalize clamps paging to page >= 1 and 1 <= pageSize <= 100 with a default of 20.
func (f *CourseFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// Offset returns the number of rows to skip for the current page.
func (f CourseFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// SectionCard is the catalog view of a section, annotated for the caller when an identity is known.
type SectionCard struct {
	CourseID       string     `json:"courseId"`
	SectionID      string     `json:"sectionId"`
	CourseCode     *string    `json:"courseCode"`
	SectionCode    string     `json:"sectionCode"`
	Name           string     `json:"name"`
	Credits        int        `json:"credits"`
	Teacher        string     `json:"teacher"`
	Required       *bool      `json:"required"`
	RequiredText   string     `json:"requiredText"`
	Department     *string    `json:"department"`
	DepartmentText string     `json:"departmentText"`
	Grade          *string    `json:"grade"`
	Schedules      []Schedule `json:"schedules"`
	Location       *string    `json:"location"`
	Quota          int        `json:"quota"`
	Enrolled       int        `json:"enrolled"` // plan items pinned to this section; unpinned adds are not counted
	Remaining      int        `json:"remaining"`
	IsSelected     bool       `json:"isSelected"`
	IsConflict     bool       `json:"isConflict"`
	ConflictWith   []string   `json:"conflictWith"`
	CanAdd         bool       `json:"canAdd"`
}

// SectionRow is a section joined with its course and enrollment count, as listed for cards.
type SectionRow struct {
	Section
	CourseCode       *string `db:"course_code"`
	CourseName       string  `db:"course_name"`
	CourseTeacher    string  `db:"course_teacher"`
	CourseCredits    int     `db:"course_credits"`
	CourseRequired   *bool   `db:"course_required"`
	CourseDepartment *string `db:"course_department"`
	CourseGrade      *string `db:"course_grade"`
	Enrolled         int     `db:"enrolled"`
}
