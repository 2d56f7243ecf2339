package dto

import (
	"github.com/noah-isme/course-planner-api/internal/conflict"
)

// AddCourseRequest asks for a course to be added to the caller's plan, optionally pinned to one
// of its sections.
type AddCourseRequest struct {
	CourseID  string  `json:"courseId" validate:"required"`
	SectionID *string `json:"sectionId" validate:"omitempty,min=1"`
}

// ConflictTarget identifies the course that could not be added.
type ConflictTarget struct {
	CourseID   string  `json:"courseId"`
	CourseName *string `json:"courseName"`
	Teacher    *string `json:"teacher"`
	SectionID  *string `json:"sectionId,omitempty"`
}

// Suggestions lists the sections of the target course that fit the current plan.
type Suggestions struct {
	Count    int                       `json:"count"`
	Sections []conflict.SectionVerdict `json:"sections"`
	Reason   *string                   `json:"reason"`
}

// ConflictDetails is the payload returned with TIME_CONFLICT.
type ConflictDetails struct {
	Target      ConflictTarget      `json:"target"`
	Conflicts   []conflict.Conflict `json:"conflicts"`
	Suggestions Suggestions         `json:"suggestions"`
}
