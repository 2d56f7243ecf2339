package dto

import "github.com/noah-isme/course-planner-api/internal/models"

// CoursePage is one page of catalog courses.
type CoursePage struct {
	Items      []models.Course    `json:"items"`
	Pagination *models.Pagination `json:"pagination"`
}

// SectionCardPage is one page of section cards.
type SectionCardPage struct {
	Items      []models.SectionCard `json:"items"`
	Pagination *models.Pagination   `json:"pagination"`
}

// CourseSchedules lists every schedule of a course.
type CourseSchedules struct {
	CourseID  string               `json:"courseId"`
	Schedules []models.ScheduleRef `json:"schedules"`
}
