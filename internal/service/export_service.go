package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/course-planner-api/internal/conflict"
	"github.com/noah-isme/course-planner-api/internal/models"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/export"
)

type timetableSource interface {
	Timetable(ctx context.Context, userID string) ([]models.ScheduleRef, error)
}

// ExportResult is a rendered timetable ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// PlanExportService renders a user's timetable as CSV, PDF or XLSX.
type PlanExportService struct {
	plans     timetableSource
	renderers map[export.Format]export.Renderer
	now       func() time.Time
}

// NewPlanExportService constructs the service with the default renderers.
func NewPlanExportService(plans timetableSource) *PlanExportService {
	renderers := make(map[export.Format]export.Renderer, 3)
	for _, f := range []export.Format{export.FormatCSV, export.FormatPDF, export.FormatXLSX} {
		renderers[f] = export.NewRenderer(f)
	}
	return &PlanExportService{plans: plans, renderers: renderers, now: time.Now}
}

// Export renders the user's timetable in the requested format.
func (s *PlanExportService) Export(ctx context.Context, userID, format string) (*ExportResult, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, "format must be csv, pdf or xlsx")
	}

	refs, err := s.plans.Timetable(ctx, userID)
	if err != nil {
		return nil, err
	}

	body, err := s.renderers[f].Render(TimetableDataset(refs))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("plan-%s.%s", s.now().Format("20060102"), f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

// TimetableDataset lays out one row per schedule ordered by day then start.
func TimetableDataset(refs []models.ScheduleRef) export.Dataset {
	data := export.Dataset{
		Title:   "Course Plan",
		Headers: []string{"Day", "Start", "End", "Course", "Section"},
		Rows:    make([][]string, 0, len(refs)),
	}
	for _, ref := range conflict.SortRefs(refs) {
		data.Rows = append(data.Rows, []string{
			conflict.DayText(ref.Day),
			ref.Start.String(),
			ref.End.String(),
			ref.CourseName,
			ref.SectionCode,
		})
	}
	return data
}
