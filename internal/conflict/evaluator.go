package conflict

import (
	"sort"

	"github.com/noah-isme/course-planner-api/internal/models"
)

// Period is a schedule interval as recorded, before encoding.
type Period struct {
	Start models.TimeValue `json:"start"`
	End   models.TimeValue `json:"end"`
}

// Owner identifies the section a schedule belongs to.
type Owner struct {
	CourseID    string `json:"courseId"`
	CourseName  string `json:"courseName,omitempty"`
	SectionID   string `json:"sectionId"`
	SectionCode string `json:"sectionCode"`
}

// Conflict describes one colliding pair of schedules.
type Conflict struct {
	Day       int    `json:"day"`
	DayText   string `json:"dayText"`
	New       Period `json:"new"`
	Old       Period `json:"old"`
	Overlap   Span   `json:"overlap"`
	Candidate Owner  `json:"newRef"`
	Existing  Owner  `json:"oldRef"`
}

// LabeledSchedule is a schedule prepared for display.
type LabeledSchedule struct {
	Day     int              `json:"day"`
	DayText string           `json:"dayText"`
	Start   models.TimeValue `json:"start"`
	End     models.TimeValue `json:"end"`
}

// SectionVerdict records whether a candidate section fits the existing plan.
type SectionVerdict struct {
	SectionID string            `json:"sectionId"`
	Code      string            `json:"code"`
	Free      bool              `json:"-"`
	Schedules []LabeledSchedule `json:"schedules"`
}

// Report is the outcome of evaluating a candidate course against a plan.
type Report struct {
	Conflicts []Conflict
	Sections  []SectionVerdict
}

// HasConflicts reports whether any candidate schedule collides with the plan.
func (r *Report) HasConflicts() bool {
	return r != nil && len(r.Conflicts) > 0
}

// FreeSections returns candidate sections with no collision, in evaluation order.
func (r *Report) FreeSections() []SectionVerdict {
	if r == nil {
		return nil
	}
	free := make([]SectionVerdict, 0, len(r.Sections))
	for _, s := range r.Sections {
		if s.Free {
			free = append(free, s)
		}
	}
	return free
}

type encoded struct {
	day        int
	start, end int
}

// Evaluate compares every schedule of the candidate sections against the existing schedules.
// Schedules with an unreadable or empty interval never collide.
func Evaluate(candidates []models.Section, existing []models.ScheduleRef) *Report {
	olds := SortRefs(existing)
	oldEnc := make([]*encoded, len(olds))
	for i, o := range olds {
		if s, e, ok := bounds(o.Start, o.End); ok {
			oldEnc[i] = &encoded{day: o.Day, start: s, end: e}
		}
	}

	report := &Report{Conflicts: []Conflict{}, Sections: make([]SectionVerdict, 0, len(candidates))}
	for _, section := range candidates {
		schedules := SortSchedules(section.Schedules)
		verdict := SectionVerdict{SectionID: section.ID, Code: section.Code, Free: true, Schedules: Label(schedules)}
		owner := Owner{CourseID: section.CourseID, SectionID: section.ID, SectionCode: section.Code}
		if section.Course != nil {
			owner.CourseName = section.Course.Name
		}

		for _, sched := range schedules {
			ns, ne, ok := bounds(sched.Start, sched.End)
			if !ok {
				continue
			}
			for i, old := range olds {
				enc := oldEnc[i]
				if enc == nil || enc.day != sched.Day || !Overlaps(ns, ne, enc.start, enc.end) {
					continue
				}
				verdict.Free = false
				report.Conflicts = append(report.Conflicts, Conflict{
					Day:       sched.Day,
					DayText:   DayText(sched.Day),
					New:       Period{Start: sched.Start, End: sched.End},
					Old:       Period{Start: old.Start, End: old.End},
					Overlap:   OverlapSpan(ns, ne, enc.start, enc.end),
					Candidate: owner,
					Existing: Owner{
						CourseID:    old.CourseID,
						CourseName:  old.CourseName,
						SectionID:   old.SectionID,
						SectionCode: old.SectionCode,
					},
				})
			}
		}
		report.Sections = append(report.Sections, verdict)
	}
	return report
}

// ConflictingCourses returns the distinct names of existing courses colliding with the given
// schedules, in the order they are first found.
func ConflictingCourses(schedules []models.Schedule, existing []models.ScheduleRef) []string {
	report := Evaluate([]models.Section{{Schedules: schedules}}, existing)
	names := make([]string, 0)
	seen := make(map[string]struct{})
	for _, c := range report.Conflicts {
		name := c.Existing.CourseName
		if name == "" {
			name = c.Existing.CourseID
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// SortSchedules returns a copy ordered by day then start minute. Unreadable starts sort last
// within their day.
func SortSchedules(schedules []models.Schedule) []models.Schedule {
	out := make([]models.Schedule, len(schedules))
	copy(out, schedules)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// SortRefs is SortSchedules for schedules carrying their owner.
func SortRefs(refs []models.ScheduleRef) []models.ScheduleRef {
	out := make([]models.ScheduleRef, len(refs))
	copy(out, refs)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i].Schedule, out[j].Schedule) })
	return out
}

// Label attaches day names to schedules.
func Label(schedules []models.Schedule) []LabeledSchedule {
	out := make([]LabeledSchedule, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, LabeledSchedule{Day: s.Day, DayText: DayText(s.Day), Start: s.Start, End: s.End})
	}
	return out
}

func less(a, b models.Schedule) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	as, aok := ToMinute(a.Start)
	bs, bok := ToMinute(b.Start)
	switch {
	case aok && bok:
		return as < bs
	case aok:
		return true
	default:
		return false
	}
}
