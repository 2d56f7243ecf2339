package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionFindByIDLoadsCourseAndSchedules(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM sections WHERE id = $1")).WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "code", "quota", "location", "created_at"}).
			AddRow("s1", "c1", "01", int64(40), nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(courseRowColumns).
			AddRow("c1", nil, "Algorithms", "Lin", int64(3), nil, nil, nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE section_id = ANY($1)")).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "section_id", "day", "start", "end"}).
			AddRow("sc1", "s1", int64(2), int64(300), int64(400)))

	section, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, section.Course)
	assert.Equal(t, "Algorithms", section.Course.Name)
	require.Len(t, section.Schedules, 1)
	assert.Equal(t, 2, section.Schedules[0].Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionListCards(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	cols := []string{"id", "course_id", "code", "quota", "location", "created_at", "course_code", "course_name", "course_teacher",
		"course_credits", "course_required", "course_department", "course_grade", "enrolled"}
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM planner_items p WHERE p.section_id = s.id) AS enrolled") + ".*" +
		regexp.QuoteMeta("ORDER BY s.created_at DESC, s.id LIMIT 20 OFFSET 0")).WithArgs("%lin%").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("s1", "c1", "01", int64(2), nil, now, "CS101", "Algorithms", "Lin", int64(3), false, " Computer\n Science ", nil, int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sections s JOIN courses c")).WithArgs("%lin%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE section_id = ANY($1)")).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "section_id", "day", "start", "end"}))

	rows, total, err := repo.ListCards(context.Background(), "Lin", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Algorithms", rows[0].CourseName)
	assert.Equal(t, 1, rows[0].Enrolled)
	assert.NotNil(t, rows[0].Schedules)
	assert.NoError(t, mock.ExpectationsWereMet())
}
