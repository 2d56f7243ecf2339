package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-planner-api/internal/models"
)

func TestToMinute(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  int
		ok    bool
	}{
		{name: "compact clock", input: "0910", want: 550, ok: true},
		{name: "colon clock", input: "09:10", want: 550, ok: true},
		{name: "short hour", input: "9:10", want: 550, ok: true},
		{name: "integer passes through", input: 550, want: 550, ok: true},
		{name: "int64 passes through", input: int64(7), want: 7, ok: true},
		{name: "whole float", input: float64(200), want: 200, ok: true},
		{name: "fractional float", input: 1.5, ok: false},
		{name: "garbage", input: "abc", ok: false},
		{name: "three digits", input: "910", ok: false},
		{name: "empty", input: "", ok: false},
		{name: "nil", input: nil, ok: false},
		{name: "time value int", input: models.IntTime(150), want: 150, ok: true},
		{name: "time value text", input: models.TextTime("1030"), want: 630, ok: true},
		{name: "time value null", input: models.TimeValue{}, ok: false},
		{name: "unsupported type", input: true, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToMinute(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBoundsRejectsEmptyInterval(t *testing.T) {
	_, _, ok := bounds(models.IntTime(200), models.IntTime(200))
	assert.False(t, ok)

	_, _, ok = bounds(models.IntTime(100), models.TimeValue{})
	assert.False(t, ok)

	s, e, ok := bounds(models.TextTime("08:00"), models.TextTime("0930"))
	assert.True(t, ok)
	assert.Equal(t, 480, s)
	assert.Equal(t, 570, e)
}

func TestDayText(t *testing.T) {
	assert.Equal(t, "週一", DayText(1))
	assert.Equal(t, "週日", DayText(7))
	assert.Equal(t, "週9", DayText(9))
}
