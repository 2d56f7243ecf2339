package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// Schedule is one weekly meeting block [start, end) of a section on a day from 1 (Monday) to 7.
type Schedule struct {
	ID        string    `db:"id" json:"id"`
	SectionID string    `db:"section_id" json:"section_id"`
	Day       int       `db:"day" json:"day"`
	Start     TimeValue `db:"start" json:"start"`
	End       TimeValue `db:"end" json:"end"`
}

// ScheduleRef is a schedule joined with the identity of its section and course.
type ScheduleRef struct {
	Schedule
	SectionCode string `db:"section_code" json:"section_code"`
	CourseID    string `db:"course_id" json:"course_id"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// TimeValue is a schedule endpoint exactly as it was recorded: an integer, a clock string such as
// "0910" or "9:10", or nothing. Interpretation is left to the conflict package so that malformed
// values stay visible instead of failing at scan time.
type TimeValue struct {
	raw interface{}
}

// IntTime wraps an integer endpoint.
func IntTime(v int) TimeValue { return TimeValue{raw: int64(v)} }

// TextTime wraps a textual endpoint.
func TextTime(s string) TimeValue { return TimeValue{raw: s} }

// Raw returns nil, an int64 or a string.
func (t TimeValue) Raw() interface{} { return t.raw }

// IsNull reports whether no value was recorded.
func (t TimeValue) IsNull() bool { return t.raw == nil }

// String renders the value as recorded.
func (t TimeValue) String() string {
	switch v := t.raw.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Scan implements sql.Scanner.
func (t *TimeValue) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.raw = nil
	case int64:
		t.raw = v
	case float64:
		t.raw = int64(v)
	case []byte:
		t.raw = string(v)
	case string:
		t.raw = v
	default:
		return fmt.Errorf("unsupported schedule time type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (t TimeValue) Value() (driver.Value, error) {
	return t.raw, nil
}

// MarshalJSON keeps numbers as numbers and clock strings as strings.
func (t TimeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.raw)
}

// UnmarshalJSON accepts a number, a string or null.
func (t *TimeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.raw = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		return fmt.Errorf("schedule time must be an integer: %w", err)
	}
	t.raw = i
	return nil
}
