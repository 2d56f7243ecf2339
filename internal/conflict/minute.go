package conflict

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/course-planner-api/internal/models"
)

var (
	compactClock = regexp.MustCompile(`^(\d{2})(\d{2})$`)
	colonClock   = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// ToMinute encodes a schedule endpoint as a comparable integer. Integers pass through unchanged,
// "HHMM" and "H:MM"/"HH:MM" strings become hours*60+minutes. Anything else, nil included,
// reports ok=false.
func ToMinute(v interface{}) (minute int, ok bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case models.TimeValue:
		return ToMinute(t.Raw())
	case *models.TimeValue:
		if t == nil {
			return 0, false
		}
		return ToMinute(t.Raw())
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case *string:
		if t == nil {
			return 0, false
		}
		return parseClock(*t)
	case string:
		return parseClock(t)
	default:
		return 0, false
	}
}

func parseClock(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if m := compactClock.FindStringSubmatch(s); m != nil {
		return clockMinutes(m[1], m[2]), true
	}
	if m := colonClock.FindStringSubmatch(s); m != nil {
		return clockMinutes(m[1], m[2]), true
	}
	return 0, false
}

func clockMinutes(hours, minutes string) int {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	return h*60 + m
}

// bounds encodes both endpoints of a schedule. ok is false when either endpoint is unreadable or
// the interval is empty.
func bounds(start, end models.TimeValue) (int, int, bool) {
	s, ok := ToMinute(start)
	if !ok {
		return 0, 0, false
	}
	e, ok := ToMinute(end)
	if !ok {
		return 0, 0, false
	}
	if s >= e {
		return 0, 0, false
	}
	return s, e, true
}
