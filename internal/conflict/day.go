package conflict

import "fmt"

var dayNames = map[int]string{
	1: "週一",
	2: "週二",
	3: "週三",
	4: "週四",
	5: "週五",
	6: "週六",
	7: "週日",
}

// DayText labels a day of week numbered 1 (Monday) to 7 (Sunday) the way the timetable prints it.
func DayText(day int) string {
	if name, ok := dayNames[day]; ok {
		return name
	}
	return fmt.Sprintf("週%d", day)
}
