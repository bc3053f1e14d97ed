package selectors

import "time"

const WindowDays = 7

var narrowWeekdays = [...]string{"S", "M", "T", "W", "T", "F", "S"}

type Day struct {
	Date      string `json:"date"`
	Label     string `json:"label"`
	CheckedIn bool   `json:"checked_in"`
	IsToday   bool   `json:"is_today"`
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WindowRange is the inclusive range [today-6, today].
func WindowRange(today time.Time) (from, to time.Time) {
	to = Midnight(today)
	return to.AddDate(0, 0, -(WindowDays - 1)), to
}

// WeekWindow lays out the seven days ending today, oldest first. checkins holds
// YYYY-MM-DD dates.
func WeekWindow(today time.Time, checkins []string) []Day {
	seen := make(map[string]struct{}, len(checkins))
	for _, c := range checkins {
		seen[c] = struct{}{}
	}
	from, _ := WindowRange(today)
	days := make([]Day, WindowDays)
	for i := range days {
		d := from.AddDate(0, 0, i)
		date := d.Format(time.DateOnly)
		_, checked := seen[date]
		days[i] = Day{
			Date:      date,
			Label:     narrowWeekdays[d.Weekday()],
			CheckedIn: checked,
			IsToday:   i == WindowDays-1,
		}
	}
	return days
}
