package domain

import "time"

// SprintLength is the fixed width of one sprint window.
const SprintLength = 14 * 24 * time.Hour

// SprintPeriod is one window of the sprint partition. Start is inclusive,
// End is exclusive except for the final window, which ends exactly at the
// overall end of the requested range.
type SprintPeriod struct {
	Start time.Time
	End   time.Time
	Label string
}

// Contains reports whether t falls inside the period.
func (p SprintPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// CalculateSprintPeriods partitions [start, end] into consecutive 14-day
// windows. The last window may be shorter. A zero-length or inverted range
// yields no periods. Labels are the window start date in YYYY-MM-DD form.
func CalculateSprintPeriods(start, end time.Time) []SprintPeriod {
	var periods []SprintPeriod
	for cur := start; cur.Before(end); {
		next := cur.Add(SprintLength)
		if next.After(end) {
			next = end
		}
		periods = append(periods, SprintPeriod{
			Start: cur,
			End:   next,
			Label: cur.UTC().Format("2006-01-02"),
		})
		cur = next
	}
	return periods
}

// SprintForDate returns the label of the period containing t, or "" when t
// is outside every period. The final period includes its end instant so a
// review submitted exactly at the range end is not dropped.
func SprintForDate(periods []SprintPeriod, t time.Time) string {
	for i, p := range periods {
		if p.Contains(t) {
			return p.Label
		}
		if i == len(periods)-1 && t.Equal(p.End) {
			return p.Label
		}
	}
	return ""
}
