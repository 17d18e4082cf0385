package calendar

import "time"

// Range is an inclusive window of calendar dates.
type Range struct {
	Start time.Time
	End   time.Time
}

// Resolve computes the window to request for the month containing d.
// The end never passes today and the start never precedes the epoch.
func Resolve(d, today, epoch time.Time) Range {
	loc := d.Location()
	month := MonthOf(d)

	end := month.LastDay(loc)
	if month == MonthOf(today) {
		end = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	}

	start := month.First(loc)
	if month == MonthOf(epoch) {
		start = time.Date(epoch.Year(), epoch.Month(), epoch.Day(), 0, 0, 0, 0, loc)
	}

	return Range{Start: start, End: end}
}

// Bounds limits navigation to the months the archive can have data for.
type Bounds struct {
	Epoch time.Time
	Today time.Time
}

func (b Bounds) Contains(m Month) bool {
	return !m.Before(MonthOf(b.Epoch)) && !m.After(MonthOf(b.Today))
}

// Prev returns the previous month, or false when it precedes the epoch month.
func (b Bounds) Prev(m Month) (Month, bool) {
	p := m.Prev()
	if !b.Contains(p) {
		return m, false
	}
	return p, true
}

// Next returns the next month, or false when it is in the future.
func (b Bounds) Next(m Month) (Month, bool) {
	n := m.Next()
	if !b.Contains(n) {
		return m, false
	}
	return n, true
}
