package enrich

import "time"

// Calendar span helpers. Spans follow the host convention: local time,
// half-open (start, end].

func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
}

func startOfYear(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), 1, 1, 0, 0, 0, 0, loc)
}

func yesterdaySpan(t time.Time, loc *time.Location) (time.Time, time.Time) {
	sod := startOfDay(t, loc)
	return sod.AddDate(0, 0, -1), sod
}
