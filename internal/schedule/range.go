package schedule

import (
	"pss/internal/dateutil"
	"pss/internal/model"
)

// Range selects a query window.
type Range string

const (
	RangeDay      Range = "day"
	RangeWeek     Range = "week"
	RangeMonth    Range = "month"
	RangeCalendar Range = "calendar"
)

// ParseRange accepts the range names used by the CLI and the HTTP API.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case RangeDay, RangeWeek, RangeMonth, RangeCalendar:
		return r, nil
	}
	return "", model.Validationf("Invalid range %q: must be day, week, month or calendar.", s)
}

// Window returns the half-open date window [from, to) of r at start.
//
//   - day:      1 day
//   - week:     7 days
//   - month:    31 days, not a calendar month
//   - calendar: first day of the previous month through the last day of the
//     next month, for a three month grid
func Window(start dateutil.Date, r Range) (from, to dateutil.Date, err error) {
	if err := dateutil.Validate(start); err != nil {
		return 0, 0, model.Validationf("%s", err)
	}
	switch r {
	case RangeDay:
		return start, dateutil.AddDays(start, 1), nil
	case RangeWeek:
		return start, dateutil.AddDays(start, 7), nil
	case RangeMonth:
		return start, dateutil.AddDays(start, 31), nil
	case RangeCalendar:
		from = dateutil.FirstOfMonth(dateutil.AddMonths(start, -1))
		last := dateutil.LastOfMonth(dateutil.AddMonths(start, 1))
		return from, dateutil.AddDays(last, 1), nil
	}
	_, err = ParseRange(string(r))
	return 0, 0, err
}
