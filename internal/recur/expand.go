// Package recur expands recurring templates into concrete occurrences.
package recur

import (
	"pss/internal/conflict"
	"pss/internal/dateutil"
	"pss/internal/model"
)

const (
	defaultMaxOccurrences = 5000
)

// Config controls how expansion is performed.
type Config struct {
	// MaxOccurrences caps the number of occurrences a single template may
	// produce. If zero, defaultMaxOccurrences is used.
	MaxOccurrences int
}

// Dates lists the occurrence dates of a template: start, then repeated
// AdvanceByFrequency steps while the date is not after end. The boolean is
// false when the list would exceed limit.
func Dates(start, end dateutil.Date, freq dateutil.Frequency, limit int) ([]dateutil.Date, bool) {
	dates := make([]dateutil.Date, 0)
	for d := start; d <= end; d = dateutil.AdvanceByFrequency(d, freq) {
		if len(dates) == limit {
			return dates, false
		}
		dates = append(dates, d)
	}
	return dates, true
}

// Expand turns tmpl into its occurrences and checks each one against
// existing. Nothing is returned unless every occurrence is admissible; the
// caller appends the whole list or nothing.
func Expand(tmpl model.RecurringTask, existing []model.Task, cfg Config) ([]model.RecurringTask, error) {
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}
	if !tmpl.Frequency.Valid() {
		return nil, model.Validationf("Invalid frequency %q: must be Daily, Weekly or Monthly.", tmpl.Frequency)
	}
	if tmpl.EndDate < tmpl.StartDate {
		return nil, model.Validationf("Invalid end date: %s is before the start date %s.",
			dateutil.Format(tmpl.EndDate), dateutil.Format(tmpl.StartDate))
	}

	dates, ok := Dates(tmpl.StartDate, tmpl.EndDate, tmpl.Frequency, cfg.MaxOccurrences)
	if !ok {
		return nil, model.Validationf("Recurring task %q expands to more than %d occurrences.",
			tmpl.Name, cfg.MaxOccurrences)
	}

	out := make([]model.RecurringTask, 0, len(dates))
	for _, d := range dates {
		occ := tmpl
		occ.StartDate = d
		if err := conflict.Check(occ, existing); err != nil {
			return nil, &model.Error{
				Code: model.CodeOf(err),
				Msg:  "Occurrence on " + dateutil.Format(d) + " of recurring task \"" + tmpl.Name + "\"",
				Err:  err,
			}
		}
		out = append(out, occ)
	}
	return out, nil
}
