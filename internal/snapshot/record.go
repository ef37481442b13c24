// Package snapshot converts a schedule to and from its JSON snapshot form.
//
// A snapshot is a JSON array of records. Transient and anti records carry
// Date; recurring records carry StartDate, EndDate and an integer Frequency.
// Every record is checked against the schema before any of them reaches the
// store, and the store is only ever driven through its Create and Delete
// methods.
package snapshot

import (
	"math"
	"strings"

	"pss/internal/dateutil"
	"pss/internal/model"
)

// Record is one snapshot entry. Numeric fields are pointers so a missing
// field can be told apart from a zero value.
type Record struct {
	Name      *string  `json:"Name"`
	Type      *string  `json:"Type"`
	Date      *float64 `json:"Date,omitempty"`
	StartDate *float64 `json:"StartDate,omitempty"`
	StartTime *float64 `json:"StartTime"`
	Duration  *float64 `json:"Duration"`
	EndDate   *float64 `json:"EndDate,omitempty"`
	Frequency *float64 `json:"Frequency,omitempty"`
}

// DisplayName is the record name, or "" when it is missing.
func (r Record) DisplayName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// KindOf resolves the variant from a subtype literal. Subtype names do not
// repeat across variants.
func KindOf(s model.Subtype) (model.Kind, bool) {
	for _, k := range []model.Kind{model.KindTransient, model.KindRecurring, model.KindAnti} {
		if k.Allows(s) {
			return k, true
		}
	}
	return "", false
}

// Decode checks r against the snapshot schema and returns the creation
// input it describes. Calendar validity of dates, name uniqueness and
// conflicts are left to the store.
func Decode(r Record) (model.Draft, error) {
	var d model.Draft

	if r.Name == nil || strings.TrimSpace(*r.Name) == "" {
		return d, model.Validationf("Missing field Name.")
	}
	if r.Type == nil {
		return d, model.Validationf("Missing field Type.")
	}
	kind, ok := KindOf(model.Subtype(*r.Type))
	if !ok {
		return d, model.Validationf("Unknown Type %q.", *r.Type)
	}
	d.Name = *r.Name
	d.Kind = kind
	d.Subtype = model.Subtype(*r.Type)

	if r.StartTime == nil {
		return d, model.Validationf("Missing field StartTime.")
	}
	if t := *r.StartTime; t < 0 || t >= 24 || !dateutil.OnQuarter(t) {
		return d, model.Validationf("StartTime %g must be in [0, 24) in quarter-hour steps.", t)
	}
	d.StartTime = *r.StartTime

	if r.Duration == nil {
		return d, model.Validationf("Missing field Duration.")
	}
	if v := *r.Duration; v <= 0 || v > 24 || !dateutil.OnQuarter(v) {
		return d, model.Validationf("Duration %g must be in (0, 24] in quarter-hour steps.", v)
	}
	d.Duration = *r.Duration

	if kind != model.KindRecurring {
		date, err := dateField("Date", r.Date)
		if err != nil {
			return d, err
		}
		d.StartDate = date
		return d, nil
	}

	start, err := dateField("StartDate", r.StartDate)
	if err != nil {
		return d, err
	}
	end, err := dateField("EndDate", r.EndDate)
	if err != nil {
		return d, err
	}
	if end < start {
		return d, model.Validationf("EndDate %d is before StartDate %d.", end, start)
	}
	if r.Frequency == nil {
		return d, model.Validationf("Missing field Frequency.")
	}
	code := *r.Frequency
	freq, ok := dateutil.FrequencyFromCode(int(code))
	if !ok || code != math.Trunc(code) {
		return d, model.Validationf("Frequency %g must be 1, 7, 30 or 31.", code)
	}
	d.StartDate = start
	d.EndDate = end
	d.Frequency = freq
	return d, nil
}

func dateField(field string, v *float64) (dateutil.Date, error) {
	if v == nil {
		return 0, model.Validationf("Missing field %s.", field)
	}
	if *v < 0 || *v > float64(dateutil.MaxDate) || *v != math.Trunc(*v) {
		return 0, model.Validationf("%s %g must be a whole number in [0, %d].", field, *v, dateutil.MaxDate)
	}
	return dateutil.Date(*v), nil
}

func transientRecord(t model.Task) Record {
	b := t.Common()
	return Record{
		Name:      ptr(b.Name),
		Type:      ptr(string(b.Subtype)),
		Date:      ptr(float64(b.StartDate)),
		StartTime: ptr(b.StartTime),
		Duration:  ptr(b.Duration),
	}
}

func recurringRecord(name string, first model.RecurringTask, end dateutil.Date) Record {
	return Record{
		Name:      ptr(name),
		Type:      ptr(string(first.Subtype)),
		StartDate: ptr(float64(first.StartDate)),
		StartTime: ptr(first.StartTime),
		Duration:  ptr(first.Duration),
		EndDate:   ptr(float64(end)),
		Frequency: ptr(float64(first.Frequency.Code())),
	}
}

func (r Record) startDate() float64 {
	switch {
	case r.Date != nil:
		return *r.Date
	case r.StartDate != nil:
		return *r.StartDate
	}
	return 0
}

func ptr[T any](v T) *T { return &v }
