package model

import (
	"fmt"

	"pss/internal/dateutil"
)

// Kind tags the variant of a Task.
type Kind string

const (
	KindTransient Kind = "transient"
	KindRecurring Kind = "recurring"
	KindAnti      Kind = "anti"
)

// ParseKind accepts the kind names used by the CLI and the HTTP API.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTransient, KindRecurring, KindAnti:
		return k, nil
	}
	return "", fmt.Errorf("unknown task class %q", s)
}

// Subtype is the user-facing type of a task, scoped to its Kind.
type Subtype string

// Transient subtypes.
const (
	Visit       Subtype = "Visit"
	Shopping    Subtype = "Shopping"
	Appointment Subtype = "Appointment"
)

// Recurring subtypes.
const (
	Class    Subtype = "Class"
	Study    Subtype = "Study"
	Sleep    Subtype = "Sleep"
	Exercise Subtype = "Exercise"
	Work     Subtype = "Work"
	Meal     Subtype = "Meal"
)

// Cancellation is the only AntiTask subtype.
const Cancellation Subtype = "Cancellation"

var subtypes = map[Kind][]Subtype{
	KindTransient: {Visit, Shopping, Appointment},
	KindRecurring: {Class, Study, Sleep, Exercise, Work, Meal},
	KindAnti:      {Cancellation},
}

// Subtypes lists the subtypes allowed for k.
func Subtypes(k Kind) []Subtype {
	return append([]Subtype(nil), subtypes[k]...)
}

// Allows reports whether s is a subtype of k.
func (k Kind) Allows(s Subtype) bool {
	for _, candidate := range subtypes[k] {
		if candidate == s {
			return true
		}
	}
	return false
}

// Slot is the (date, start, duration) triple an AntiTask matches against a
// recurring occurrence.
type Slot struct {
	Date      dateutil.Date
	StartTime float64
	Duration  float64
}

func (s Slot) String() string {
	return fmt.Sprintf("%s for %gh", dateutil.FormatDateTime(s.Date, s.StartTime), s.Duration)
}

// Base holds the attributes shared by every variant.
type Base struct {
	Name      string
	Subtype   Subtype
	StartTime float64
	StartDate dateutil.Date
	Duration  float64
}

// EndTime is StartTime+Duration.
func (b Base) EndTime() float64 {
	return dateutil.EndTime(b.StartTime, b.Duration)
}

// Slot returns the cancellation slot of b.
func (b Base) Slot() Slot {
	return Slot{Date: b.StartDate, StartTime: b.StartTime, Duration: b.Duration}
}

// Overlaps reports whether b and o share a date and their half-open
// [start, end) intervals intersect.
func (b Base) Overlaps(o Base) bool {
	return b.StartDate == o.StartDate &&
		b.StartTime < o.EndTime() &&
		o.StartTime < b.EndTime()
}

// Task is one stored schedule entry. The set of implementations is closed:
// TransientTask, RecurringTask and AntiTask. Code that behaves differently per
// variant switches on the concrete type.
type Task interface {
	Common() Base
	Kind() Kind
	sealed()
}

// TransientTask is a one-off event.
type TransientTask struct {
	Base
}

// RecurringTask is one occurrence of a recurring template. All occurrences of
// a template share Name, Subtype, StartTime, Duration, EndDate and Frequency;
// only StartDate differs.
type RecurringTask struct {
	Base
	EndDate   dateutil.Date
	Frequency dateutil.Frequency
}

// AntiTask cancels the recurring occurrence with the same slot. Cancels names
// the recurring series it was bound to when it was admitted.
type AntiTask struct {
	Base
	Cancels string
}

func (t TransientTask) Common() Base { return t.Base }
func (t RecurringTask) Common() Base { return t.Base }
func (t AntiTask) Common() Base      { return t.Base }

func (TransientTask) Kind() Kind { return KindTransient }
func (RecurringTask) Kind() Kind { return KindRecurring }
func (AntiTask) Kind() Kind      { return KindAnti }

func (TransientTask) sealed() {}
func (RecurringTask) sealed() {}
func (AntiTask) sealed()      {}

// Draft is the input for creating a task. EndDate and Frequency are only read
// for KindRecurring.
type Draft struct {
	Name      string             `json:"name" yaml:"name"`
	Kind      Kind               `json:"class" yaml:"class"`
	Subtype   Subtype            `json:"type" yaml:"type"`
	StartTime float64            `json:"start_time" yaml:"start_time"`
	StartDate dateutil.Date      `json:"start_date" yaml:"start_date"`
	Duration  float64            `json:"duration" yaml:"duration"`
	EndDate   dateutil.Date      `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Frequency dateutil.Frequency `json:"frequency,omitempty" yaml:"frequency,omitempty"`
}

// Base returns the common attributes of d.
func (d Draft) Base() Base {
	return Base{
		Name:      d.Name,
		Subtype:   d.Subtype,
		StartTime: d.StartTime,
		StartDate: d.StartDate,
		Duration:  d.Duration,
	}
}

// Describe renders t for messages and CLI output.
func Describe(t Task) string {
	b := t.Common()
	return fmt.Sprintf("%s %q on %s", b.Subtype, b.Name, dateutil.FormatDateTime(b.StartDate, b.StartTime))
}
