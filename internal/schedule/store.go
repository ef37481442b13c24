// Package schedule owns the task collection of one user.
//
// Store is the only writer of the collection. Every mutation is validated
// first and applied as a single append or removal, so a rejected call leaves
// the collection exactly as it was. Store is not safe for concurrent use;
// callers serialize access.
package schedule

import (
	"sort"
	"strings"

	"pss/internal/conflict"
	"pss/internal/dateutil"
	"pss/internal/model"
	"pss/internal/recur"
)

// Config tunes a Store.
type Config struct {
	// MaxOccurrences caps how many occurrences one recurring template may
	// expand into.
	MaxOccurrences int
}

// Store holds tasks in insertion order. Occurrences of one recurring template
// share a name; every other name is unique.
type Store struct {
	cfg   Config
	tasks []model.Task
}

// NewStore returns an empty Store.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Create validates d and appends the task, or every occurrence of a
// recurring template, to the collection.
func (s *Store) Create(d model.Draft) error {
	if err := s.validate(d); err != nil {
		return err
	}

	base := d.Base()
	switch d.Kind {
	case model.KindTransient:
		t := model.TransientTask{Base: base}
		if err := conflict.Check(t, s.tasks); err != nil {
			return err
		}
		s.tasks = append(s.tasks, t)

	case model.KindAnti:
		target, err := conflict.CancelTarget(base.Slot(), s.tasks)
		if err != nil {
			return err
		}
		s.tasks = append(s.tasks, model.AntiTask{Base: base, Cancels: target.Name})

	case model.KindRecurring:
		tmpl := model.RecurringTask{Base: base, EndDate: d.EndDate, Frequency: d.Frequency}
		occs, err := recur.Expand(tmpl, s.tasks, recur.Config{MaxOccurrences: s.cfg.MaxOccurrences})
		if err != nil {
			return err
		}
		for _, occ := range occs {
			s.tasks = append(s.tasks, occ)
		}

	default:
		return model.Validationf("Unknown task class %q.", d.Kind)
	}
	return nil
}

// Delete removes the task called name. Deleting a recurring task removes all
// of its occurrences and the anti-tasks cancelling them. Deleting an
// anti-task is refused when the occurrence it cancels would collide with
// another active task.
func (s *Store) Delete(name string) error {
	t, err := s.Get(name)
	if err != nil {
		return err
	}

	switch v := t.(type) {
	case model.AntiTask:
		if err := conflict.Exposed(v, s.tasks); err != nil {
			return err
		}
		s.remove(func(t model.Task) bool { return t.Common().Name == name })

	case model.RecurringTask:
		s.remove(func(t model.Task) bool {
			if a, ok := t.(model.AntiTask); ok {
				return a.Cancels == name
			}
			return t.Common().Name == name
		})

	case model.TransientTask:
		s.remove(func(t model.Task) bool { return t.Common().Name == name })
	}
	return nil
}

// Get returns the task called name. For a recurring task this is its first
// occurrence.
func (s *Store) Get(name string) (model.Task, error) {
	for _, t := range s.tasks {
		if t.Common().Name == name {
			return t, nil
		}
	}
	return nil, model.NotFoundf("No task named %q exists.", name)
}

// Occurrences returns every stored entry called name, in date order.
func (s *Store) Occurrences(name string) []model.Task {
	var out []model.Task
	for _, t := range s.tasks {
		if t.Common().Name == name {
			out = append(out, t)
		}
	}
	return out
}

// Query returns the tasks whose start date lies in the window of r starting
// at start, ordered by date then start time. Anti-tasks and cancelled
// occurrences are included; use Active to drop them. Only start dates are
// compared.
func (s *Store) Query(start dateutil.Date, r Range) ([]model.Task, error) {
	from, to, err := Window(start, r)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		d := t.Common().StartDate
		if d >= from && d < to {
			out = append(out, t)
		}
	}
	SortByStart(out)
	return out, nil
}

// Tasks returns a copy of the whole collection in insertion order.
func (s *Store) Tasks() []model.Task {
	return append([]model.Task(nil), s.tasks...)
}

// Len is the number of stored entries, counting each occurrence.
func (s *Store) Len() int {
	return len(s.tasks)
}

// IsActive reports whether t currently occupies its slot.
func (s *Store) IsActive(t model.Task) bool {
	return conflict.Active(t, s.tasks)
}

// Active filters tasks down to the ones that occupy their slot, judged
// against the whole collection.
func (s *Store) Active(tasks []model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if s.IsActive(t) {
			out = append(out, t)
		}
	}
	return out
}

// SortByStart orders tasks by date then start time, keeping insertion order
// for ties.
func SortByStart(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].Common(), tasks[j].Common()
		if a.StartDate != b.StartDate {
			return a.StartDate < b.StartDate
		}
		return a.StartTime < b.StartTime
	})
}

func (s *Store) validate(d model.Draft) error {
	if strings.TrimSpace(d.Name) == "" {
		return model.Validationf("Task name must not be empty.")
	}
	if _, err := s.Get(d.Name); err == nil {
		return model.Validationf("A task with the name %q already exists.", d.Name)
	}
	if _, err := model.ParseKind(string(d.Kind)); err != nil {
		return model.Validationf("Unknown task class %q.", d.Kind)
	}
	if !d.Kind.Allows(d.Subtype) {
		return model.Validationf("Invalid type %q for a %s task; expected one of %v.",
			d.Subtype, d.Kind, model.Subtypes(d.Kind))
	}
	if d.StartTime < 0 || d.StartTime >= 24 || !dateutil.OnQuarter(d.StartTime) {
		return model.Validationf("Invalid start time %g: must be in [0, 24) in quarter-hour steps.", d.StartTime)
	}
	if d.Duration <= 0 || d.Duration > 24 || !dateutil.OnQuarter(d.Duration) {
		return model.Validationf("Invalid duration %g: must be in (0, 24] in quarter-hour steps.", d.Duration)
	}
	if err := dateutil.Validate(d.StartDate); err != nil {
		return model.Validationf("%s", err)
	}
	if d.Kind != model.KindRecurring {
		return nil
	}
	if err := dateutil.Validate(d.EndDate); err != nil {
		return model.Validationf("End date: %s", err)
	}
	if !d.Frequency.Valid() {
		return model.Validationf("Invalid frequency %q: must be Daily, Weekly or Monthly.", d.Frequency)
	}
	if d.EndDate < d.StartDate {
		return model.Validationf("Invalid end date: %s is before the start date %s.",
			dateutil.Format(d.EndDate), dateutil.Format(d.StartDate))
	}
	return nil
}

func (s *Store) remove(match func(model.Task) bool) {
	kept := s.tasks[:0:0]
	for _, t := range s.tasks {
		if !match(t) {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
}
