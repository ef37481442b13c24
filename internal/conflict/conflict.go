// Package conflict decides whether a candidate task may join a schedule.
//
// Rules are evaluated in schedule order and the first collision found is
// reported, so results are deterministic for a given insertion order. Only
// tasks sharing a date are ever compared; recurring templates are checked one
// occurrence at a time by the recur package.
package conflict

import (
	"fmt"

	"pss/internal/dateutil"
	"pss/internal/model"
)

// Check returns nil when candidate can be added to existing, a CodeConflict
// error on overlap or duplicate cancellation, and a CodeNotFound error for an
// anti-task that matches no recurring occurrence.
func Check(candidate model.Task, existing []model.Task) error {
	switch c := candidate.(type) {
	case model.TransientTask:
		return checkOverlap(c.Base, model.KindTransient, existing)
	case model.RecurringTask:
		return checkOverlap(c.Base, model.KindRecurring, existing)
	case model.AntiTask:
		_, err := CancelTarget(c.Slot(), existing)
		return err
	default:
		panic(fmt.Sprintf("conflict: unhandled task type %T", candidate))
	}
}

// Cancelled reports whether occ is suppressed by an anti-task in tasks.
func Cancelled(occ model.RecurringTask, tasks []model.Task) bool {
	_, ok := cancellerOf(occ, tasks)
	return ok
}

// Active reports whether t takes part in overlap checks: anti-tasks and
// cancelled occurrences do not.
func Active(t model.Task, tasks []model.Task) bool {
	switch v := t.(type) {
	case model.AntiTask:
		return false
	case model.RecurringTask:
		return !Cancelled(v, tasks)
	}
	return true
}

// CancelTarget finds the occurrence an anti-task with the given slot would
// cancel. A slot already held by an anti-task is a duplicate cancellation.
func CancelTarget(slot model.Slot, existing []model.Task) (model.RecurringTask, error) {
	for _, t := range existing {
		if anti, ok := t.(model.AntiTask); ok && anti.Slot() == slot {
			return model.RecurringTask{}, model.Conflictf(
				"New anti-task conflicts with existing anti-task %q, which already cancels %s.",
				anti.Name, slot)
		}
	}
	for _, t := range existing {
		occ, ok := t.(model.RecurringTask)
		if !ok || occ.Slot() != slot {
			continue
		}
		if !Cancelled(occ, existing) {
			return occ, nil
		}
	}
	return model.RecurringTask{}, model.NotFoundf(
		"Unable to find recurring task that starts at %s and lasts for %g hours.",
		dateutil.FormatDateTime(slot.Date, slot.StartTime), slot.Duration)
}

// Exposed checks whether removing anti from existing would re-activate an
// occurrence that overlaps another active task. The returned error names
// both tasks.
func Exposed(anti model.AntiTask, existing []model.Task) error {
	remaining := make([]model.Task, 0, len(existing))
	for _, t := range existing {
		if a, ok := t.(model.AntiTask); ok && a.Name == anti.Name {
			continue
		}
		remaining = append(remaining, t)
	}

	for _, t := range remaining {
		occ, ok := t.(model.RecurringTask)
		if !ok || occ.Name != anti.Cancels || occ.Slot() != anti.Slot() {
			continue
		}
		if other, hit := firstOverlap(occ.Base, remaining); hit {
			b := other.Common()
			return model.Conflictf(
				"Deleting anti-task %q creates an overlap between tasks: %q and %q on %s.",
				anti.Name, occ.Name, b.Name, dateutil.Format(occ.StartDate))
		}
		return nil
	}
	return nil
}

func checkOverlap(candidate model.Base, kind model.Kind, existing []model.Task) error {
	other, hit := firstOverlap(candidate, existing)
	if !hit {
		return nil
	}
	b := other.Common()
	return model.Conflictf("New %s task conflicts with existing %s %q on %s.",
		kind, b.Subtype, b.Name, dateutil.FormatDateTime(b.StartDate, b.StartTime))
}

// firstOverlap returns the first active task in existing whose interval
// intersects candidate. The candidate itself (same name and date) is skipped.
func firstOverlap(candidate model.Base, existing []model.Task) (model.Task, bool) {
	for _, t := range existing {
		b := t.Common()
		if b.Name == candidate.Name && b.StartDate == candidate.StartDate {
			continue
		}
		if !candidate.Overlaps(b) {
			continue
		}
		if !Active(t, existing) {
			continue
		}
		return t, true
	}
	return nil, false
}

func cancellerOf(occ model.RecurringTask, tasks []model.Task) (model.AntiTask, bool) {
	slot := occ.Slot()
	for _, t := range tasks {
		if anti, ok := t.(model.AntiTask); ok && anti.Cancels == occ.Name && anti.Slot() == slot {
			return anti, true
		}
	}
	return model.AntiTask{}, false
}
