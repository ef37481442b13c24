// Package ics renders a schedule as an iCalendar feed.
//
// Transient tasks become single VEVENTs. A recurring series becomes one
// VEVENT with an RRULE and an EXDATE per cancelled occurrence when the rule
// reproduces the series exactly; otherwise every surviving occurrence is
// written as its own VEVENT. Monthly series that start after the 28th fall
// into the second case because RRULE skips short months instead of
// clamping.
package ics

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"pss/internal/dateutil"
	appLog "pss/internal/log"
	"pss/internal/model"
)

const (
	defaultProductID    = "-//pss//Personal Schedule//EN"
	defaultCalendarName = "Schedule"
	uidDomain           = "pss.local"
)

// Config names the generated calendar.
type Config struct {
	ProductID    string
	CalendarName string
	// Now stamps DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

// Export serializes tasks. active reports whether a task occupies its slot;
// anti-tasks are never written and cancelled occurrences are either
// excluded through EXDATE or skipped.
func Export(tasks []model.Task, active func(model.Task) bool, cfg Config) string {
	if cfg.ProductID == "" {
		cfg.ProductID = defaultProductID
	}
	if cfg.CalendarName == "" {
		cfg.CalendarName = defaultCalendarName
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	stamp := cfg.Now().UTC()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(cfg.ProductID)
	cal.SetXWRCalName(cfg.CalendarName)

	series := make(map[string][]model.RecurringTask)
	var order []string

	for _, t := range tasks {
		switch v := t.(type) {
		case model.TransientTask:
			addEvent(cal, uid(v.Name, v.StartDate), v.Base, stamp)
		case model.RecurringTask:
			if _, seen := series[v.Name]; !seen {
				order = append(order, v.Name)
			}
			series[v.Name] = append(series[v.Name], v)
		case model.AntiTask:
		}
	}

	for _, name := range order {
		occs := series[name]
		sort.SliceStable(occs, func(i, j int) bool { return occs[i].StartDate < occs[j].StartDate })

		var kept, cancelled []model.RecurringTask
		for _, o := range occs {
			if active(o) {
				kept = append(kept, o)
			} else {
				cancelled = append(cancelled, o)
			}
		}
		if len(kept) == 0 {
			continue
		}

		if rule, ok := seriesRule(occs, kept, cancelled); ok {
			ev := addEvent(cal, uid(name, 0), occs[0].Base, stamp)
			ev.AddProperty(ical.ComponentPropertyRrule, rule)
			for _, c := range cancelled {
				ev.AddProperty(ical.ComponentPropertyExdate, formatUTC(startOf(c.Base)))
			}
			continue
		}

		appLog.Debug("ics series written per occurrence", "name", name, "occurrences", len(kept))
		for _, o := range kept {
			addEvent(cal, uid(name, o.StartDate), o.Base, stamp)
		}
	}

	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, id string, b model.Base, stamp time.Time) *ical.VEvent {
	start := startOf(b)
	ev := cal.AddEvent(id)
	ev.SetDtStampTime(stamp)
	ev.SetStartAt(start)
	ev.SetEndAt(start.Add(hours(b.Duration)))
	ev.SetSummary(b.Name)
	ev.SetDescription(string(b.Subtype))
	return ev
}

// seriesRule returns the RRULE value for a series when expanding it with
// rrule-go, minus the cancelled starts, yields exactly the kept starts.
func seriesRule(all, kept, cancelled []model.RecurringTask) (string, bool) {
	first, last := all[0], all[len(all)-1]

	opt := rrule.ROption{
		Freq:  toRRuleFreq(first.Frequency),
		Until: startOf(last.Base),
	}
	value := opt.String()

	r, err := rrule.StrToRRule(value)
	if err != nil {
		appLog.Warn("ics rrule rejected", "name", first.Name, "rrule", value, "err", err.Error())
		return "", false
	}
	r.DTStart(startOf(first.Base))

	var set rrule.Set
	set.RRule(r)
	for _, c := range cancelled {
		set.ExDate(startOf(c.Base))
	}

	got := set.All()
	if len(got) != len(kept) {
		return "", false
	}
	for i, o := range kept {
		if !got[i].Equal(startOf(o.Base)) {
			return "", false
		}
	}
	return value, true
}

func toRRuleFreq(f dateutil.Frequency) rrule.Frequency {
	switch f {
	case dateutil.Weekly:
		return rrule.WEEKLY
	case dateutil.Monthly:
		return rrule.MONTHLY
	default:
		return rrule.DAILY
	}
}

func startOf(b model.Base) time.Time {
	return dateutil.ToTime(b.StartDate).Add(hours(b.StartTime))
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func formatUTC(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// uid builds a stable identifier from the task name. The hash keeps names
// that only differ in case apart. date 0 means the whole series.
func uid(name string, date dateutil.Date) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, name)
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	if date == 0 {
		return fmt.Sprintf("%s-%08x@%s", slug, h.Sum32(), uidDomain)
	}
	return fmt.Sprintf("%s-%08x-%d@%s", slug, h.Sum32(), date, uidDomain)
}
