package ics

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "pss/internal/log"
)

// Occurrence is one concrete event instance read back from a feed.
type Occurrence struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// maxOccurrencesPerEvent caps RRULE expansion of a single VEVENT.
const maxOccurrencesPerEvent = 5000

// Parse reads an iCalendar payload and expands every VEVENT, applying
// RRULE and EXDATE, into occurrences ordered by start time.
func Parse(body []byte) ([]Occurrence, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]Occurrence, 0)
	for _, ve := range cal.Events() {
		occs, err := expandEvent(ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "err", err.Error())
			continue
		}
		out = append(out, occs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func expandEvent(ve *ical.VEvent) ([]Occurrence, error) {
	base := Occurrence{}
	p := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if p == nil || p.Value == "" {
		return nil, errors.New("missing UID")
	}
	base.UID = p.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		base.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		base.Description = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return nil, err
	}
	base.Start, base.End = start.UTC(), end.UTC()

	rp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rp == nil {
		return []Occurrence{base}, nil
	}

	r, err := rrule.StrToRRule(rp.Value)
	if err != nil {
		return nil, err
	}
	r.DTStart(base.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(ex.Value, ",") {
			t, err := time.Parse("20060102T150405Z", strings.TrimSpace(part))
			if err != nil {
				continue
			}
			set.ExDate(t)
		}
	}

	dur := base.End.Sub(base.Start)
	starts := set.All()
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}
	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		o := base
		o.Start, o.End = s, s.Add(dur)
		out = append(out, o)
	}
	return out, nil
}
