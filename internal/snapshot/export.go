package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"pss/internal/dateutil"
	"pss/internal/model"
)

// Export turns tasks into snapshot records. Anti-tasks and every task for
// which active reports false are dropped. A recurring series is written as
// one record per run of consecutive surviving occurrences; the first run
// keeps the series name and later runs get a " (n)" suffix. Records are
// ordered by start date.
func Export(tasks []model.Task, active func(model.Task) bool) []Record {
	used := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		used[t.Common().Name] = true
	}

	out := make([]Record, 0, len(tasks))
	series := make(map[string][]model.RecurringTask)
	var order []string

	for _, t := range tasks {
		if !active(t) {
			continue
		}
		switch v := t.(type) {
		case model.TransientTask:
			out = append(out, transientRecord(v))
		case model.RecurringTask:
			if _, seen := series[v.Name]; !seen {
				order = append(order, v.Name)
			}
			series[v.Name] = append(series[v.Name], v)
		case model.AntiTask:
		}
	}

	for _, name := range order {
		for i, run := range runs(series[name]) {
			first, last := run[0], run[len(run)-1]
			end := last.StartDate
			if dateutil.AdvanceByFrequency(last.StartDate, last.Frequency) > last.EndDate {
				end = last.EndDate
			}
			runName := name
			if i > 0 {
				runName = uniqueName(name, used)
			}
			out = append(out, recurringRecord(runName, first, end))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].startDate() < out[j].startDate()
	})
	return out
}

// runs splits occurrences of one series, in date order, wherever an
// expected occurrence is missing.
func runs(occs []model.RecurringTask) [][]model.RecurringTask {
	sort.SliceStable(occs, func(i, j int) bool { return occs[i].StartDate < occs[j].StartDate })

	var out [][]model.RecurringTask
	var cur []model.RecurringTask
	for _, o := range occs {
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			if dateutil.AdvanceByFrequency(prev.StartDate, prev.Frequency) != o.StartDate {
				out = append(out, cur)
				cur = nil
			}
		}
		cur = append(cur, o)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func uniqueName(base string, used map[string]bool) string {
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s (%d)", base, n)
		if !used[name] {
			used[name] = true
			return name
		}
	}
}

// Encode writes records as a JSON array. indent <= 0 writes compact JSON.
func Encode(w io.Writer, records []Record, indent int) error {
	enc := json.NewEncoder(w)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if records == nil {
		records = []Record{}
	}
	return errors.Wrap(enc.Encode(records), "encode snapshot")
}
