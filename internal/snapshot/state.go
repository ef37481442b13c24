package snapshot

import (
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"

	"pss/internal/model"
)

const stateVersion = 1

// State is the full schedule as stored between runs. Unlike an export it
// keeps anti-tasks and every recurring template whole, in insertion order,
// so reloading it through the store rebuilds the same collection.
type State struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Tasks   []Record  `json:"tasks"`
}

// NewState captures tasks, which must be in insertion order.
func NewState(tasks []model.Task, now time.Time) State {
	st := State{Version: stateVersion, SavedAt: now.UTC(), Tasks: make([]Record, 0, len(tasks))}
	seen := make(map[string]bool)
	for _, t := range tasks {
		switch v := t.(type) {
		case model.TransientTask, model.AntiTask:
			st.Tasks = append(st.Tasks, transientRecord(v))
		case model.RecurringTask:
			// Occurrences are stored contiguously; the first one carries the template.
			if seen[v.Name] {
				continue
			}
			seen[v.Name] = true
			st.Tasks = append(st.Tasks, recurringRecord(v.Name, v, v.EndDate))
		}
	}
	return st
}

// SaveState writes the state of tasks as indented JSON.
func SaveState(w io.Writer, tasks []model.Task, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(NewState(tasks, now)), "encode state")
}

// LoadState reads a state written by SaveState and recreates its tasks in
// s. s should be empty; on error nothing from the state is kept.
func LoadState(r io.Reader, s Store) (int, error) {
	var st State
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return 0, errors.Wrap(err, "decode state")
	}
	if st.Version != stateVersion {
		return 0, errors.Errorf("unsupported state version %d", st.Version)
	}
	return Apply(st.Tasks, s)
}
