// Package engine is the entry point the CLI and the HTTP API call into.
//
// An Engine wraps one schedule store together with its snapshot, state
// and iCalendar codecs. It is not safe for concurrent use; callers
// serialize access.
package engine

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"pss/internal/dateutil"
	"pss/internal/ics"
	appLog "pss/internal/log"
	"pss/internal/model"
	"pss/internal/schedule"
	"pss/internal/snapshot"
)

// Config tunes an Engine.
type Config struct {
	MaxOccurrences int
	ExportIndent   int
	ICS            ics.Config
	// Now is used for state timestamps. Defaults to time.Now.
	Now func() time.Time
}

// ExportOptions restricts an export to the query window of Range starting
// at Start. A zero Start exports the whole schedule.
type ExportOptions struct {
	Start dateutil.Date
	Range schedule.Range
}

type Engine struct {
	cfg   Config
	store *schedule.Store
}

// New returns an Engine with an empty schedule.
func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg, store: newStore(cfg)}
}

func newStore(cfg Config) *schedule.Store {
	return schedule.NewStore(schedule.Config{MaxOccurrences: cfg.MaxOccurrences})
}

// AddTask creates a task, or every occurrence of a recurring one.
func (e *Engine) AddTask(d model.Draft) error {
	if err := e.store.Create(d); err != nil {
		appLog.Debug("add task rejected", "name", d.Name, "class", d.Kind, "err", err.Error())
		return err
	}
	appLog.Info("task added", "name", d.Name, "class", d.Kind, "date", dateutil.Format(d.StartDate))
	return nil
}

// DeleteTask removes a task. See schedule.Store.Delete for the cascade rules.
func (e *Engine) DeleteTask(name string) error {
	if err := e.store.Delete(name); err != nil {
		appLog.Debug("delete task rejected", "name", name, "err", err.Error())
		return err
	}
	appLog.Info("task deleted", "name", name)
	return nil
}

// ViewTask returns the task called name; for a recurring task, its first
// occurrence.
func (e *Engine) ViewTask(name string) (model.Task, error) {
	return e.store.Get(name)
}

// Occurrences returns every entry called name.
func (e *Engine) Occurrences(name string) []model.Task {
	return e.store.Occurrences(name)
}

// ViewSchedule lists the tasks starting inside the window of r at start.
func (e *Engine) ViewSchedule(start dateutil.Date, r schedule.Range) ([]model.Task, error) {
	return e.store.Query(start, r)
}

// Tasks returns the whole collection in insertion order.
func (e *Engine) Tasks() []model.Task {
	return e.store.Tasks()
}

// IsActive reports whether t occupies its slot.
func (e *Engine) IsActive(t model.Task) bool {
	return e.store.IsActive(t)
}

// ActiveOn returns the tasks that occupy a slot on date, in start order.
func (e *Engine) ActiveOn(date dateutil.Date) ([]model.Task, error) {
	tasks, err := e.store.Query(date, schedule.RangeDay)
	if err != nil {
		return nil, err
	}
	return e.store.Active(tasks), nil
}

// Records builds the snapshot records for opts.
func (e *Engine) Records(opts ExportOptions) ([]snapshot.Record, error) {
	tasks := e.store.Tasks()
	if opts.Start != 0 {
		r := opts.Range
		if r == "" {
			r = schedule.RangeMonth
		}
		var err error
		if tasks, err = e.store.Query(opts.Start, r); err != nil {
			return nil, err
		}
	}
	return snapshot.Export(tasks, e.store.IsActive), nil
}

// WriteExport encodes the snapshot for opts to w.
func (e *Engine) WriteExport(w io.Writer, opts ExportOptions) error {
	records, err := e.Records(opts)
	if err != nil {
		return err
	}
	return snapshot.Encode(w, records, e.cfg.ExportIndent)
}

// ExportSchedule writes the snapshot for opts to fileName.
func (e *Engine) ExportSchedule(fileName string, opts ExportOptions) error {
	var buf bytes.Buffer
	if err := e.WriteExport(&buf, opts); err != nil {
		return err
	}
	if err := snapshot.WriteFile(fileName, buf.Bytes()); err != nil {
		appLog.Error("export failed", err, "file", fileName)
		return err
	}
	appLog.Info("schedule exported", "file", fileName, "bytes", buf.Len())
	return nil
}

// ImportSchedule reads the snapshot at location, a path or an http(s) URL,
// and applies it atomically.
func (e *Engine) ImportSchedule(ctx context.Context, location string) (int, error) {
	r, err := snapshot.Open(ctx, location)
	if err != nil {
		appLog.Error("import read failed", err, "location", location)
		return 0, err
	}
	return e.Import(r)
}

// Import applies the snapshot read from r atomically.
func (e *Engine) Import(r io.Reader) (int, error) {
	n, err := snapshot.Import(r, e.store)
	if err != nil {
		appLog.Debug("import rejected", "err", err.Error())
		return 0, err
	}
	appLog.Info("schedule imported", "tasks", n)
	return n, nil
}

// ExportICS renders the whole schedule as an iCalendar feed.
func (e *Engine) ExportICS() string {
	return ics.Export(e.store.Tasks(), e.store.IsActive, e.cfg.ICS)
}

// Save writes the full state to path atomically.
func (e *Engine) Save(path string) error {
	var buf bytes.Buffer
	if err := snapshot.SaveState(&buf, e.store.Tasks(), e.cfg.Now()); err != nil {
		return err
	}
	if err := snapshot.WriteFile(path, buf.Bytes()); err != nil {
		appLog.Error("state save failed", err, "path", path)
		return err
	}
	appLog.Debug("state saved", "path", path, "entries", e.store.Len())
	return nil
}

// Load replaces the schedule with the state stored at path. A missing file
// yields an empty schedule. On error the current schedule is kept.
func (e *Engine) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.store = newStore(e.cfg)
			appLog.Debug("no state file, starting empty", "path", path)
			return nil
		}
		return errors.Wrapf(err, "read state %s", path)
	}

	fresh := newStore(e.cfg)
	if _, err := snapshot.LoadState(bytes.NewReader(data), fresh); err != nil {
		appLog.Error("state load failed", err, "path", path)
		return errors.Wrapf(err, "load state %s", path)
	}
	e.store = fresh
	appLog.Debug("state loaded", "path", path, "entries", fresh.Len())
	return nil
}
