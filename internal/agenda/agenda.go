// Package agenda prints the day's schedule, once or on a cron schedule.
package agenda

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"pss/internal/dateutil"
	appLog "pss/internal/log"
	"pss/internal/model"
)

// Provider returns the active tasks of one day.
type Provider func(date dateutil.Date) ([]model.Task, error)

// Digest renders the tasks starting on date, one per line, in the order
// given. Anti-tasks are skipped.
func Digest(tasks []model.Task, date dateutil.Date) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agenda for %s\n", dateutil.Format(date))

	n := 0
	for _, t := range tasks {
		if t.Kind() == model.KindAnti {
			continue
		}
		c := t.Common()
		if c.StartDate != date {
			continue
		}
		fmt.Fprintf(&b, "%s-%s %s (%s)\n",
			dateutil.FormatTime(c.StartTime), dateutil.FormatTime(c.EndTime()), c.Name, c.Subtype)
		n++
	}
	if n == 0 {
		b.WriteString("Nothing scheduled.\n")
	}
	return b.String()
}

// Runner writes the digest of the current day whenever its cron spec fires.
type Runner struct {
	spec     string
	provider Provider
	out      io.Writer
	now      func() time.Time

	// mu serializes writes to out.
	mu sync.Mutex
}

// Parser accepts standard 5-field specs and descriptors such as @daily.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewRunner validates spec and returns a stopped Runner.
func NewRunner(spec string, provider Provider, out io.Writer) (*Runner, error) {
	if _, err := Parser.Parse(spec); err != nil {
		return nil, errors.Wrapf(err, "invalid agenda cron %q", spec)
	}
	return &Runner{spec: spec, provider: provider, out: out, now: time.Now}, nil
}

// RunOnce writes the digest for the current day.
func (r *Runner) RunOnce() error {
	date := dateutil.FromTime(r.now())
	tasks, err := r.provider(date)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.out, Digest(tasks, date)); err != nil {
		return errors.Wrap(err, "write agenda")
	}
	appLog.Info("agenda written", "date", dateutil.Format(date), "tasks", len(tasks))
	return nil
}

// Run starts the cron schedule and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(Parser))
	if _, err := c.AddFunc(r.spec, func() {
		if err := r.RunOnce(); err != nil {
			appLog.Error("agenda run failed", err)
		}
	}); err != nil {
		return errors.Wrapf(err, "schedule agenda %q", r.spec)
	}

	c.Start()
	appLog.Info("agenda scheduler started", "cron", r.spec)

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("agenda scheduler stopped")
	return nil
}

// Next reports when the schedule fires next after t.
func (r *Runner) Next(t time.Time) time.Time {
	s, err := Parser.Parse(r.spec)
	if err != nil {
		return time.Time{}
	}
	return s.Next(t)
}
