package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pss/internal/dateutil"
	"pss/internal/model"
	"pss/internal/schedule"
)

type addFlags struct {
	name      string
	subtype   string
	date      string
	start     string
	duration  float64
	end       string
	frequency string
}

func (a *app) newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transient, recurring or anti task",
	}
	cmd.AddCommand(
		a.newAddKindCommand(model.KindTransient, "Add a one-off task"),
		a.newAddKindCommand(model.KindRecurring, "Add a recurring task and all of its occurrences"),
		a.newAddKindCommand(model.KindAnti, "Cancel one occurrence of a recurring task"),
	)
	return cmd
}

func (a *app) newAddKindCommand(kind model.Kind, short string) *cobra.Command {
	var f addFlags
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := f.draft(kind)
			if err != nil {
				return err
			}
			if err := a.eng.AddTask(d); err != nil {
				return err
			}
			if err := a.commit(); err != nil {
				return err
			}
			n := len(a.eng.Occurrences(d.Name))
			if kind == model.KindRecurring {
				fmt.Fprintf(a.out, "Added %q with %d occurrences.\n", d.Name, n)
			} else {
				fmt.Fprintf(a.out, "Added %q.\n", d.Name)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "unique task name")
	fl.StringVar(&f.date, "date", "", "start date, YYYYMMDD or YYYY-MM-DD")
	fl.StringVar(&f.start, "start", "", "start time, HH:MM or fractional hours")
	fl.Float64Var(&f.duration, "duration", 0, "duration in hours, quarter-hour steps")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("duration")

	switch kind {
	case model.KindAnti:
		f.subtype = string(model.Cancellation)
	default:
		fl.StringVar(&f.subtype, "type", "", "task type: "+joinSubtypes(kind))
		_ = cmd.MarkFlagRequired("type")
	}
	if kind == model.KindRecurring {
		fl.StringVar(&f.end, "end", "", "last date, YYYYMMDD or YYYY-MM-DD")
		fl.StringVar(&f.frequency, "frequency", "", "Daily, Weekly or Monthly")
		_ = cmd.MarkFlagRequired("end")
		_ = cmd.MarkFlagRequired("frequency")
	}
	return cmd
}

func (f addFlags) draft(kind model.Kind) (model.Draft, error) {
	d := model.Draft{
		Name:     f.name,
		Kind:     kind,
		Subtype:  model.Subtype(f.subtype),
		Duration: f.duration,
	}
	var err error
	if d.StartDate, err = dateutil.ParseDate(f.date); err != nil {
		return d, model.Validationf("%s", err)
	}
	if d.StartTime, err = dateutil.ParseTime(f.start); err != nil {
		return d, model.Validationf("%s", err)
	}
	if kind != model.KindRecurring {
		return d, nil
	}
	if d.EndDate, err = dateutil.ParseDate(f.end); err != nil {
		return d, model.Validationf("End date: %s", err)
	}
	if d.Frequency, err = dateutil.ParseFrequency(f.frequency); err != nil {
		return d, model.Validationf("%s", err)
	}
	return d, nil
}

func joinSubtypes(k model.Kind) string {
	subs := model.Subtypes(k)
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, string(s))
	}
	return strings.Join(out, ", ")
}

func (a *app) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a task; deleting a recurring task removes every occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.eng.DeleteTask(args[0]); err != nil {
				return err
			}
			if err := a.commit(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %q.\n", args[0])
			return nil
		},
	}
}

func (a *app) newViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view NAME",
		Short: "Show a task and all of its occurrences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.eng.ViewTask(args[0]); err != nil {
				return err
			}
			return a.printTasks(a.out, a.eng.Occurrences(args[0]))
		},
	}
}

func (a *app) newScheduleCommand() *cobra.Command {
	var start, rng string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "List the tasks of a day, week, month or calendar window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, r, err := parseWindow(start, rng, schedule.RangeWeek)
			if err != nil {
				return err
			}
			tasks, err := a.eng.ViewSchedule(date, r)
			if err != nil {
				return err
			}
			return a.printTasks(a.out, tasks)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYYMMDD or YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&rng, "range", "", "day, week, month or calendar (default week)")
	return cmd
}

func parseWindow(start, rng string, def schedule.Range) (dateutil.Date, schedule.Range, error) {
	date := today()
	if start != "" {
		d, err := dateutil.ParseDate(start)
		if err != nil {
			return 0, "", model.Validationf("%s", err)
		}
		date = d
	}
	r := def
	if rng != "" {
		parsed, err := schedule.ParseRange(rng)
		if err != nil {
			return 0, "", err
		}
		r = parsed
	}
	return date, r, nil
}

// printTasks writes one aligned line per task.
func (a *app) printTasks(w io.Writer, tasks []model.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range tasks {
		b := t.Common()
		note := ""
		switch v := t.(type) {
		case model.RecurringTask:
			note = fmt.Sprintf("%s until %s", v.Frequency, dateutil.Format(v.EndDate))
			if !a.eng.IsActive(v) {
				note += ", cancelled"
			}
		case model.AntiTask:
			note = "cancels " + v.Cancels
		case model.TransientTask:
		}
		fmt.Fprintf(tw, "%s\t%s-%s\t%s\t%s\t%s\t%s\n",
			dateutil.Format(b.StartDate),
			dateutil.FormatTime(b.StartTime), dateutil.FormatTime(b.EndTime()),
			b.Name, b.Subtype, t.Kind(), note)
	}
	return tw.Flush()
}
