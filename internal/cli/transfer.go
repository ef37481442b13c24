package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"pss/internal/engine"
	"pss/internal/schedule"
	"pss/internal/snapshot"
)

func (a *app) newExportCommand() *cobra.Command {
	var start, rng string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the schedule, or one window of it, as a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts engine.ExportOptions
			if start != "" || rng != "" {
				date, r, err := parseWindow(start, rng, schedule.RangeMonth)
				if err != nil {
					return err
				}
				opts = engine.ExportOptions{Start: date, Range: r}
			}
			if err := a.eng.ExportSchedule(args[0], opts); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Exported schedule to %s.\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day of the window (default today when --range is set)")
	cmd.Flags().StringVar(&rng, "range", "", "day, week, month or calendar (default month when --start is set)")
	return cmd
}

func (a *app) newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE|URL",
		Short: "Add every task of a JSON snapshot, or none of them if one is rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.eng.ImportSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.commit(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %d tasks.\n", n)
			return nil
		},
	}
}

func (a *app) newICSCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ics [FILE]",
		Short: "Write the schedule as iCalendar to FILE or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := a.eng.ExportICS()
			if len(args) == 0 {
				_, err := fmt.Fprint(a.out, body)
				return err
			}
			if err := snapshot.WriteFile(args[0], []byte(body)); err != nil {
				return errors.Wrap(err, "write calendar")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s.\n", args[0])
			return nil
		},
	}
}
