package cli

import (
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pss/internal/agenda"
	"pss/internal/dateutil"
	appLog "pss/internal/log"
	"pss/internal/model"
	"pss/internal/web"
)

// today is the default date for agenda and schedule commands.
var today = func() dateutil.Date { return dateutil.FromTime(time.Now()) }

func (a *app) newAgendaCommand() *cobra.Command {
	var date string
	var watch bool
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print the active tasks of one day, once or on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !watch {
				d, _, err := parseWindow(date, "", "")
				if err != nil {
					return err
				}
				tasks, err := a.eng.ActiveOn(d)
				if err != nil {
					return err
				}
				_, err = a.out.Write([]byte(agenda.Digest(tasks, d)))
				return err
			}

			r, err := agenda.NewRunner(a.cfg.AgendaCron, a.eng.ActiveOn, a.out)
			if err != nil {
				return err
			}
			return r.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to print, YYYYMMDD or YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and print today's agenda on the agenda_cron schedule")
	return cmd
}

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and iCalendar feed, reloading the state file when it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := web.NewServer(a.eng, web.Options{
				Listen:    a.cfg.Listen,
				StatePath: a.cfg.StatePath,
			})
			runner, err := agenda.NewRunner(a.cfg.AgendaCron, func(d dateutil.Date) ([]model.Task, error) {
				return srv.ActiveOn(d)
			}, a.out)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return srv.Run(ctx) })
			g.Go(func() error { return runner.Run(ctx) })
			g.Go(func() error {
				return web.WatchState(ctx, a.cfg.StatePath, 0, func() {
					if err := srv.Reload(); err != nil {
						appLog.Error("state reload failed", err, "path", a.cfg.StatePath)
					}
				})
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	if err := a.v.BindPFlag("listen", cmd.Flags().Lookup("listen")); err != nil {
		panic(err)
	}
	return cmd
}
