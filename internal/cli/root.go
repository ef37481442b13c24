// Package cli holds the pss command tree.
package cli

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pss/internal/config"
	"pss/internal/engine"
	"pss/internal/ics"
	appLog "pss/internal/log"
)

const defaultConfigPath = "./pss.yaml"

// app is the state shared by every command of one invocation.
type app struct {
	v   *viper.Viper
	out io.Writer

	cfg *config.Config
	eng *engine.Engine
}

// NewRootCommand builds the command tree. Normal output goes to out.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "pss",
		Short:         "Personal schedule keeper",
		Long:          "pss stores transient, recurring and cancellation tasks, rejects overlaps, and exports the schedule as JSON or iCalendar.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.String("config", defaultConfigPath, "path to the YAML config file")
	pf.String("state", "", "path to the schedule state file (overrides config)")
	pf.String("log-level", "", "debug, info, warn or error (overrides config)")

	a.v.SetEnvPrefix("pss")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for key, flag := range map[string]string{
		"config":     "config",
		"state_path": "state",
		"log_level":  "log-level",
	} {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		a.newAddCommand(),
		a.newDeleteCommand(),
		a.newViewCommand(),
		a.newScheduleCommand(),
		a.newExportCommand(),
		a.newImportCommand(),
		a.newICSCommand(),
		a.newAgendaCommand(),
		a.newServeCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root := NewRootCommand(out, errOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// setup loads the config file, applies env and flag overrides, and loads
// the schedule state.
func (a *app) setup() error {
	path := a.v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return errors.Wrapf(err, "load config %s", path)
	}

	if a.v.IsSet("state_path") {
		cfg.StatePath = a.v.GetString("state_path")
	}
	if a.v.IsSet("log_level") {
		cfg.LogLevel = a.v.GetString("log_level")
	}
	if a.v.IsSet("listen") {
		cfg.Listen = a.v.GetString("listen")
	}
	if a.v.IsSet("agenda_cron") {
		cfg.AgendaCron = a.v.GetString("agenda_cron")
	}
	cfg.Normalize()

	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	appLog.SetLevel(level)

	a.cfg = cfg
	a.eng = engine.New(engine.Config{
		MaxOccurrences: cfg.MaxOccurrences,
		ExportIndent:   cfg.ExportIndent,
		ICS: ics.Config{
			ProductID:    cfg.ICS.ProductID,
			CalendarName: cfg.ICS.CalendarName,
		},
	})
	if err := a.eng.Load(cfg.StatePath); err != nil {
		return err
	}
	appLog.Debug("effective config",
		"config", path,
		"state_path", cfg.StatePath,
		"log_level", cfg.LogLevel,
		"listen", cfg.Listen,
		"agenda_cron", cfg.AgendaCron,
	)
	return nil
}

// commit writes the state file after a mutation.
func (a *app) commit() error {
	return a.eng.Save(a.cfg.StatePath)
}
