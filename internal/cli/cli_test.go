package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pss/internal/model"
)

type env struct {
	dir    string
	config string
	state  string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	return env{
		dir:    dir,
		config: filepath.Join(dir, "pss.yaml"),
		state:  filepath.Join(dir, "state.json"),
	}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config", e.config, "--state", e.state, "--log-level", "error"}, args...)
	err := Execute(context.Background(), full, &out, &errOut)
	return out.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "pss %s", strings.Join(args, " "))
	return out
}

func seed(t *testing.T, e env) {
	t.Helper()
	out := e.mustRun(t, "add", "recurring", "--name", "Gym", "--type", "Exercise",
		"--date", "20220101", "--start", "07:00", "--duration", "1", "--end", "2022-01-03", "--frequency", "daily")
	assert.Equal(t, "Added \"Gym\" with 3 occurrences.\n", out)
	e.mustRun(t, "add", "transient", "--name", "Doctor", "--type", "Appointment",
		"--date", "20220102", "--start", "9", "--duration", "0.5")
}

func TestAddViewDelete(t *testing.T) {
	e := newEnv(t)
	seed(t, e)

	_, err := os.Stat(e.config)
	require.NoError(t, err)

	_, err = e.run(t, "add", "transient", "--name", "Doctor2", "--type", "Appointment",
		"--date", "20220102", "--start", "7:30", "--duration", "0.5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))

	e.mustRun(t, "add", "anti", "--name", "CancelDay2", "--date", "20220102", "--start", "7:00", "--duration", "1")
	e.mustRun(t, "add", "transient", "--name", "Doctor2", "--type", "Appointment",
		"--date", "20220102", "--start", "7:30", "--duration", "0.5")

	out := e.mustRun(t, "view", "Gym")
	assert.Equal(t, 3, strings.Count(out, "Gym"))
	assert.Contains(t, out, "07:00-08:00")
	assert.Contains(t, out, "cancelled")

	out = e.mustRun(t, "schedule", "--start", "2022-01-02", "--range", "day")
	assert.Contains(t, out, "cancels Gym")
	assert.Contains(t, out, "Doctor2")

	_, err = e.run(t, "delete", "CancelDay2")
	assert.True(t, errors.Is(err, model.ErrConflict))

	e.mustRun(t, "delete", "Gym")
	_, err = e.run(t, "view", "CancelDay2")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = e.run(t, "add", "transient", "--name", "Bad", "--type", "Exercise",
		"--date", "20220105", "--start", "9", "--duration", "1")
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestExportImport(t *testing.T) {
	src := newEnv(t)
	seed(t, src)
	snap := filepath.Join(src.dir, "export.json")
	src.mustRun(t, "export", snap)

	data, err := os.ReadFile(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Frequency": 1`)

	dst := newEnv(t)
	out := dst.mustRun(t, "import", snap)
	assert.Equal(t, "Imported 2 tasks.\n", out)

	_, err = dst.run(t, "import", snap)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrImport))

	out = dst.mustRun(t, "schedule", "--start", "20220101", "--range", "week")
	assert.Equal(t, 3, strings.Count(out, "Gym"))

	window := filepath.Join(src.dir, "window.json")
	src.mustRun(t, "export", window, "--start", "20220102", "--range", "day")
	data, err = os.ReadFile(window)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"StartDate": 20220102`)
	assert.NotContains(t, string(data), `"StartDate": 20220101`)
}

func TestICSAndAgenda(t *testing.T) {
	e := newEnv(t)
	seed(t, e)

	out := e.mustRun(t, "ics")
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "RRULE:FREQ=DAILY")

	file := filepath.Join(e.dir, "cal.ics")
	e.mustRun(t, "ics", file)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SUMMARY:Doctor")

	out = e.mustRun(t, "agenda", "--date", "2022-01-02")
	assert.Equal(t, "Agenda for 2022-01-02\n07:00-08:00 Gym (Exercise)\n09:00-09:30 Doctor (Appointment)\n", out)
}

func TestConfigOverrides(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.config, []byte("export_indent: 0\nlog_level: error\n"), 0o600))
	seed(t, e)

	snap := filepath.Join(e.dir, "compact.json")
	e.mustRun(t, "export", snap)
	data, err := os.ReadFile(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Frequency":1`)

	t.Setenv("PSS_STATE_PATH", filepath.Join(e.dir, "other.json"))
	var out bytes.Buffer
	err = Execute(context.Background(), []string{"--config", e.config, "schedule", "--start", "20220101"}, &out, &out)
	require.NoError(t, err)
	assert.Equal(t, "No tasks.\n", out.String())

	_, err = e.run(t, "schedule", "--range", "year")
	assert.True(t, errors.Is(err, model.ErrValidation))
}
