package snapshot

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pss/internal/dateutil"
	"pss/internal/model"
	"pss/internal/schedule"
)

type tuple struct {
	Name      string
	Subtype   model.Subtype
	Date      dateutil.Date
	StartTime float64
	Duration  float64
}

func activeTuples(s *schedule.Store) []tuple {
	tasks := s.Active(s.Tasks())
	schedule.SortByStart(tasks)
	out := make([]tuple, 0, len(tasks))
	for _, t := range tasks {
		b := t.Common()
		out = append(out, tuple{b.Name, b.Subtype, b.StartDate, b.StartTime, b.Duration})
	}
	return out
}

func seeded(t *testing.T) *schedule.Store {
	t.Helper()
	s := schedule.NewStore(schedule.Config{})
	require.NoError(t, s.Create(model.Draft{
		Name: "Gym", Kind: model.KindRecurring, Subtype: model.Exercise,
		StartTime: 7, StartDate: 20220101, Duration: 1, EndDate: 20220103, Frequency: dateutil.Daily,
	}))
	require.NoError(t, s.Create(model.Draft{
		Name: "Doctor", Kind: model.KindTransient, Subtype: model.Appointment,
		StartTime: 9, StartDate: 20220102, Duration: 0.5,
	}))
	return s
}

func TestDecode(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	s := func(v string) *string { return &v }

	d, err := Decode(Record{Name: s("Doctor"), Type: s("Appointment"), Date: f(20220102), StartTime: f(9), Duration: f(0.5)})
	require.NoError(t, err)
	assert.Equal(t, model.KindTransient, d.Kind)
	assert.Equal(t, dateutil.Date(20220102), d.StartDate)

	d, err = Decode(Record{Name: s("Rent"), Type: s("Work"), StartDate: f(20220131), EndDate: f(20220430), StartTime: f(8), Duration: f(1), Frequency: f(31)})
	require.NoError(t, err)
	assert.Equal(t, model.KindRecurring, d.Kind)
	assert.Equal(t, dateutil.Monthly, d.Frequency)

	d, err = Decode(Record{Name: s("Skip"), Type: s("Cancellation"), Date: f(20220102), StartTime: f(7), Duration: f(1)})
	require.NoError(t, err)
	assert.Equal(t, model.KindAnti, d.Kind)

	bad := []struct {
		name string
		rec  Record
		msg  string
	}{
		{"missing name", Record{Type: s("Visit"), Date: f(20220102), StartTime: f(9), Duration: f(1)}, "Name"},
		{"unknown type", Record{Name: s("X"), Type: s("Nap"), Date: f(20220102), StartTime: f(9), Duration: f(1)}, "Nap"},
		{"missing time", Record{Name: s("X"), Type: s("Visit"), Date: f(20220102), Duration: f(1)}, "StartTime"},
		{"time off grid", Record{Name: s("X"), Type: s("Visit"), Date: f(20220102), StartTime: f(9.3), Duration: f(1)}, "StartTime"},
		{"zero duration", Record{Name: s("X"), Type: s("Visit"), Date: f(20220102), StartTime: f(9), Duration: f(0)}, "Duration"},
		{"missing date", Record{Name: s("X"), Type: s("Visit"), StartTime: f(9), Duration: f(1)}, "Date"},
		{"negative date", Record{Name: s("X"), Type: s("Visit"), Date: f(-1), StartTime: f(9), Duration: f(1)}, "Date"},
		{"fractional date", Record{Name: s("X"), Type: s("Visit"), Date: f(20220102.5), StartTime: f(9), Duration: f(1)}, "Date"},
		{"end before start", Record{Name: s("X"), Type: s("Work"), StartDate: f(20220105), EndDate: f(20220101), StartTime: f(9), Duration: f(1), Frequency: f(1)}, "EndDate"},
		{"bad frequency", Record{Name: s("X"), Type: s("Work"), StartDate: f(20220101), EndDate: f(20220105), StartTime: f(9), Duration: f(1), Frequency: f(2)}, "Frequency"},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrValidation))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestExportDropsCancelledAndSplitsRuns(t *testing.T) {
	s := seeded(t)
	require.NoError(t, s.Create(model.Draft{
		Name: "Skip", Kind: model.KindAnti, Subtype: model.Cancellation,
		StartTime: 7, StartDate: 20220102, Duration: 1,
	}))

	records := Export(s.Tasks(), s.IsActive)
	require.Len(t, records, 3)

	assert.Equal(t, "Gym", records[0].DisplayName())
	assert.Equal(t, 20220101.0, *records[0].StartDate)
	assert.Equal(t, 20220101.0, *records[0].EndDate)
	assert.Equal(t, 1.0, *records[0].Frequency)

	assert.Equal(t, "Doctor", records[1].DisplayName())
	assert.Equal(t, 20220102.0, *records[1].Date)
	assert.Nil(t, records[1].Frequency)

	assert.Equal(t, "Gym (2)", records[2].DisplayName())
	assert.Equal(t, 20220103.0, *records[2].StartDate)
	assert.Equal(t, 20220103.0, *records[2].EndDate)
}

func TestExportKeepsTemplateEndDate(t *testing.T) {
	s := schedule.NewStore(schedule.Config{})
	require.NoError(t, s.Create(model.Draft{
		Name: "Class", Kind: model.KindRecurring, Subtype: model.Class,
		StartTime: 10, StartDate: 20220103, Duration: 2, EndDate: 20220120, Frequency: dateutil.Weekly,
	}))

	records := Export(s.Tasks(), s.IsActive)
	require.Len(t, records, 1)
	assert.Equal(t, 20220120.0, *records[0].EndDate)
	assert.Equal(t, 7.0, *records[0].Frequency)
}

func TestRoundTrip(t *testing.T) {
	src := seeded(t)
	require.NoError(t, src.Create(model.Draft{
		Name: "Skip", Kind: model.KindAnti, Subtype: model.Cancellation,
		StartTime: 7, StartDate: 20220102, Duration: 1,
	}))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Export(src.Tasks(), src.IsActive), 2))
	assert.Contains(t, buf.String(), `"Frequency": 1`)

	dst := schedule.NewStore(schedule.Config{})
	n, err := Import(&buf, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := activeTuples(src)
	got := activeTuples(dst)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Subtype, got[i].Subtype)
		assert.Equal(t, want[i].Date, got[i].Date)
		assert.Equal(t, want[i].StartTime, got[i].StartTime)
		assert.Equal(t, want[i].Duration, got[i].Duration)
		assert.True(t, strings.HasPrefix(got[i].Name, want[i].Name))
	}
}

func TestImportIsAtomic(t *testing.T) {
	s := seeded(t)
	before := s.Tasks()

	snapshot := `[
		{"Name": "Lunch", "Type": "Meal", "StartDate": 20220110, "StartTime": 12, "Duration": 1, "EndDate": 20220112, "Frequency": 1},
		{"Name": "Shop", "Type": "Shopping", "Date": 20220110, "StartTime": 15, "Duration": 1},
		{"Name": "Clash", "Type": "Visit", "Date": 20220111, "StartTime": 12.5, "Duration": 1}
	]`
	_, err := Import(strings.NewReader(snapshot), s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrImport))
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Contains(t, err.Error(), `Record 3 ("Clash")`)
	assert.Equal(t, before, s.Tasks())

	schemaBad := `[
		{"Name": "Shop", "Type": "Shopping", "Date": 20220110, "StartTime": 15, "Duration": 1},
		{"Name": "Late", "Type": "Visit", "Date": 20220110, "StartTime": 24, "Duration": 1}
	]`
	_, err = Import(strings.NewReader(schemaBad), s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Equal(t, before, s.Tasks())

	_, err = Import(strings.NewReader(`{"Name": "x"}`), s)
	assert.True(t, errors.Is(err, model.ErrImport))
}

func TestImportRollsBackAntiTasks(t *testing.T) {
	s := seeded(t)
	before := s.Tasks()

	snapshot := `[
		{"Name": "Skip", "Type": "Cancellation", "Date": 20220103, "StartTime": 7, "Duration": 1},
		{"Name": "Coffee", "Type": "Visit", "Date": 20220103, "StartTime": 7, "Duration": 0.5},
		{"Name": "Doctor", "Type": "Visit", "Date": 20220104, "StartTime": 7, "Duration": 0.5}
	]`
	_, err := Import(strings.NewReader(snapshot), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, before, s.Tasks())
}

func TestStateRoundTrip(t *testing.T) {
	src := seeded(t)
	require.NoError(t, src.Create(model.Draft{
		Name: "Skip", Kind: model.KindAnti, Subtype: model.Cancellation,
		StartTime: 7, StartDate: 20220102, Duration: 1,
	}))
	require.NoError(t, src.Create(model.Draft{
		Name: "Coffee", Kind: model.KindTransient, Subtype: model.Visit,
		StartTime: 7, StartDate: 20220102, Duration: 0.5,
	}))

	var buf bytes.Buffer
	require.NoError(t, SaveState(&buf, src.Tasks(), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))

	dst := schedule.NewStore(schedule.Config{})
	n, err := LoadState(&buf, dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, src.Tasks(), dst.Tasks())
}

func TestLoadStateRejectsUnknownVersion(t *testing.T) {
	_, err := LoadState(strings.NewReader(`{"version": 9, "tasks": []}`), schedule.NewStore(schedule.Config{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 9")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, WriteFile(path, []byte("[]")))
	require.NoError(t, WriteFile(path, []byte(`[{"x":1}]`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"x":1}]`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen(t *testing.T) {
	body := `[{"Name": "Shop", "Type": "Shopping", "Date": 20220110, "StartTime": 15, "Duration": 1}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snap.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	r, err := Open(context.Background(), srv.URL+"/snap.json")
	require.NoError(t, err)
	s := schedule.NewStore(schedule.Config{})
	n, err := Import(r, s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = Open(context.Background(), srv.URL+"/missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	r, err = Open(context.Background(), path)
	require.NoError(t, err)
	records, err := Parse(r)
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/a/b?token=x"))
}
