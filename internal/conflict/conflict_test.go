package conflict

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pss/internal/dateutil"
	"pss/internal/model"
)

func occurrence(name string, date dateutil.Date, start, dur float64) model.RecurringTask {
	return model.RecurringTask{
		Base:      model.Base{Name: name, Subtype: model.Exercise, StartDate: date, StartTime: start, Duration: dur},
		EndDate:   20220103,
		Frequency: dateutil.Daily,
	}
}

func transient(name string, date dateutil.Date, start, dur float64) model.TransientTask {
	return model.TransientTask{Base: model.Base{Name: name, Subtype: model.Appointment, StartDate: date, StartTime: start, Duration: dur}}
}

func anti(name, cancels string, date dateutil.Date, start, dur float64) model.AntiTask {
	return model.AntiTask{
		Base:    model.Base{Name: name, Subtype: model.Cancellation, StartDate: date, StartTime: start, Duration: dur},
		Cancels: cancels,
	}
}

func gymSchedule() []model.Task {
	return []model.Task{
		occurrence("Gym", 20220101, 7, 1),
		occurrence("Gym", 20220102, 7, 1),
		occurrence("Gym", 20220103, 7, 1),
	}
}

func TestCheckTransient(t *testing.T) {
	existing := gymSchedule()

	require.NoError(t, Check(transient("Doctor", 20220102, 9, 0.5), existing))
	require.NoError(t, Check(transient("Early", 20220102, 6, 1), existing), "touching intervals do not overlap")

	err := Check(transient("Doctor2", 20220102, 7.5, 0.5), existing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Contains(t, err.Error(), `Exercise "Gym"`)
	assert.Contains(t, err.Error(), "2022-01-02 07:00")
}

func TestCheckReportsFirstConflictInOrder(t *testing.T) {
	existing := []model.Task{
		transient("A", 20220105, 10, 2),
		transient("B", 20220105, 11, 2),
	}
	err := Check(transient("C", 20220105, 11.5, 0.25), existing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"A"`)
}

func TestCheckSkipsCancelledOccurrence(t *testing.T) {
	existing := append(gymSchedule(), anti("Skip", "Gym", 20220102, 7, 1))

	require.NoError(t, Check(transient("Doctor2", 20220102, 7.5, 0.5), existing))
	require.NoError(t, Check(occurrence("Swim", 20220102, 7, 1), existing))

	err := Check(transient("Doctor3", 20220103, 7.5, 0.5), existing)
	assert.True(t, errors.Is(err, model.ErrConflict))
}

func TestCheckRecurringOccurrence(t *testing.T) {
	existing := []model.Task{transient("Doctor", 20220102, 9, 0.5)}

	err := Check(occurrence("Run", 20220102, 8.5, 1), existing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Contains(t, err.Error(), "New recurring task")
	require.NoError(t, Check(occurrence("Run", 20220103, 8.5, 1), existing))
}

func TestCheckAnti(t *testing.T) {
	existing := gymSchedule()

	require.NoError(t, Check(anti("Skip", "", 20220102, 7, 1), existing))

	err := Check(anti("Skip", "", 20220102, 7, 0.5), existing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Contains(t, err.Error(), "Unable to find recurring task")

	existing = append(existing, anti("Skip", "Gym", 20220102, 7, 1))
	err = Check(anti("Skip again", "", 20220102, 7, 1), existing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Contains(t, err.Error(), `"Skip"`)
}

func TestCancelTargetBindsUncancelledOccurrence(t *testing.T) {
	existing := gymSchedule()
	occ, err := CancelTarget(model.Slot{Date: 20220103, StartTime: 7, Duration: 1}, existing)
	require.NoError(t, err)
	assert.Equal(t, "Gym", occ.Name)
	assert.Equal(t, dateutil.Date(20220103), occ.StartDate)
}

func TestActive(t *testing.T) {
	existing := append(gymSchedule(), anti("Skip", "Gym", 20220102, 7, 1))
	assert.True(t, Active(existing[0], existing))
	assert.False(t, Active(existing[1], existing))
	assert.False(t, Active(existing[3], existing))
	assert.True(t, Active(transient("Doctor", 20220102, 9, 0.5), existing))
}

func TestExposed(t *testing.T) {
	skip := anti("Skip", "Gym", 20220102, 7, 1)
	existing := append(gymSchedule(), skip)
	require.NoError(t, Exposed(skip, existing))

	existing = append(existing, transient("Doctor2", 20220102, 7.5, 0.5))
	err := Exposed(skip, existing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Contains(t, err.Error(), `"Gym" and "Doctor2"`)
}
