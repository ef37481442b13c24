package dateutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		month, year int
		want        int
	}{
		{1, 2022, 31},
		{2, 2022, 28},
		{2, 2024, 29},
		{2, 1900, 28},
		{2, 2000, 29},
		{4, 2022, 30},
		{12, 2022, 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysInMonth(tt.month, tt.year), "month %d year %d", tt.month, tt.year)
	}
}

func TestDayOfWeekAndMonth(t *testing.T) {
	// 2022-01-01 was a Saturday.
	assert.Equal(t, 6, DayOfWeek(20220101))
	assert.Equal(t, 0, DayOfWeek(20220102))
	assert.Equal(t, 1, DayOfMonth(20220101))
	assert.Equal(t, 31, DayOfMonth(20220131))
}

func TestAdvanceByFrequency(t *testing.T) {
	tests := []struct {
		name string
		from Date
		freq Frequency
		want Date
	}{
		{"daily", 20220101, Daily, 20220102},
		{"daily across month", 20220131, Daily, 20220201},
		{"daily across year", 20221231, Daily, 20230101},
		{"weekly", 20220101, Weekly, 20220108},
		{"weekly across month", 20220128, Weekly, 20220204},
		{"monthly", 20220115, Monthly, 20220215},
		{"monthly clamps to february", 20220131, Monthly, 20220228},
		{"monthly clamps to leap february", 20240131, Monthly, 20240229},
		{"monthly clamps to thirty", 20220331, Monthly, 20220430},
		{"monthly across year", 20221215, Monthly, 20230115},
		{"monthly stays clamped", 20220228, Monthly, 20220328},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdvanceByFrequency(tt.from, tt.freq))
		})
	}
}

func TestAdvanceByFrequencyUnknownPanics(t *testing.T) {
	assert.Panics(t, func() { AdvanceByFrequency(20220101, Frequency("Yearly")) })
}

func TestEndTime(t *testing.T) {
	assert.Equal(t, 8.0, EndTime(7, 1))
	assert.Equal(t, 10.0, EndTime(9.5, 0.5))
	assert.Equal(t, 14.25, EndTime(13.75, 0.5))
	assert.Equal(t, 24.0, EndTime(23, 1))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(20220228))
	require.NoError(t, Validate(20240229))

	err := Validate(20230229)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid day")

	err = Validate(20221301)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid month")

	err = Validate(20220100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid day")

	err = Validate(202201011)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid date length")
}

func TestAddMonthsAndBounds(t *testing.T) {
	assert.Equal(t, Date(20211231), AddMonths(20220131, -1))
	assert.Equal(t, Date(20220228), AddMonths(20211231, 2))
	assert.Equal(t, Date(20220101), FirstOfMonth(20220117))
	assert.Equal(t, Date(20220228), LastOfMonth(20220201))
	assert.Equal(t, Date(20211225), AddDays(20220101, -7))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "13:30", FormatTime(13.5))
	assert.Equal(t, "07:45", FormatTime(7.75))
	assert.Equal(t, "2022-01-02", Format(20220102))
	assert.Equal(t, "2022-01-02 09:15", FormatDateTime(20220102, 9.25))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2022-01-31")
	require.NoError(t, err)
	assert.Equal(t, Date(20220131), d)

	d, err = ParseDate("20220131")
	require.NoError(t, err)
	assert.Equal(t, Date(20220131), d)

	_, err = ParseDate("2022-02-30")
	assert.Error(t, err)
	_, err = ParseDate("tomorrow")
	assert.Error(t, err)
}

func TestFrequencyCodes(t *testing.T) {
	for _, f := range []Frequency{Daily, Weekly, Monthly} {
		got, ok := FrequencyFromCode(f.Code())
		require.True(t, ok)
		assert.Equal(t, f, got)
	}
	got, ok := FrequencyFromCode(31)
	assert.True(t, ok)
	assert.Equal(t, Monthly, got)
	_, ok = FrequencyFromCode(2)
	assert.False(t, ok)

	f, err := ParseFrequency("WEEKLY")
	require.NoError(t, err)
	assert.Equal(t, Weekly, f)
	assert.True(t, OnQuarter(13.75))
	assert.False(t, OnQuarter(13.1))
}

func TestParseTime(t *testing.T) {
	for in, want := range map[string]float64{"07:30": 7.5, "13:45": 13.75, "9": 9, " 0.25 ": 0.25} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"7:3", "7:60", "noon", "x:15"} {
		_, err := ParseTime(in)
		assert.Error(t, err, in)
	}
}
