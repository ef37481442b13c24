// Package dateutil implements calendar arithmetic on the two encodings the
// scheduler uses everywhere:
//
//   - dates are integers whose decimal digits read YYYYMMDD (20220131)
//   - times of day are fractional hours in quarter-hour steps (13.5 = 13:30)
//
// Everything here is pure. Out-of-range inputs are a programmer error; callers
// validate user input with Validate before doing arithmetic.
package dateutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date encoded as YYYYMMDD.
type Date int

// MaxDate is the largest value that fits the eight digit encoding.
const MaxDate Date = 99999999

// Quarter is the time granularity in hours.
const Quarter = 0.25

// Frequency is the recurrence step of a recurring task.
type Frequency string

const (
	Daily   Frequency = "Daily"
	Weekly  Frequency = "Weekly"
	Monthly Frequency = "Monthly"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Code is the integer encoding used in snapshot files.
func (f Frequency) Code() int {
	switch f {
	case Daily:
		return 1
	case Weekly:
		return 7
	case Monthly:
		return 30
	}
	return 0
}

// FrequencyFromCode decodes the snapshot integer encoding. 30 and 31 both
// mean Monthly.
func FrequencyFromCode(code int) (Frequency, bool) {
	switch code {
	case 1:
		return Daily, true
	case 7:
		return Weekly, true
	case 30, 31:
		return Monthly, true
	}
	return "", false
}

// ParseFrequency accepts the frequency name in any case.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// New builds a Date from its parts without validating them.
func New(year, month, day int) Date {
	return Date(year*10000 + month*100 + day)
}

// Year returns the year digits.
func (d Date) Year() int { return int(d) / 10000 }

// Month returns the month digits.
func (d Date) Month() int { return int(d) / 100 % 100 }

// Day returns the day digits.
func (d Date) Day() int { return int(d) % 100 }

// DayOfWeek returns 0 (Sunday) through 6 (Saturday).
func DayOfWeek(d Date) int {
	return int(ToTime(d).Weekday())
}

// DayOfMonth returns 1 through 31.
func DayOfMonth(d Date) int {
	return d.Day()
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns 28 through 31.
func DaysInMonth(month, year int) int {
	switch month {
	case 2:
		if IsLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	}
	return 31
}

// Validate checks the YYYYMMDD encoding and the calendar.
func Validate(d Date) error {
	if d < 0 || d > MaxDate {
		return fmt.Errorf("Invalid date length. Date format must be YYYYMMDD.")
	}
	month := d.Month()
	if month < 1 || month > 12 {
		return fmt.Errorf("Invalid month: given month %d is outside 1-12", month)
	}
	day := d.Day()
	if day < 1 || day > DaysInMonth(month, d.Year()) {
		return fmt.Errorf("Invalid day: given day %d exceeds the number of days in month %d", day, month)
	}
	return nil
}

// ToTime converts d to midnight UTC. No time zones are modeled.
func ToTime(d Date) time.Time {
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(), 0, 0, 0, 0, time.UTC)
}

// FromTime drops the clock part of t.
func FromTime(t time.Time) Date {
	return New(t.Year(), int(t.Month()), t.Day())
}

// AddDays moves d by n calendar days (n may be negative).
func AddDays(d Date, n int) Date {
	return FromTime(ToTime(d).AddDate(0, 0, n))
}

// AddMonths moves d by n calendar months, clamping the day to the length of
// the target month.
func AddMonths(d Date, n int) Date {
	total := d.Year()*12 + (d.Month() - 1) + n
	year, month := total/12, total%12+1
	day := min(d.Day(), DaysInMonth(month, year))
	return New(year, month, day)
}

// FirstOfMonth returns the first day of d's month.
func FirstOfMonth(d Date) Date {
	return New(d.Year(), d.Month(), 1)
}

// LastOfMonth returns the last day of d's month.
func LastOfMonth(d Date) Date {
	return New(d.Year(), d.Month(), DaysInMonth(d.Month(), d.Year()))
}

// AdvanceByFrequency returns the next occurrence date after d.
//
// Monthly keeps the day of month and clamps to the last day of a shorter
// month: 20220131 becomes 20220228, never 20220303. The step only looks at
// d, so a clamped date stays clamped on the next step.
func AdvanceByFrequency(d Date, f Frequency) Date {
	switch f {
	case Daily:
		return AddDays(d, 1)
	case Weekly:
		return AddDays(d, 7)
	case Monthly:
		return AddMonths(d, 1)
	}
	panic(fmt.Sprintf("dateutil: unknown frequency %q", f))
}

// EndTime returns startTime+duration in fractional hours, carrying minutes
// into hours. There is no wraparound past midnight.
func EndTime(startTime, duration float64) float64 {
	end := toMinutes(startTime) + toMinutes(duration)
	hours, minutes := end/60, end%60
	return float64(hours) + float64(minutes)/60
}

// OnQuarter reports whether v is a whole multiple of a quarter hour.
func OnQuarter(v float64) bool {
	return math.Mod(v, Quarter) == 0
}

// FormatTime renders fractional hours as HH:MM.
func FormatTime(t float64) string {
	m := toMinutes(t)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Format renders d as YYYY-MM-DD.
func Format(d Date) string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), d.Month(), d.Day())
}

// FormatDateTime renders a date and a fractional-hour time.
func FormatDateTime(d Date, t float64) string {
	return Format(d) + " " + FormatTime(t)
}

// ParseDate accepts YYYYMMDD or YYYY-MM-DD and validates the result.
func ParseDate(s string) (Date, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	d := Date(n)
	if err := Validate(d); err != nil {
		return 0, err
	}
	return d, nil
}

func toMinutes(hours float64) int {
	return int(math.Round(hours * 60))
}

// ParseTime accepts HH:MM or fractional hours ("7.5") and returns
// fractional hours. Range and quarter-hour checks are left to the caller.
func ParseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if h, m, ok := strings.Cut(s, ":"); ok {
		hours, err := strconv.Atoi(h)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		minutes, err := strconv.Atoi(m)
		if err != nil || minutes < 0 || minutes >= 60 || len(m) != 2 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		return float64(hours) + float64(minutes)/60, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return v, nil
}
