// Package dateutil provides the calendar arithmetic used by the billing
// cycle resolver: interval alignment, calendar-correct interval addition and
// exact month-difference fractions.
//
// All dates handled here are civil dates represented as UTC midnight
// time.Time values; callers are expected to normalize with DateOf before
// passing anything carrying a wall-clock component.
package dateutil

import (
	"math/big"
	"time"
)

// Interval is a billing interval unit.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Valid reports whether the interval is one of the supported units.
func (i Interval) Valid() bool {
	switch i {
	case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return true
	default:
		return false
	}
}

// Date builds a civil date at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates a timestamp to its UTC civil date.
func DateOf(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return Date(year, month, day)
}

// NextDay returns the following civil date.
func NextDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1)
}

// PrevDay returns the preceding civil date.
func PrevDay(t time.Time) time.Time {
	return t.AddDate(0, 0, -1)
}

// SameDate reports whether two timestamps fall on the same UTC civil date.
func SameDate(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// MinDate returns the earlier of two dates.
func MinDate(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

// MaxDate returns the later of two dates.
func MaxDate(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// DaysBetweenInclusive counts the days in the closed range [start, end].
// Returns 0 when end precedes start.
func DaysBetweenInclusive(start, end time.Time) int {
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// FirstDayOfInterval returns the first day of the day/week/month/year
// containing the given date. Weeks are Monday-aligned.
func FirstDayOfInterval(t time.Time, interval Interval) time.Time {
	t = DateOf(t)
	switch interval {
	case IntervalDay:
		return t
	case IntervalWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -offset)
	case IntervalMonth:
		return Date(t.Year(), t.Month(), 1)
	case IntervalYear:
		return Date(t.Year(), time.January, 1)
	default:
		return t
	}
}

// DaysInMonth returns the number of days in the month containing t.
func DaysInMonth(t time.Time) int {
	t = DateOf(t)
	first := Date(t.Year(), t.Month(), 1)
	return DaysBetweenInclusive(first, first.AddDate(0, 1, -1))
}

// addMonthsClamped adds calendar months, clamping the day of month to the
// last valid day of the target month (Jan 31 + 1 month = Feb 28/29). This
// differs from time.AddDate, which normalizes overflow into the next month.
func addMonthsClamped(t time.Time, months int) time.Time {
	t = DateOf(t)
	year, month, day := t.Date()
	total := int(month) - 1 + months
	targetYear := year + total/12
	targetMonth := time.Month(total%12 + 1)
	if total < 0 && total%12 != 0 {
		targetYear--
		targetMonth = time.Month(total%12 + 12 + 1)
	}
	last := DaysInMonth(Date(targetYear, targetMonth, 1))
	if day > last {
		day = last
	}
	return Date(targetYear, targetMonth, day)
}

// AddInterval advances a date by count intervals using calendar-correct
// month/year addition and plain day counts otherwise.
func AddInterval(t time.Time, interval Interval, count int) time.Time {
	t = DateOf(t)
	switch interval {
	case IntervalDay:
		return t.AddDate(0, 0, count)
	case IntervalWeek:
		return t.AddDate(0, 0, 7*count)
	case IntervalMonth:
		return addMonthsClamped(t, count)
	case IntervalYear:
		return addMonthsClamped(t, 12*count)
	default:
		return t
	}
}

// EndOfInterval returns the last day of the span covering count intervals
// from start: start + count intervals - 1 day.
func EndOfInterval(start time.Time, interval Interval, count int) time.Time {
	return PrevDay(AddInterval(start, interval, count))
}

// MonthDiffFraction computes the exact number of months between two dates as
// a rational: whole calendar months plus a remainder of (days into the
// partial month) / (length of that specific partial month in days). The
// result is antisymmetric: MonthDiffFraction(a, b) == -MonthDiffFraction(b, a).
func MonthDiffFraction(end, start time.Time) *big.Rat {
	end, start = DateOf(end), DateOf(start)
	if end.Before(start) {
		return new(big.Rat).Neg(MonthDiffFraction(start, end))
	}

	whole := 0
	for !addMonthsClamped(start, whole+1).After(end) {
		whole++
	}
	cursor := addMonthsClamped(start, whole)
	partialEnd := addMonthsClamped(start, whole+1)

	remainderDays := int64(end.Sub(cursor).Hours() / 24)
	partialLen := int64(partialEnd.Sub(cursor).Hours() / 24)

	out := new(big.Rat).SetInt64(int64(whole))
	if remainderDays > 0 && partialLen > 0 {
		out.Add(out, big.NewRat(remainderDays, partialLen))
	}
	return out
}
