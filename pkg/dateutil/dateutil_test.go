package dateutil

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstDayOfInterval(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		interval Interval
		want     time.Time
	}{
		{"day is identity", Date(2024, time.March, 15), IntervalDay, Date(2024, time.March, 15)},
		{"week aligns to monday", Date(2024, time.March, 15), IntervalWeek, Date(2024, time.March, 11)},
		{"week on monday stays", Date(2024, time.March, 11), IntervalWeek, Date(2024, time.March, 11)},
		{"week on sunday goes back", Date(2024, time.March, 17), IntervalWeek, Date(2024, time.March, 11)},
		{"month aligns to first", Date(2024, time.February, 29), IntervalMonth, Date(2024, time.February, 1)},
		{"year aligns to january first", Date(2024, time.July, 4), IntervalYear, Date(2024, time.January, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstDayOfInterval(tt.date, tt.interval))
		})
	}
}

func TestAddInterval_MonthClamping(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		count int
		want  time.Time
	}{
		{"jan 31 plus one month clamps to feb 29 on leap year", Date(2024, time.January, 31), 1, Date(2024, time.February, 29)},
		{"jan 31 plus one month clamps to feb 28 otherwise", Date(2023, time.January, 31), 1, Date(2023, time.February, 28)},
		{"jan 31 plus two months lands on mar 31", Date(2024, time.January, 31), 2, Date(2024, time.March, 31)},
		{"may 31 plus one month clamps to jun 30", Date(2024, time.May, 31), 1, Date(2024, time.June, 30)},
		{"cross year boundary", Date(2024, time.November, 30), 3, Date(2025, time.February, 28)},
		{"negative month subtraction", Date(2024, time.March, 31), -1, Date(2024, time.February, 29)},
		{"negative across year", Date(2024, time.January, 15), -13, Date(2022, time.December, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddInterval(tt.start, IntervalMonth, tt.count))
		})
	}
}

func TestAddInterval_DayWeekYear(t *testing.T) {
	assert.Equal(t, Date(2024, time.March, 20), AddInterval(Date(2024, time.March, 10), IntervalDay, 10))
	assert.Equal(t, Date(2024, time.March, 25), AddInterval(Date(2024, time.March, 11), IntervalWeek, 2))
	assert.Equal(t, Date(2025, time.February, 28), AddInterval(Date(2024, time.February, 29), IntervalYear, 1))
}

func TestEndOfInterval(t *testing.T) {
	// start + count intervals - 1 day
	assert.Equal(t, Date(2024, time.February, 14), EndOfInterval(Date(2024, time.January, 15), IntervalMonth, 1))
	assert.Equal(t, Date(2024, time.January, 31), EndOfInterval(Date(2024, time.January, 1), IntervalMonth, 1))
	assert.Equal(t, Date(2024, time.March, 17), EndOfInterval(Date(2024, time.March, 11), IntervalWeek, 1))
	assert.Equal(t, Date(2024, time.March, 11), EndOfInterval(Date(2024, time.March, 11), IntervalDay, 1))
	assert.Equal(t, Date(2024, time.December, 31), EndOfInterval(Date(2024, time.January, 1), IntervalYear, 1))
}

func TestDaysBetweenInclusive(t *testing.T) {
	assert.Equal(t, 1, DaysBetweenInclusive(Date(2024, time.January, 1), Date(2024, time.January, 1)))
	assert.Equal(t, 31, DaysBetweenInclusive(Date(2024, time.January, 1), Date(2024, time.January, 31)))
	assert.Equal(t, 29, DaysBetweenInclusive(Date(2024, time.February, 1), Date(2024, time.February, 29)))
	assert.Equal(t, 0, DaysBetweenInclusive(Date(2024, time.January, 2), Date(2024, time.January, 1)))
}

func TestMonthDiffFraction(t *testing.T) {
	tests := []struct {
		name  string
		end   time.Time
		start time.Time
		want  *big.Rat
	}{
		{"whole month", Date(2024, time.February, 1), Date(2024, time.January, 1), big.NewRat(1, 1)},
		{"half of january-anchored month", Date(2024, time.February, 1), Date(2024, time.January, 15), big.NewRat(17, 31)},
		{"same date is zero", Date(2024, time.March, 5), Date(2024, time.March, 5), new(big.Rat)},
		{"one month plus remainder", Date(2024, time.March, 10), Date(2024, time.January, 15), ratSum(1, 24, 29)},
		{"twelve whole months", Date(2025, time.January, 1), Date(2024, time.January, 1), big.NewRat(12, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthDiffFraction(tt.end, tt.start)
			assert.Zero(t, tt.want.Cmp(got), "want %s got %s", tt.want, got)
		})
	}
}

func ratSum(whole, num, den int64) *big.Rat {
	out := new(big.Rat).SetInt64(whole)
	out.Add(out, big.NewRat(num, den))
	return out
}

func TestMonthDiffFraction_Antisymmetry(t *testing.T) {
	pairs := [][2]time.Time{
		{Date(2024, time.January, 15), Date(2024, time.March, 10)},
		{Date(2024, time.January, 31), Date(2024, time.February, 29)},
		{Date(2023, time.December, 1), Date(2024, time.February, 15)},
		{Date(2024, time.June, 30), Date(2024, time.July, 31)},
		{Date(2020, time.February, 29), Date(2024, time.February, 29)},
	}
	for _, pair := range pairs {
		forward := MonthDiffFraction(pair[1], pair[0])
		backward := MonthDiffFraction(pair[0], pair[1])
		require.Zero(t, forward.Cmp(new(big.Rat).Neg(backward)),
			"monthdiff(%s,%s)=%s not antisymmetric with %s", pair[1], pair[0], forward, backward)
	}
}

func TestMonthDiffFraction_TrialSplitSumsToWhole(t *testing.T) {
	// Splitting January at the 14th/15th must cover the whole month with no
	// gap or double counting.
	trial := MonthDiffFraction(Date(2024, time.January, 15), Date(2024, time.January, 1))
	rest := MonthDiffFraction(Date(2024, time.February, 1), Date(2024, time.January, 15))
	sum := new(big.Rat).Add(trial, rest)
	assert.Zero(t, sum.Cmp(big.NewRat(1, 1)), "got %s", sum)
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(Date(2024, time.February, 10)))
	assert.Equal(t, 28, DaysInMonth(Date(2023, time.February, 10)))
	assert.Equal(t, 31, DaysInMonth(Date(2024, time.December, 1)))
	assert.Equal(t, 30, DaysInMonth(Date(2024, time.April, 30)))
}

func TestDateOf(t *testing.T) {
	stamp := time.Date(2024, time.March, 15, 23, 45, 12, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, Date(2024, time.March, 15), DateOf(stamp))
}
