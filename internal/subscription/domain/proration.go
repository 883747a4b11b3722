package domain

import (
	"math/big"
	"time"

	catalog "github.com/smallbiznis/silver/internal/catalog/domain"
	"github.com/smallbiznis/silver/pkg/dateutil"
	"github.com/smallbiznis/silver/pkg/numbers"
)

// ProrationStatusAndFraction reports whether [start, end] is a partial
// cycle under the given cadence and the exact fraction of the full
// cycle it covers. The fraction stays rational; rounding happens only
// when an entry is materialized.
func (s *Subscription) ProrationStatusAndFraction(plan *catalog.Plan, start, end time.Time, cadence catalog.Cadence) (bool, *big.Rat) {
	start = dateutil.DateOf(start)
	end = dateutil.DateOf(end)

	fullStartPtr := s.cycleStartDate(plan, start, true, false, cadence)
	fullEndPtr := s.cycleEndDate(plan, start, true, false, cadence, false)
	if fullStartPtr == nil || fullEndPtr == nil {
		return false, numbers.One()
	}
	fullStart, fullEnd := *fullStartPtr, *fullEndPtr

	if dateutil.SameDate(start, fullStart) && dateutil.SameDate(end, fullEnd) {
		return false, numbers.One()
	}

	interval, _ := plan.IntervalFor(cadence)
	return true, intervalFraction(start, end, fullStart, fullEnd, interval)
}

// intervalFraction divides the covered range by the full interval. Day,
// week and year cadences compare day counts; months use the exact
// fractional month difference because month lengths vary.
func intervalFraction(start, end, fullStart, fullEnd time.Time, interval dateutil.Interval) *big.Rat {
	if interval == dateutil.IntervalMonth {
		covered := dateutil.MonthDiffFraction(dateutil.NextDay(end), start)
		whole := dateutil.MonthDiffFraction(dateutil.NextDay(fullEnd), fullStart)
		if whole.Sign() == 0 {
			return numbers.One()
		}
		return new(big.Rat).Quo(covered, whole)
	}

	coveredDays := dateutil.DaysBetweenInclusive(start, end)
	wholeDays := dateutil.DaysBetweenInclusive(fullStart, fullEnd)
	if wholeDays == 0 {
		return numbers.One()
	}
	return big.NewRat(int64(coveredDays), int64(wholeDays))
}
