package domain

import (
	"time"

	catalog "github.com/smallbiznis/silver/internal/catalog/domain"
	"github.com/smallbiznis/silver/pkg/dateutil"
)

// Cycle boundaries are anchored at the subscription start date: the
// k-th boundary is start + k*count intervals, with calendar-clamped
// month and year addition. A nil result means the reference date has no
// cycle, which callers must read as "not billable now".

// CycleStartDate returns the start of the cycle containing ref under
// the given cadence, honoring the trial window.
func (s *Subscription) CycleStartDate(plan *catalog.Plan, ref time.Time, cadence catalog.Cadence) *time.Time {
	return s.cycleStartDate(plan, ref, false, false, cadence)
}

// CycleEndDate returns the inclusive end of the cycle containing ref,
// clamped to ended_at when set.
func (s *Subscription) CycleEndDate(plan *catalog.Plan, ref time.Time, cadence catalog.Cadence) *time.Time {
	return s.cycleEndDate(plan, ref, false, false, cadence, true)
}

// BucketStartDate is the granulated variant used for usage logging: one
// bucket per single interval regardless of the plan's interval count.
func (s *Subscription) BucketStartDate(plan *catalog.Plan, ref time.Time, cadence catalog.Cadence) *time.Time {
	return s.cycleStartDate(plan, ref, false, true, cadence)
}

// BucketEndDate is the granulated variant of CycleEndDate.
func (s *Subscription) BucketEndDate(plan *catalog.Plan, ref time.Time, cadence catalog.Cadence) *time.Time {
	return s.cycleEndDate(plan, ref, false, true, cadence, true)
}

// CycleStartDateIgnoringTrial resolves the cycle start as if no trial
// existed. Used for full-interval proration baselines and for the
// cycle_billing_duration cap.
func (s *Subscription) CycleStartDateIgnoringTrial(plan *catalog.Plan, ref time.Time, cadence catalog.Cadence) *time.Time {
	return s.cycleStartDate(plan, ref, true, false, cadence)
}

func (s *Subscription) cycleStartDate(plan *catalog.Plan, ref time.Time, ignoreTrial, granulate bool, cadence catalog.Cadence) *time.Time {
	if s.StartDate == nil {
		return nil
	}
	start := dateutil.DateOf(*s.StartDate)
	day := dateutil.DateOf(ref)
	if day.Before(start) {
		return nil
	}

	interval, count := plan.IntervalFor(cadence)
	if granulate {
		count = 1
	}

	boundary := lastBoundaryAtOrBefore(start, day, interval, count)

	if !ignoreTrial && s.TrialEnd != nil {
		trialEnd := dateutil.DateOf(*s.TrialEnd)
		if !day.After(trialEnd) {
			// On trial. The whole trial is one bucket unless the plan
			// separates trial cycles or the caller granulates.
			if granulate || plan.SeparateCyclesDuringTrial {
				return &boundary
			}
			return &start
		}
		// The first post-trial cycle starts the day after trial end,
		// even when that is not a boundary.
		postTrial := dateutil.MaxDate(dateutil.NextDay(trialEnd), boundary)
		return &postTrial
	}

	return &boundary
}

// lastBoundaryAtOrBefore walks boundaries anchored at start forward to
// the last one not after ref. Each boundary is computed from the anchor
// so month clamping stays consistent across steps.
func lastBoundaryAtOrBefore(start, ref time.Time, interval dateutil.Interval, count int) time.Time {
	boundary := start
	for k := 1; ; k++ {
		next := dateutil.AddInterval(start, interval, k*count)
		if next.After(ref) {
			return boundary
		}
		boundary = next
	}
}

func (s *Subscription) cycleEndDate(plan *catalog.Plan, ref time.Time, ignoreTrial, granulate bool, cadence catalog.Cadence, clampToEnded bool) *time.Time {
	startPtr := s.cycleStartDate(plan, ref, ignoreTrial, granulate, cadence)
	if startPtr == nil {
		return nil
	}

	if !ignoreTrial && s.OnTrial(ref) && !granulate && !plan.SeparateCyclesDuringTrial {
		end := dateutil.DateOf(*s.TrialEnd)
		return s.clampEnd(end, clampToEnded)
	}

	interval, count := plan.IntervalFor(cadence)
	if granulate {
		count = 1
	}

	end := dateutil.EndOfInterval(*startPtr, interval, count)
	for {
		recomputed := s.cycleStartDate(plan, end, ignoreTrial, granulate, cadence)
		if recomputed == nil {
			return nil
		}
		if dateutil.SameDate(*recomputed, *startPtr) {
			break
		}
		if recomputed.Before(*startPtr) {
			// Alignment walked backwards, which a correct boundary
			// sequence never does. Bail out rather than loop.
			return nil
		}
		end = dateutil.PrevDay(*recomputed)
	}

	return s.clampEnd(end, clampToEnded)
}

func (s *Subscription) clampEnd(end time.Time, clampToEnded bool) *time.Time {
	if clampToEnded && s.EndedAt != nil {
		endedAt := dateutil.DateOf(*s.EndedAt)
		if endedAt.Before(end) {
			return &endedAt
		}
	}
	return &end
}
