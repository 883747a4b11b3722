package service

import (
	"time"

	"github.com/smallbiznis/silver/pkg/dateutil"

	billinglogdomain "github.com/smallbiznis/silver/internal/billinglog/domain"
	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/silver/internal/customer/domain"
	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
)

// billingContext carries everything a billing decision reads, fetched
// once per run inside the subscription's lock.
type billingContext struct {
	sub      *subscriptiondomain.Subscription
	plan     *catalogdomain.Plan
	customer *customerdomain.Customer
	lastLog  *billinglogdomain.BillingLog

	// hasOtherActiveSub is true when the customer has another active
	// subscription under the same provider. Drives consolidated
	// billing deferral.
	hasOtherActiveSub bool

	// defaultGenerateAfterSeconds applies when the plan has no grace of
	// its own.
	defaultGenerateAfterSeconds int
}

func (bc *billingContext) neverBilled() bool { return bc.lastLog == nil }

// planBilledUpTo is the plan watermark: the last day already billed, or
// the day before start when never billed.
func (bc *billingContext) planBilledUpTo() time.Time {
	if bc.lastLog != nil {
		return dateutil.DateOf(bc.lastLog.PlanBilledUpTo)
	}
	return dateutil.PrevDay(dateutil.DateOf(*bc.sub.StartDate))
}

func (bc *billingContext) meteredBilledUpTo() time.Time {
	if bc.lastLog != nil {
		return dateutil.DateOf(bc.lastLog.MeteredFeaturesBilledUpTo)
	}
	return dateutil.PrevDay(dateutil.DateOf(*bc.sub.StartDate))
}

func (bc *billingContext) generateAfter() time.Duration {
	seconds := bc.plan.GenerateAfter
	if seconds <= 0 {
		seconds = bc.defaultGenerateAfterSeconds
	}
	return time.Duration(seconds) * time.Second
}

// commonGate applies the checks shared by both cadences and resolves
// the effective cycle start. A nil cycle start means not eligible.
func (bc *billingContext) commonGate(billingDate, generateInstant time.Time, cadence catalogdomain.Cadence) (time.Time, *time.Time) {
	sub, plan := bc.sub, bc.plan

	if !sub.IsBillable() || sub.StartDate == nil {
		return billingDate, nil
	}

	billingDate = dateutil.DateOf(billingDate)

	if plan.CycleBillingDuration != nil {
		days := *plan.CycleBillingDuration
		firstCap := dateutil.AddInterval(dateutil.DateOf(*sub.StartDate), dateutil.IntervalDay, days)
		if bc.neverBilled() && firstCap.Before(billingDate) {
			// The window to bill the very first cycle has closed.
			return billingDate, nil
		}
		if base := sub.CycleStartDateIgnoringTrial(plan, billingDate, cadence); base != nil {
			cap := dateutil.AddInterval(*base, dateutil.IntervalDay, days)
			billingDate = dateutil.MinDate(billingDate, cap)
		}
	}

	if billingDate.After(dateutil.DateOf(generateInstant)) {
		return billingDate, nil
	}

	cycleStart := sub.CycleStartDate(plan, billingDate, cadence)
	if cycleStart == nil {
		return billingDate, nil
	}

	if sub.State == subscriptiondomain.StateCanceled && sub.CancelDate != nil {
		cancelDate := dateutil.DateOf(*sub.CancelDate)
		if !billingDate.After(cancelDate) {
			return billingDate, nil
		}
		// The final partial cycle runs through the cancel date and is
		// billed right after it.
		effective := dateutil.NextDay(cancelDate)
		cycleStart = &effective
	}

	if generateInstant.Before(cycleStart.Add(bc.generateAfter())) {
		return billingDate, nil
	}

	return billingDate, cycleStart
}

// consolidatedDeferred reports whether a first-time billing must wait
// for the provider-wide consolidated billing day.
func (bc *billingContext) consolidatedDeferred(billingDate time.Time) bool {
	if !bc.neverBilled() || bc.customer == nil || !bc.customer.ConsolidatedBilling || !bc.hasOtherActiveSub {
		return false
	}
	aligned := dateutil.FirstDayOfInterval(billingDate, bc.plan.Interval)
	return !dateutil.SameDate(billingDate, aligned)
}

func (bc *billingContext) shouldPlanBeBilled(billingDate, generateInstant time.Time) bool {
	effectiveDate, cycleStart := bc.commonGate(billingDate, generateInstant, catalogdomain.CadencePlan)
	if cycleStart == nil {
		return false
	}
	if bc.consolidatedDeferred(effectiveDate) {
		return false
	}

	billedUpTo := bc.planBilledUpTo()

	if bc.sub.State == subscriptiondomain.StateCanceled && bc.sub.CancelDate != nil {
		// The final partial cycle runs through the cancel date; once
		// the watermark reaches it there is nothing left to bill.
		return billedUpTo.Before(dateutil.DateOf(*bc.sub.CancelDate))
	}

	if bc.plan.PrebillPlan {
		// Prebilled plans are billed the moment the cycle is entered.
		return billedUpTo.Before(*cycleStart)
	}

	// In arrears: the cycle the watermark's successor belongs to must
	// have fully closed.
	closed := bc.sub.CycleEndDate(bc.plan, dateutil.NextDay(billedUpTo), catalogdomain.CadencePlan)
	if closed == nil || !closed.Before(*cycleStart) {
		return false
	}

	// A window ending inside the trial yields only zero-sum trial
	// entries. Those wait for the first paid cycle unless the plan
	// generates documents on trial end.
	if bc.sub.TrialEnd != nil && !bc.plan.GenerateDocumentsOnTrialEnd {
		trialEnd := dateutil.DateOf(*bc.sub.TrialEnd)
		if !dateutil.PrevDay(*cycleStart).After(trialEnd) {
			return false
		}
	}
	return true
}

func (bc *billingContext) shouldMeteredBeBilled(billingDate, generateInstant time.Time) bool {
	if len(bc.plan.MeteredFeatures) == 0 {
		return false
	}
	if bc.plan.BillMeteredFeaturesWithPlan && !bc.shouldPlanBeBilled(billingDate, generateInstant) {
		return false
	}

	effectiveDate, cycleStart := bc.commonGate(billingDate, generateInstant, catalogdomain.CadenceMeteredFeatures)
	if cycleStart == nil {
		return false
	}
	if bc.consolidatedDeferred(effectiveDate) {
		return false
	}

	billedUpTo := bc.meteredBilledUpTo()

	if bc.sub.State == subscriptiondomain.StateCanceled && bc.sub.CancelDate != nil {
		// The final usage period ends on the cancel date.
		return billedUpTo.Before(dateutil.DateOf(*bc.sub.CancelDate))
	}

	closed := bc.sub.CycleEndDate(bc.plan, dateutil.NextDay(billedUpTo), catalogdomain.CadenceMeteredFeatures)
	return closed != nil && closed.Before(effectiveDate)
}

func (bc *billingContext) shouldBeBilled(billingDate, generateInstant time.Time) (planDue, meteredDue bool) {
	planDue = bc.shouldPlanBeBilled(billingDate, generateInstant)
	meteredDue = bc.shouldMeteredBeBilled(billingDate, generateInstant)
	return planDue, meteredDue
}
