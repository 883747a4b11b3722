package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smallbiznis/silver/pkg/dateutil"
	"github.com/smallbiznis/silver/pkg/numbers"

	bonusdomain "github.com/smallbiznis/silver/internal/bonus/domain"
	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	discountdomain "github.com/smallbiznis/silver/internal/discount/domain"
	documentdomain "github.com/smallbiznis/silver/internal/document/domain"
	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/silver/internal/usage/domain"
)

// generatedEntries is the outcome of one billing run before persistence.
type generatedEntries struct {
	entries []documentdomain.DocumentEntry

	planBilledUpTo            time.Time
	meteredFeaturesBilledUpTo time.Time

	totalBeforeTax decimal.Decimal
	total          decimal.Decimal
}

// entryGenerator walks the unbilled buckets of a subscription and
// produces document entries. It only reads; persistence stays with the
// caller's transaction.
type entryGenerator struct {
	bc        *billingContext
	usageRepo usagedomain.Repository
	discounts []discountdomain.Discount
	bonuses   []bonusdomain.Bonus
}

func (g *entryGenerator) generate(ctx context.Context, db *gorm.DB, billingDate, generateInstant time.Time, planDue, meteredDue bool) (*generatedEntries, error) {
	out := &generatedEntries{
		planBilledUpTo:            g.bc.planBilledUpTo(),
		meteredFeaturesBilledUpTo: g.bc.meteredBilledUpTo(),
	}

	if planDue {
		targetEnd, ok := g.planTargetEnd(billingDate, generateInstant)
		if ok {
			g.addPlanEntries(out, targetEnd)
			out.planBilledUpTo = targetEnd
		}
	}

	if meteredDue {
		targetEnd, ok := g.meteredTargetEnd(billingDate, generateInstant)
		if ok {
			if err := g.addMeteredEntries(ctx, db, out, targetEnd); err != nil {
				return nil, err
			}
			out.meteredFeaturesBilledUpTo = targetEnd
		}
	}

	g.addDiscountEntries(out)
	g.sumTotals(out)
	return out, nil
}

// planTargetEnd is the last day the base amount gets billed through in
// this run: the cancel date for final cycles, the current cycle's end
// for prebilled plans, the day before the current cycle otherwise.
func (g *entryGenerator) planTargetEnd(billingDate, generateInstant time.Time) (time.Time, bool) {
	sub, plan := g.bc.sub, g.bc.plan

	if sub.State == subscriptiondomain.StateCanceled && sub.CancelDate != nil {
		return dateutil.DateOf(*sub.CancelDate), true
	}

	_, cycleStart := g.bc.commonGate(billingDate, generateInstant, catalogdomain.CadencePlan)
	if cycleStart == nil {
		return time.Time{}, false
	}
	if plan.PrebillPlan {
		end := sub.CycleEndDate(plan, *cycleStart, catalogdomain.CadencePlan)
		if end == nil {
			return time.Time{}, false
		}
		return *end, true
	}
	return dateutil.PrevDay(*cycleStart), true
}

func (g *entryGenerator) meteredTargetEnd(billingDate, generateInstant time.Time) (time.Time, bool) {
	sub := g.bc.sub

	if sub.State == subscriptiondomain.StateCanceled && sub.CancelDate != nil {
		return dateutil.DateOf(*sub.CancelDate), true
	}

	_, cycleStart := g.bc.commonGate(billingDate, generateInstant, catalogdomain.CadenceMeteredFeatures)
	if cycleStart == nil {
		return time.Time{}, false
	}
	return dateutil.PrevDay(*cycleStart), true
}

// addPlanEntries emits one base-amount entry per bucket between the
// watermark and targetEnd. Trial buckets get a charge and a matching
// credit so the document shows the value of the trial.
func (g *entryGenerator) addPlanEntries(out *generatedEntries, targetEnd time.Time) {
	sub, plan := g.bc.sub, g.bc.plan
	subID := sub.ID

	cur := dateutil.NextDay(out.planBilledUpTo)
	for !cur.After(targetEnd) {
		bucketEnd := sub.BucketEndDate(plan, cur, catalogdomain.CadencePlan)
		if bucketEnd == nil {
			return
		}
		end := dateutil.MinDate(*bucketEnd, targetEnd)
		start := cur
		startCopy, endCopy := start, end

		prorated, fraction := sub.ProrationStatusAndFraction(plan, start, end, catalogdomain.CadencePlan)
		amount := numbers.MulRat(plan.Amount, fraction, 2)

		if sub.TrialEnd != nil && !end.After(dateutil.DateOf(*sub.TrialEnd)) {
			out.entries = append(out.entries,
				documentdomain.DocumentEntry{
					SubscriptionID: &subID,
					Description:    fmt.Sprintf("%s plan trial (%s)", plan.Name, formatPeriod(start, end)),
					ProductCode:    plan.ProductCode,
					Quantity:       decimal.NewFromInt(1),
					UnitPrice:      amount,
					StartDate:      &startCopy,
					EndDate:        &endCopy,
					Prorated:       prorated,
				},
				documentdomain.DocumentEntry{
					SubscriptionID: &subID,
					Description:    fmt.Sprintf("%s plan trial discount (%s)", plan.Name, formatPeriod(start, end)),
					ProductCode:    plan.ProductCode,
					Quantity:       decimal.NewFromInt(1),
					UnitPrice:      amount.Neg(),
					StartDate:      &startCopy,
					EndDate:        &endCopy,
					Prorated:       prorated,
				})
		} else {
			out.entries = append(out.entries, documentdomain.DocumentEntry{
				SubscriptionID: &subID,
				Description:    fmt.Sprintf("%s plan subscription (%s)", plan.Name, formatPeriod(start, end)),
				ProductCode:    plan.ProductCode,
				Quantity:       decimal.NewFromInt(1),
				UnitPrice:      amount,
				StartDate:      &startCopy,
				EndDate:        &endCopy,
				Prorated:       prorated,
			})
		}

		cur = dateutil.NextDay(end)
	}
}

// addMeteredEntries emits overage charges per feature per bucket
// between the metered watermark and targetEnd, then bonus credits
// against those charges.
func (g *entryGenerator) addMeteredEntries(ctx context.Context, db *gorm.DB, out *generatedEntries, targetEnd time.Time) error {
	sub, plan := g.bc.sub, g.bc.plan

	cur := dateutil.NextDay(out.meteredFeaturesBilledUpTo)
	for !cur.After(targetEnd) {
		bucketEnd := sub.BucketEndDate(plan, cur, catalogdomain.CadenceMeteredFeatures)
		if bucketEnd == nil {
			return nil
		}
		end := dateutil.MinDate(*bucketEnd, targetEnd)

		for i := range plan.MeteredFeatures {
			feature := &plan.MeteredFeatures[i]
			if err := g.addFeatureEntries(ctx, db, out, feature, cur, end); err != nil {
				return err
			}
		}

		cur = dateutil.NextDay(end)
	}
	return nil
}

func (g *entryGenerator) addFeatureEntries(ctx context.Context, db *gorm.DB, out *generatedEntries, feature *catalogdomain.MeteredFeature, start, end time.Time) error {
	sub, plan := g.bc.sub, g.bc.plan
	subID := sub.ID

	logs, err := g.usageRepo.ListForPeriod(ctx, db, sub.ID, feature.ID, start, end)
	if err != nil {
		return err
	}

	consumed := decimal.Zero
	var annotations []string
	seen := map[string]bool{}
	for _, log := range logs {
		consumed = consumed.Add(log.ConsumedUnits)
		if log.Annotation != "" && !seen[log.Annotation] {
			seen[log.Annotation] = true
			annotations = append(annotations, log.Annotation)
		}
	}

	startCopy, endCopy := start, end

	if sub.TrialEnd != nil && !end.After(dateutil.DateOf(*sub.TrialEnd)) {
		included := feature.IncludedDuringTrial(consumed)
		free := decimal.Min(consumed, included)
		extra := consumed.Sub(free)

		if free.IsPositive() {
			out.entries = append(out.entries,
				documentdomain.DocumentEntry{
					SubscriptionID: &subID,
					Description:    fmt.Sprintf("%s trial usage (%s)", feature.Name, formatPeriod(start, end)),
					Unit:           feature.Unit,
					ProductCode:    feature.ProductCode,
					Quantity:       free.Round(4),
					UnitPrice:      feature.PricePerUnit,
					StartDate:      &startCopy,
					EndDate:        &endCopy,
				},
				documentdomain.DocumentEntry{
					SubscriptionID: &subID,
					Description:    fmt.Sprintf("%s trial usage discount (%s)", feature.Name, formatPeriod(start, end)),
					Unit:           feature.Unit,
					ProductCode:    feature.ProductCode,
					Quantity:       free.Round(4),
					UnitPrice:      feature.PricePerUnit.Neg(),
					StartDate:      &startCopy,
					EndDate:        &endCopy,
				})
		}
		if extra.IsPositive() {
			out.entries = append(out.entries, documentdomain.DocumentEntry{
				SubscriptionID: &subID,
				Description:    fmt.Sprintf("%s usage over trial allowance (%s)", feature.Name, formatPeriod(start, end)),
				Unit:           feature.Unit,
				ProductCode:    feature.ProductCode,
				Quantity:       extra.Round(4),
				UnitPrice:      feature.PricePerUnit,
				StartDate:      &startCopy,
				EndDate:        &endCopy,
			})
		}
		return nil
	}

	prorated, fraction := sub.ProrationStatusAndFraction(plan, start, end, catalogdomain.CadenceMeteredFeatures)
	included := numbers.MulRat(feature.IncludedUnits, fraction, 4)

	subStart := dateutil.DateOf(*sub.StartDate)
	for i := range g.bonuses {
		bonus := &g.bonuses[i]
		if bonus.Behavior != bonusdomain.ApplyDirectlyToTarget {
			continue
		}
		if !bonus.MatchesSubscription(sub) || !bonus.MatchesFeature(feature, annotations) || !bonus.ActiveFor(start, end, subStart) {
			continue
		}
		included = included.Add(bonus.GrantedUnits(feature.IncludedUnits))
	}

	overage := consumed.Sub(included)
	if !overage.IsPositive() {
		return nil
	}

	out.entries = append(out.entries, documentdomain.DocumentEntry{
		SubscriptionID: &subID,
		Description:    fmt.Sprintf("%s usage (%s)", feature.Name, formatPeriod(start, end)),
		Unit:           feature.Unit,
		ProductCode:    feature.ProductCode,
		Quantity:       overage.Round(4),
		UnitPrice:      feature.PricePerUnit,
		StartDate:      &startCopy,
		EndDate:        &endCopy,
		Prorated:       prorated,
	})

	// Separately-applied bonuses consume the overage in list order,
	// each emitting its own credit line.
	remaining := overage
	for i := range g.bonuses {
		bonus := &g.bonuses[i]
		if bonus.Behavior != bonusdomain.ApplySeparatelyPerEntry {
			continue
		}
		if !bonus.MatchesSubscription(sub) || !bonus.MatchesFeature(feature, annotations) || !bonus.ActiveFor(start, end, subStart) {
			continue
		}
		if !remaining.IsPositive() {
			break
		}
		offset := decimal.Min(remaining, bonus.GrantedUnits(feature.IncludedUnits))
		if !offset.IsPositive() {
			continue
		}
		out.entries = append(out.entries, documentdomain.DocumentEntry{
			SubscriptionID: &subID,
			Description:    fmt.Sprintf("%s bonus: %s (%s)", feature.Name, bonus.Name, formatPeriod(start, end)),
			Unit:           feature.Unit,
			ProductCode:    feature.ProductCode,
			Quantity:       offset.Round(4),
			UnitPrice:      feature.PricePerUnit.Neg(),
			StartDate:      &startCopy,
			EndDate:        &endCopy,
		})
		remaining = remaining.Sub(offset)
	}
	return nil
}

// addDiscountEntries emits percentage discount credits against the
// chargeable entries generated so far, then fixed amounts capped at the
// remaining net.
func (g *entryGenerator) addDiscountEntries(out *generatedEntries) {
	sub := g.bc.sub
	subID := sub.ID
	subStart := dateutil.DateOf(*sub.StartDate)

	var applicable []discountdomain.Discount
	for _, d := range g.discounts {
		if d.MatchesSubscription(sub) {
			applicable = append(applicable, d)
		}
	}
	if len(applicable) == 0 {
		return
	}

	charged := out.entries

	// Per-discount reduction over the document, used for the
	// document-level stacking decision.
	type docReduction struct {
		discount *discountdomain.Discount
		amount   decimal.Decimal
	}
	var docReductions []docReduction

	for di := range applicable {
		d := &applicable[di]
		if d.Percentage == nil {
			continue
		}

		var perEntry []documentdomain.DocumentEntry
		docAmount := decimal.Zero

		for ei := range charged {
			entry := &charged[ei]
			if !g.discountCovers(d, entry) {
				continue
			}
			coverage := discountCoverage(d, entry, subStart)
			if coverage.Sign() == 0 {
				continue
			}
			reduction := entry.TotalBeforeTax().
				Mul(*d.Percentage).Mul(coverage).
				Div(decimal.NewFromInt(100)).Round(2)
			if !reduction.IsPositive() {
				continue
			}
			if d.ApplyPer == discountdomain.ApplyPerEntry {
				perEntry = append(perEntry, documentdomain.DocumentEntry{
					SubscriptionID: &subID,
					Description:    fmt.Sprintf("%s (%s)", d.Name, entry.Description),
					ProductCode:    entry.ProductCode,
					Quantity:       decimal.NewFromInt(1),
					UnitPrice:      reduction.Neg(),
					StartDate:      entry.StartDate,
					EndDate:        entry.EndDate,
				})
			} else {
				docAmount = docAmount.Add(reduction)
			}
		}

		if d.ApplyPer == discountdomain.ApplyPerEntry {
			// Per-entry discounts stack additively by construction; a
			// noncumulative one still competes at document level.
			if d.Stacking == discountdomain.StackingAdditive {
				out.entries = append(out.entries, perEntry...)
			} else {
				total := decimal.Zero
				for _, e := range perEntry {
					total = total.Add(e.UnitPrice.Neg())
				}
				docReductions = append(docReductions, docReduction{discount: d, amount: total})
			}
		} else if docAmount.IsPositive() {
			docReductions = append(docReductions, docReduction{discount: d, amount: docAmount})
		}
	}

	// Additive reductions sum; noncumulative ones contribute only the
	// single largest. The greater aggregate wins.
	additive := decimal.Zero
	largest := decimal.Zero
	var largestName string
	for _, r := range docReductions {
		if r.discount.Stacking == discountdomain.StackingAdditive {
			additive = additive.Add(r.amount)
		} else if r.amount.GreaterThan(largest) {
			largest = r.amount
			largestName = r.discount.Name
		}
	}
	if additive.GreaterThanOrEqual(largest) {
		for _, r := range docReductions {
			if r.discount.Stacking != discountdomain.StackingAdditive {
				continue
			}
			out.entries = append(out.entries, documentdomain.DocumentEntry{
				SubscriptionID: &subID,
				Description:    r.discount.Name,
				Quantity:       decimal.NewFromInt(1),
				UnitPrice:      r.amount.Neg(),
			})
		}
	} else if largest.IsPositive() {
		out.entries = append(out.entries, documentdomain.DocumentEntry{
			SubscriptionID: &subID,
			Description:    largestName,
			Quantity:       decimal.NewFromInt(1),
			UnitPrice:      largest.Neg(),
		})
	}

	// Fixed amounts come last and can never push the net negative.
	remaining := decimal.Zero
	for i := range out.entries {
		remaining = remaining.Add(out.entries[i].TotalBeforeTax())
	}
	for di := range applicable {
		d := &applicable[di]
		if d.Amount == nil || !remaining.IsPositive() {
			continue
		}
		reduction := decimal.Min(d.Amount.Round(2), remaining)
		if !reduction.IsPositive() {
			continue
		}
		out.entries = append(out.entries, documentdomain.DocumentEntry{
			SubscriptionID: &subID,
			Description:    d.Name,
			Quantity:       decimal.NewFromInt(1),
			UnitPrice:      reduction.Neg(),
		})
		remaining = remaining.Sub(reduction)
	}
}

func (g *entryGenerator) discountCovers(d *discountdomain.Discount, entry *documentdomain.DocumentEntry) bool {
	isPlan := entry.Unit == ""
	if isPlan && !d.AppliesToPlan() {
		return false
	}
	if !isPlan && !d.AppliesToMeteredFeatures() {
		return false
	}
	return d.MatchesProductCode(entry.ProductCode)
}

// discountCoverage is the fraction of the entry's period inside the
// discount's validity window, by day count.
func discountCoverage(d *discountdomain.Discount, entry *documentdomain.DocumentEntry, subscriptionStart time.Time) decimal.Decimal {
	if entry.StartDate == nil || entry.EndDate == nil {
		return decimal.NewFromInt(1)
	}
	clippedStart, clippedEnd, ok := d.ClipPeriod(*entry.StartDate, *entry.EndDate, subscriptionStart)
	if !ok {
		return decimal.Zero
	}
	covered := dateutil.DaysBetweenInclusive(clippedStart, clippedEnd)
	total := dateutil.DaysBetweenInclusive(dateutil.DateOf(*entry.StartDate), dateutil.DateOf(*entry.EndDate))
	if total == 0 || covered >= total {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(covered)).DivRound(decimal.NewFromInt(int64(total)), 8)
}

func (g *entryGenerator) sumTotals(out *generatedEntries) {
	totalBeforeTax := decimal.Zero
	for i := range out.entries {
		totalBeforeTax = totalBeforeTax.Add(out.entries[i].TotalBeforeTax())
	}
	out.totalBeforeTax = totalBeforeTax

	out.total = totalBeforeTax
	if g.bc.customer != nil && g.bc.customer.SalesTaxPercent != nil {
		tax := totalBeforeTax.Mul(*g.bc.customer.SalesTaxPercent).Div(decimal.NewFromInt(100)).Round(2)
		out.total = totalBeforeTax.Add(tax)
	}
}

func formatPeriod(start, end time.Time) string {
	return start.Format("2006-01-02") + " - " + end.Format("2006-01-02")
}
