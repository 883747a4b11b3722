// Package domain contains percentage discounts applied during billing.
// Discounts are read-only inputs to the billing run; the engine never
// mutates them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
	"github.com/smallbiznis/silver/pkg/dateutil"
)

// Stacking controls how several applicable discounts combine.
type Stacking string

const (
	// StackingAdditive sums the percentages of all applicable additive
	// discounts.
	StackingAdditive Stacking = "additive"
	// StackingNoncumulative keeps only the single largest one.
	StackingNoncumulative Stacking = "noncumulative"
)

// Target selects which charge kinds a discount reduces.
type Target string

const (
	TargetPlan            Target = "plan"
	TargetMeteredFeatures Target = "metered_features"
	TargetAll             Target = "all"
)

// ApplyPer selects the emission granularity of the discount entries.
type ApplyPer string

const (
	ApplyPerDocument ApplyPer = "document"
	ApplyPerEntry    ApplyPer = "entry"
)

// Discount reduces plan or metered-feature charges by a percentage, or
// by a fixed amount at document level.
type Discount struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	Name    string       `gorm:"type:text;not null" json:"name"`
	Enabled bool         `gorm:"not null;default:true;index" json:"enabled"`

	// Exactly one of Percentage or Amount is set.
	Percentage *decimal.Decimal `gorm:"type:numeric(7,4)" json:"percentage,omitempty"`
	Amount     *decimal.Decimal `gorm:"type:numeric(28,8)" json:"amount,omitempty"`

	AppliesTo Target   `gorm:"type:text;not null;default:'all'" json:"applies_to"`
	Stacking  Stacking `gorm:"type:text;not null;default:'additive'" json:"stacking"`
	ApplyPer  ApplyPer `gorm:"type:text;not null;default:'document'" json:"apply_per"`

	// Empty filters are wildcards. Dimensions AND together, values
	// within one dimension OR together.
	FilterCustomerIDs     datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"filter_customer_ids,omitempty"`
	FilterSubscriptionIDs datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"filter_subscription_ids,omitempty"`
	FilterPlanIDs         datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"filter_plan_ids,omitempty"`
	FilterProductCodes    datatypes.JSONSlice[string]       `gorm:"type:jsonb" json:"filter_product_codes,omitempty"`

	// Validity window, all optional.
	StartDate        *time.Time         `gorm:"" json:"start_date,omitempty"`
	EndDate          *time.Time         `gorm:"" json:"end_date,omitempty"`
	DurationCount    *int               `gorm:"" json:"duration_count,omitempty"`
	DurationInterval *dateutil.Interval `gorm:"type:text" json:"duration_interval,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Discount) TableName() string { return "discounts" }

// MatchesSubscription applies the wildcard filter semantics to a
// subscription and its owning entities.
func (d *Discount) MatchesSubscription(sub *subscriptiondomain.Subscription) bool {
	if !d.Enabled {
		return false
	}
	if !matchesID(d.FilterCustomerIDs, sub.CustomerID) {
		return false
	}
	if !matchesID(d.FilterSubscriptionIDs, sub.ID) {
		return false
	}
	return matchesID(d.FilterPlanIDs, sub.PlanID)
}

// MatchesProductCode reports whether the discount covers the given
// product code; an empty filter covers everything.
func (d *Discount) MatchesProductCode(code string) bool {
	return matchesString(d.FilterProductCodes, code)
}

// AppliesToPlan reports whether plan base charges are in scope.
func (d *Discount) AppliesToPlan() bool {
	return d.AppliesTo == TargetPlan || d.AppliesTo == TargetAll
}

// AppliesToMeteredFeatures reports whether usage charges are in scope.
func (d *Discount) AppliesToMeteredFeatures() bool {
	return d.AppliesTo == TargetMeteredFeatures || d.AppliesTo == TargetAll
}

// ClipPeriod intersects [start, end] with the discount's validity
// window and its duration window counted from the subscription start.
// ok is false when nothing remains.
func (d *Discount) ClipPeriod(start, end, subscriptionStart time.Time) (time.Time, time.Time, bool) {
	start = dateutil.DateOf(start)
	end = dateutil.DateOf(end)

	if d.StartDate != nil {
		start = dateutil.MaxDate(start, dateutil.DateOf(*d.StartDate))
	}
	if d.EndDate != nil {
		end = dateutil.MinDate(end, dateutil.DateOf(*d.EndDate))
	}
	if d.DurationCount != nil && d.DurationInterval != nil {
		durationEnd := dateutil.PrevDay(dateutil.AddInterval(
			dateutil.DateOf(subscriptionStart), *d.DurationInterval, *d.DurationCount))
		end = dateutil.MinDate(end, durationEnd)
	}
	if end.Before(start) {
		return start, end, false
	}
	return start, end, true
}

// EffectivePercentage combines applicable percentage discounts:
// additive ones sum, noncumulative ones contribute only their largest,
// and the greater of the two aggregates wins.
func EffectivePercentage(discounts []Discount) decimal.Decimal {
	additive := decimal.Zero
	largest := decimal.Zero
	for i := range discounts {
		d := &discounts[i]
		if d.Percentage == nil {
			continue
		}
		switch d.Stacking {
		case StackingNoncumulative:
			if d.Percentage.GreaterThan(largest) {
				largest = *d.Percentage
			}
		default:
			additive = additive.Add(*d.Percentage)
		}
	}
	if largest.GreaterThan(additive) {
		return largest
	}
	return additive
}

func matchesID(filter datatypes.JSONSlice[snowflake.ID], id snowflake.ID) bool {
	if len(filter) == 0 {
		return true
	}
	for _, v := range filter {
		if v == id {
			return true
		}
	}
	return false
}

func matchesString(filter datatypes.JSONSlice[string], value string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, v := range filter {
		if v == value {
			return true
		}
	}
	return false
}
