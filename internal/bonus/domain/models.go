// Package domain contains bonuses: free metered-feature units granted
// on top of a plan's included allowance. Read-only during billing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
	"github.com/smallbiznis/silver/pkg/dateutil"
)

// ApplyBehavior controls where the granted units show up.
type ApplyBehavior string

const (
	// ApplyDirectlyToTarget folds the grant into the included-units
	// baseline before overage is computed.
	ApplyDirectlyToTarget ApplyBehavior = "apply_directly_to_target"
	// ApplySeparatelyPerEntry leaves the overage entry intact and emits
	// an explicit negative offset entry next to it.
	ApplySeparatelyPerEntry ApplyBehavior = "apply_separately_per_entry"
)

// Bonus grants extra free units for matching metered features, either
// a fixed amount or a percentage of the feature's included units.
type Bonus struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	Name    string       `gorm:"type:text;not null" json:"name"`
	Enabled bool         `gorm:"not null;default:true;index" json:"enabled"`

	// Exactly one of Amount or AmountPercentage is set.
	Amount           *decimal.Decimal `gorm:"type:numeric(28,8)" json:"amount,omitempty"`
	AmountPercentage *decimal.Decimal `gorm:"type:numeric(7,4)" json:"amount_percentage,omitempty"`

	Behavior ApplyBehavior `gorm:"type:text;not null;default:'apply_directly_to_target'" json:"behavior"`

	FilterCustomerIDs     datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"filter_customer_ids,omitempty"`
	FilterSubscriptionIDs datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"filter_subscription_ids,omitempty"`
	FilterPlanIDs         datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"filter_plan_ids,omitempty"`
	FilterProductCodes    datatypes.JSONSlice[string]       `gorm:"type:jsonb" json:"filter_product_codes,omitempty"`
	FilterAnnotations     datatypes.JSONSlice[string]       `gorm:"type:jsonb" json:"filter_annotations,omitempty"`

	StartDate        *time.Time         `gorm:"" json:"start_date,omitempty"`
	EndDate          *time.Time         `gorm:"" json:"end_date,omitempty"`
	DurationCount    *int               `gorm:"" json:"duration_count,omitempty"`
	DurationInterval *dateutil.Interval `gorm:"type:text" json:"duration_interval,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Bonus) TableName() string { return "bonuses" }

// MatchesSubscription mirrors the discount wildcard filter semantics.
func (b *Bonus) MatchesSubscription(sub *subscriptiondomain.Subscription) bool {
	if !b.Enabled {
		return false
	}
	if !matchesID(b.FilterCustomerIDs, sub.CustomerID) {
		return false
	}
	if !matchesID(b.FilterSubscriptionIDs, sub.ID) {
		return false
	}
	return matchesID(b.FilterPlanIDs, sub.PlanID)
}

// MatchesFeature checks the product-code filter against the feature and
// the annotation filter against the annotations actually present on the
// usage being offset. A bonus with an annotation filter only touches
// usage tagged with a matching annotation.
func (b *Bonus) MatchesFeature(feature *catalogdomain.MeteredFeature, annotations []string) bool {
	if !matchesString(b.FilterProductCodes, feature.ProductCode) {
		return false
	}
	if len(b.FilterAnnotations) == 0 {
		return true
	}
	for _, annotation := range annotations {
		if matchesString(b.FilterAnnotations, annotation) {
			return true
		}
	}
	return false
}

// ActiveFor reports whether the bonus validity window covers any part
// of [start, end], with the duration window counted from the
// subscription start.
func (b *Bonus) ActiveFor(start, end, subscriptionStart time.Time) bool {
	start = dateutil.DateOf(start)
	end = dateutil.DateOf(end)
	if b.StartDate != nil && end.Before(dateutil.DateOf(*b.StartDate)) {
		return false
	}
	if b.EndDate != nil && start.After(dateutil.DateOf(*b.EndDate)) {
		return false
	}
	if b.DurationCount != nil && b.DurationInterval != nil {
		durationEnd := dateutil.PrevDay(dateutil.AddInterval(
			dateutil.DateOf(subscriptionStart), *b.DurationInterval, *b.DurationCount))
		if start.After(durationEnd) {
			return false
		}
	}
	return true
}

// GrantedUnits resolves the grant against the feature's included units.
func (b *Bonus) GrantedUnits(includedUnits decimal.Decimal) decimal.Decimal {
	if b.Amount != nil {
		return *b.Amount
	}
	if b.AmountPercentage != nil {
		return includedUnits.Mul(*b.AmountPercentage).Div(decimal.NewFromInt(100))
	}
	return decimal.Zero
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
