// Package domain contains persistence models for plans and metered features.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/smallbiznis/silver/pkg/dateutil"
)

// Cadence selects which billing rhythm of a plan applies, the base one
// or the optional separate rhythm for metered features.
type Cadence string

const (
	CadencePlan            Cadence = "plan"
	CadenceMeteredFeatures Cadence = "metered_features"
)

// Plan describes a recurring price: a base amount charged every
// interval_count intervals plus per-unit prices for metered features.
type Plan struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	Name          string            `gorm:"type:text;not null"`
	ProductCode   string            `gorm:"type:text;not null;index"`
	ProviderID    snowflake.ID      `gorm:"not null;index"`
	Interval      dateutil.Interval `gorm:"type:text;not null"`
	IntervalCount int               `gorm:"not null;default:1"`
	Amount        decimal.Decimal   `gorm:"type:numeric(28,8);not null"`
	Currency      string            `gorm:"type:text;not null"`

	// TrialPeriodDays adds a trial of that many days in front of the
	// first cycle when the subscription carries no explicit trial end.
	TrialPeriodDays *int `gorm:""`

	// GenerateAfter delays document generation this many seconds past
	// cycle start midnight.
	GenerateAfter int `gorm:"not null;default:0"`

	GenerateDocumentsOnTrialEnd bool `gorm:"not null;default:false"`
	SeparateCyclesDuringTrial   bool `gorm:"not null;default:false"`
	PrebillPlan                 bool `gorm:"not null;default:false"`

	// CycleBillingDuration caps, in days from subscription start, how
	// far past start the first billing may reach.
	CycleBillingDuration *int `gorm:""`

	// MeteredFeaturesInterval overrides the base rhythm for metered
	// features when set.
	MeteredFeaturesInterval      *dateutil.Interval `gorm:"type:text"`
	MeteredFeaturesIntervalCount *int               `gorm:""`

	// BillMeteredFeaturesWithPlan refuses usage billing in runs where
	// the base amount is not billed too.
	BillMeteredFeaturesWithPlan bool `gorm:"not null;default:false"`

	Enabled  bool              `gorm:"not null;default:true"`
	Private  bool              `gorm:"not null;default:false"`
	Metadata datatypes.JSONMap `gorm:"type:jsonb"`

	MeteredFeatures []MeteredFeature `gorm:"many2many:plan_metered_features"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// IntervalFor returns the interval and count for the given cadence,
// falling back to the base rhythm when no separate one is configured.
func (p *Plan) IntervalFor(cadence Cadence) (dateutil.Interval, int) {
	if cadence == CadenceMeteredFeatures && p.MeteredFeaturesInterval != nil {
		count := 1
		if p.MeteredFeaturesIntervalCount != nil && *p.MeteredFeaturesIntervalCount > 0 {
			count = *p.MeteredFeaturesIntervalCount
		}
		return *p.MeteredFeaturesInterval, count
	}
	count := p.IntervalCount
	if count < 1 {
		count = 1
	}
	return p.Interval, count
}

// MeteredFeature is a usage-priced dimension of a plan. Consumption up
// to IncludedUnits per cycle is free; the excess is charged PricePerUnit.
type MeteredFeature struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	Name          string          `gorm:"type:text;not null"`
	Unit          string          `gorm:"type:text;not null"`
	ProductCode   string          `gorm:"type:text;not null;index"`
	PricePerUnit  decimal.Decimal `gorm:"type:numeric(28,8);not null"`
	IncludedUnits decimal.Decimal `gorm:"type:numeric(28,8);not null"`

	// IncludedUnitsDuringTrial distinguishes three trial behaviors:
	// nil means all trial consumption is free, zero means none is, any
	// other value caps the free allowance.
	IncludedUnitsDuringTrial *decimal.Decimal `gorm:"type:numeric(28,8)"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MeteredFeature) TableName() string { return "metered_features" }

// IncludedDuringTrial resolves the trial allowance against consumed
// units. Unlimited (nil) mirrors back the consumption so nothing is
// chargeable.
func (f *MeteredFeature) IncludedDuringTrial(consumed decimal.Decimal) decimal.Decimal {
	if f.IncludedUnitsDuringTrial == nil {
		return consumed
	}
	return *f.IncludedUnitsDuringTrial
}
