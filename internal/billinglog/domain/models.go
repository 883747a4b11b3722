// Package domain contains the append-only billing log. The most recent
// row per subscription carries the billed-up-to watermarks that every
// eligibility decision reads; rows are never mutated after creation.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BillingLog records one billing event for a subscription.
type BillingLog struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID  `gorm:"not null;index" json:"subscription_id"`
	InvoiceID      *snowflake.ID `gorm:"index" json:"invoice_id,omitempty"`
	ProformaID     *snowflake.ID `gorm:"index" json:"proforma_id,omitempty"`

	BillingDate time.Time `gorm:"not null;index" json:"billing_date"`

	// Watermarks: the inclusive end dates through which each cadence
	// has been billed.
	PlanBilledUpTo            time.Time `gorm:"not null" json:"plan_billed_up_to"`
	MeteredFeaturesBilledUpTo time.Time `gorm:"not null" json:"metered_features_billed_up_to"`

	TotalBeforeTax decimal.Decimal `gorm:"type:numeric(28,8);not null" json:"total_before_tax"`
	Total          decimal.Decimal `gorm:"type:numeric(28,8);not null" json:"total"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (BillingLog) TableName() string { return "billing_logs" }
