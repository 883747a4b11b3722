// Package domain contains the per-bucket usage log for metered features.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// UpdateMode selects how a usage report changes the bucket counter.
type UpdateMode string

const (
	UpdateAbsolute UpdateMode = "absolute"
	UpdateRelative UpdateMode = "relative"
)

// UnitsLog accumulates consumed units for one metered feature of one
// subscription over one bucket. Rows are created lazily on the first
// report for a bucket and are unique per
// (feature, subscription, start, end, annotation).
type UnitsLog struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	MeteredFeatureID snowflake.ID    `gorm:"not null;uniqueIndex:idx_units_log_bucket" json:"metered_feature_id"`
	SubscriptionID   snowflake.ID    `gorm:"not null;uniqueIndex:idx_units_log_bucket;index" json:"subscription_id"`
	StartDate        time.Time       `gorm:"not null;uniqueIndex:idx_units_log_bucket" json:"start_date"`
	EndDate          time.Time       `gorm:"not null;uniqueIndex:idx_units_log_bucket" json:"end_date"`
	Annotation       string          `gorm:"type:text;not null;default:'';uniqueIndex:idx_units_log_bucket" json:"annotation,omitempty"`
	ConsumedUnits    decimal.Decimal `gorm:"type:numeric(28,8);not null" json:"consumed_units"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UnitsLog) TableName() string { return "metered_feature_units_logs" }
