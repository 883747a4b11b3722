// Package domain contains the persistence model for billing providers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Flow selects which document kind a provider issues for a billing run.
type Flow string

const (
	FlowInvoice  Flow = "invoice"
	FlowProforma Flow = "proforma"
)

// Provider is the entity that issues billing documents to customers.
type Provider struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	Name            string            `gorm:"type:text;not null"`
	Company         string            `gorm:"type:text"`
	Flow            Flow              `gorm:"type:text;not null;default:'invoice'"`
	InvoiceSeries   string            `gorm:"type:text"`
	ProformaSeries  string            `gorm:"type:text"`
	DefaultCurrency string            `gorm:"type:text;not null;default:'USD'"`
	Meta            datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Provider) TableName() string { return "providers" }
