// Package domain contains the persistence model for customers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Customer is the party billed for one or more subscriptions.
type Customer struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName string       `gorm:"type:text" json:"first_name"`
	LastName  string       `gorm:"type:text" json:"last_name"`
	Company   string       `gorm:"type:text" json:"company,omitempty"`
	Email     string       `gorm:"type:text;uniqueIndex" json:"email"`
	Currency  string       `gorm:"column:currency" json:"currency,omitempty"`

	// ConsolidatedBilling folds entries from all of the customer's
	// active subscriptions under the same provider into one document
	// per billing run.
	ConsolidatedBilling bool `gorm:"not null;default:false" json:"consolidated_billing"`

	SalesTaxPercent *decimal.Decimal `gorm:"type:numeric(7,4)" json:"sales_tax_percent,omitempty"`
	SalesTaxName    string           `gorm:"type:text" json:"sales_tax_name,omitempty"`

	PaymentDueDays *int              `gorm:"" json:"payment_due_days,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

// FullName is the display name used on documents.
func (c *Customer) FullName() string {
	if c.Company != "" {
		return c.Company
	}
	name := c.FirstName
	if c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += c.LastName
	}
	return name
}
