// Package domain contains persistence models for billing documents.
// A document is an invoice or a proforma; entries attach while it is in
// draft and become immutable once it is issued.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Kind distinguishes invoices from proformas.
type Kind string

const (
	KindInvoice  Kind = "invoice"
	KindProforma Kind = "proforma"
)

// Status represents document lifecycle states.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusIssued   Status = "issued"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// BillingDocument is the invoice-or-proforma a billing run writes
// entries into.
type BillingDocument struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Kind       Kind         `gorm:"type:text;not null" json:"kind"`
	Status     Status       `gorm:"type:text;not null;default:'draft';index" json:"status"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	ProviderID snowflake.ID `gorm:"not null;index" json:"provider_id"`

	Series string `gorm:"type:text" json:"series,omitempty"`
	Number *int64 `gorm:"" json:"number,omitempty"`

	Currency        string           `gorm:"type:text;not null" json:"currency"`
	SalesTaxPercent *decimal.Decimal `gorm:"type:numeric(7,4)" json:"sales_tax_percent,omitempty"`
	SalesTaxName    string           `gorm:"type:text" json:"sales_tax_name,omitempty"`

	IssuedAt *time.Time `gorm:"" json:"issued_at,omitempty"`
	DueDate  *time.Time `gorm:"" json:"due_date,omitempty"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BillingDocument) TableName() string { return "billing_documents" }

// IsDraft reports whether the document still accepts entries.
func (d *BillingDocument) IsDraft() bool { return d.Status == StatusDraft }

// DocumentEntry is one line item. Quantity and unit price carry four
// decimal places; money totals are rounded to two.
type DocumentEntry struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	DocumentID     snowflake.ID  `gorm:"not null;index" json:"document_id"`
	SubscriptionID *snowflake.ID `gorm:"index" json:"subscription_id,omitempty"`

	Description string `gorm:"type:text;not null" json:"description"`
	Unit        string `gorm:"type:text" json:"unit,omitempty"`
	ProductCode string `gorm:"type:text" json:"product_code,omitempty"`

	Quantity  decimal.Decimal `gorm:"type:numeric(28,4);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(28,4);not null" json:"unit_price"`

	StartDate *time.Time `gorm:"" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"" json:"end_date,omitempty"`
	Prorated  bool       `gorm:"not null;default:false" json:"prorated"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (DocumentEntry) TableName() string { return "document_entries" }

// TotalBeforeTax is quantity times unit price at document scale.
func (e *DocumentEntry) TotalBeforeTax() decimal.Decimal {
	return e.Quantity.Mul(e.UnitPrice).Round(2)
}

// TaxValue derives the tax amount from the owning document's sales tax
// percent.
func (e *DocumentEntry) TaxValue(salesTaxPercent *decimal.Decimal) decimal.Decimal {
	if salesTaxPercent == nil {
		return decimal.Zero
	}
	return e.TotalBeforeTax().Mul(*salesTaxPercent).Div(decimal.NewFromInt(100)).Round(2)
}

// Total is the tax-inclusive line total.
func (e *DocumentEntry) Total(salesTaxPercent *decimal.Decimal) decimal.Decimal {
	return e.TotalBeforeTax().Add(e.TaxValue(salesTaxPercent))
}
