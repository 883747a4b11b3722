package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/silver/pkg/db/pagination"
)

type CreateCustomerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Currency  string `json:"currency"`

	ConsolidatedBilling bool             `json:"consolidated_billing"`
	SalesTaxPercent     *decimal.Decimal `json:"sales_tax_percent"`
	SalesTaxName        string           `json:"sales_tax_name"`
	PaymentDueDays      *int             `json:"payment_due_days"`
}

type UpdateCustomerRequest struct {
	ID snowflake.ID `json:"id"`

	Company             *string          `json:"company"`
	Currency            *string          `json:"currency"`
	ConsolidatedBilling *bool            `json:"consolidated_billing"`
	SalesTaxPercent     *decimal.Decimal `json:"sales_tax_percent"`
	SalesTaxName        *string          `json:"sales_tax_name"`
	PaymentDueDays      *int             `json:"payment_due_days"`
}

type ListCustomerRequest struct {
	PageToken   string
	PageSize    int
	Email       string
	Currency    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerFilter struct {
	Email       string
	Currency    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	Update(ctx context.Context, req UpdateCustomerRequest) (*Customer, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (*ListCustomerResponse, error)
}

var (
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidTaxRate   = errors.New("invalid_sales_tax_percent")
	ErrCustomerNotFound = errors.New("customer_not_found")
	ErrDuplicateEmail   = errors.New("duplicate_email")
)
