// Package domain defines the billing run surface: eligibility checks
// and entry generation against a draft document.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	billinglogdomain "github.com/smallbiznis/silver/internal/billinglog/domain"
	documentdomain "github.com/smallbiznis/silver/internal/document/domain"
)

type AddBillingEntriesRequest struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	BillingDate    time.Time    `json:"billing_date"`

	// DocumentID is the draft invoice or proforma the entries attach to.
	DocumentID snowflake.ID `json:"document_id"`
}

type BillingResult struct {
	PlanBilled     bool                           `json:"plan_billed"`
	MeteredBilled  bool                           `json:"metered_billed"`
	Entries        []documentdomain.DocumentEntry `json:"entries"`
	Log            *billinglogdomain.BillingLog   `json:"log"`
	TotalBeforeTax decimal.Decimal                `json:"total_before_tax"`
	Total          decimal.Decimal                `json:"total"`
}

type Service interface {
	// ShouldBeBilled reports whether any cadence of the subscription is
	// due as of billingDate, evaluated at the injected clock's now.
	ShouldBeBilled(ctx context.Context, subscriptionID snowflake.ID, billingDate time.Time) (bool, error)

	// AddBillingEntries performs one full billing run for the
	// subscription under its per-subscription lock: re-checks
	// eligibility, emits entries into the draft document and appends
	// exactly one billing log row, all in one transaction.
	AddBillingEntries(ctx context.Context, req AddBillingEntriesRequest) (*BillingResult, error)
}

var (
	ErrNotEligible     = errors.New("not_eligible_for_billing")
	ErrLockNotAcquired = errors.New("billing_lock_not_acquired")
	ErrMissingDocument = errors.New("missing_target_document")
)
