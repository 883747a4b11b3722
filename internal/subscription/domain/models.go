// Package domain contains the subscription model, its state machine and
// the cycle arithmetic that drives billing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	"github.com/smallbiznis/silver/pkg/dateutil"
)

// State represents lifecycle states for a subscription.
type State string

const (
	StateInactive State = "inactive"
	StateActive   State = "active"
	StateCanceled State = "canceled"
	StateEnded    State = "ended"
)

// CancelWhen selects the effective cancellation date of a Cancel call.
type CancelWhen string

const (
	CancelNow               CancelWhen = "now"
	CancelEndOfBillingCycle CancelWhen = "end_of_billing_cycle"
	CancelOnDate            CancelWhen = "date"
)

// Subscription ties a customer to a plan. All date fields are civil
// dates at UTC midnight.
type Subscription struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	PlanID     snowflake.ID `gorm:"not null;index" json:"plan_id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	State      State        `gorm:"type:text;not null;default:'inactive';index" json:"state"`

	StartDate *time.Time `gorm:"" json:"start_date,omitempty"`

	// TrialEnd is the last day of trial, inclusive. Nil means no trial.
	TrialEnd *time.Time `gorm:"" json:"trial_end,omitempty"`

	// CancelDate is the last day the subscription is billable, inclusive.
	CancelDate *time.Time `gorm:"" json:"cancel_date,omitempty"`

	EndedAt *time.Time `gorm:"" json:"ended_at,omitempty"`

	Reference string            `gorm:"type:text" json:"reference,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Validate checks structural invariants before any mutation is persisted.
func (s *Subscription) Validate() error {
	if s.EndedAt != nil && s.State != StateCanceled && s.State != StateEnded {
		return ErrEndedAtWithoutCancel
	}
	if s.TrialEnd != nil && s.StartDate != nil &&
		dateutil.DateOf(*s.TrialEnd).Before(dateutil.DateOf(*s.StartDate)) {
		return ErrTrialEndBeforeStart
	}
	if s.CancelDate != nil && s.StartDate != nil &&
		dateutil.DateOf(*s.CancelDate).Before(dateutil.DateOf(*s.StartDate)) {
		return ErrCancelBeforeStart
	}
	return nil
}

// OnTrial reports whether the subscription is inside its trial window
// on the given date.
func (s *Subscription) OnTrial(ref time.Time) bool {
	if s.StartDate == nil || s.TrialEnd == nil {
		return false
	}
	day := dateutil.DateOf(ref)
	return !day.Before(dateutil.DateOf(*s.StartDate)) && !day.After(dateutil.DateOf(*s.TrialEnd))
}

// IsBillable reports whether the subscription state admits billing at all.
func (s *Subscription) IsBillable() bool {
	return s.State == StateActive || s.State == StateCanceled
}
