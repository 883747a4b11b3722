package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateSubscriptionRequest struct {
	PlanID     snowflake.ID   `json:"plan_id"`
	CustomerID snowflake.ID   `json:"customer_id"`
	Reference  string         `json:"reference,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type ActivateRequest struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`

	// StartDate overrides the effective start. The service clamps it to
	// the current day so a subscription never starts in the future.
	StartDate *time.Time `json:"start_date,omitempty"`

	// TrialEndDate overrides the plan-derived trial end.
	TrialEndDate *time.Time `json:"trial_end_date,omitempty"`
}

type CancelRequest struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	When           CancelWhen   `json:"when"`

	// Date applies when When is a literal date cancellation.
	Date *time.Time `json:"date,omitempty"`
}

// TransitionCallback runs synchronously after a committed state change.
type TransitionCallback func(ctx context.Context, sub *Subscription, event Event)

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	Activate(ctx context.Context, req ActivateRequest) (*Subscription, error)
	Cancel(ctx context.Context, req CancelRequest) (*Subscription, error)
	End(ctx context.Context, id snowflake.ID) (*Subscription, error)

	// RegisterTransitionCallback appends a callback invoked after every
	// successful transition. Not safe for concurrent use with the
	// transition methods; register during wiring.
	RegisterTransitionCallback(cb TransitionCallback)
}
