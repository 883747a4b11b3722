package domain

import "errors"

var (
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrPlanNotFound         = errors.New("plan_not_found")
	ErrMissingStartDate     = errors.New("missing_start_date")
	ErrInvalidCancelWhen    = errors.New("invalid_cancel_when")
	ErrNoCycle              = errors.New("no_billing_cycle")
	ErrEndedAtWithoutCancel = errors.New("ended_at_without_cancel")
	ErrTrialEndBeforeStart  = errors.New("trial_end_before_start")
	ErrCancelBeforeStart    = errors.New("cancel_before_start")
)
