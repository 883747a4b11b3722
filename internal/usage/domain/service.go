package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type ReportUsageRequest struct {
	SubscriptionID   snowflake.ID    `json:"subscription_id"`
	MeteredFeatureID snowflake.ID    `json:"metered_feature_id"`
	Date             time.Time       `json:"date"`
	Units            decimal.Decimal `json:"units"`
	Mode             UpdateMode      `json:"mode"`
	Annotation       string          `json:"annotation,omitempty"`
}

type Service interface {
	// Report records consumption for the bucket containing Date,
	// creating the bucket row on first use.
	Report(ctx context.Context, req ReportUsageRequest) (*UnitsLog, error)
}

var (
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidFeature      = errors.New("invalid_feature")
	ErrInvalidUpdateMode   = errors.New("invalid_update_mode")
	ErrNegativeUnits       = errors.New("negative_units")
	ErrDateOutsideCycle    = errors.New("date_outside_cycle")
)
