package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Append inserts a new log row. There is no update or delete.
	Append(ctx context.Context, db *gorm.DB, log *BillingLog) error

	// LastFor returns the most recent log row for a subscription, nil
	// when it has never been billed.
	LastFor(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*BillingLog, error)

	// CountFor returns the number of log rows for a subscription.
	CountFor(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (int64, error)
}
