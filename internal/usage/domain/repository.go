package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, log *UnitsLog) error
	Update(ctx context.Context, db *gorm.DB, log *UnitsLog) error

	// FindBucket returns the log row for an exact bucket, nil when the
	// bucket has seen no usage yet.
	FindBucket(ctx context.Context, db *gorm.DB, featureID, subscriptionID snowflake.ID, start, end time.Time, annotation string) (*UnitsLog, error)

	// ListForPeriod returns all log rows of a feature fully contained
	// in [start, end].
	ListForPeriod(ctx context.Context, db *gorm.DB, subscriptionID, featureID snowflake.ID, start, end time.Time) ([]UnitsLog, error)

	// TruncateOpenBuckets end-dates every bucket of the subscription
	// still reaching past day down to day.
	TruncateOpenBuckets(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, day time.Time) error
}
