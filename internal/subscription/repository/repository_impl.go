package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Save(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM subscriptions WHERE id = ?`+rowLockSuffix(db),
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) ListBillable(ctx context.Context, db *gorm.DB, limit int) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM subscriptions
		 WHERE state IN ?
		 ORDER BY id ASC
		 LIMIT ?`+claimLockSuffix(db),
		[]subscriptiondomain.State{
			subscriptiondomain.StateActive,
			subscriptiondomain.StateCanceled,
		},
		limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) CountForCustomerUnderProvider(ctx context.Context, db *gorm.DB, customerID, providerID snowflake.ID, states []subscriptiondomain.State, excludeID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM subscriptions
		 JOIN plans ON plans.id = subscriptions.plan_id
		 WHERE subscriptions.customer_id = ?
		   AND plans.provider_id = ?
		   AND subscriptions.state IN ?
		   AND subscriptions.id <> ?`,
		customerID,
		providerID,
		states,
		excludeID,
	).Scan(&count).Error
	return count, err
}

// rowLockSuffix emits FOR UPDATE only on dialects that support it; the
// sqlite used in tests takes a whole-database write lock instead.
func rowLockSuffix(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

func claimLockSuffix(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}
