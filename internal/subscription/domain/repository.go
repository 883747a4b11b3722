package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)

	// ListBillable claims up to limit subscriptions in a billable state,
	// skipping rows already locked by a concurrent run.
	ListBillable(ctx context.Context, db *gorm.DB, limit int) ([]Subscription, error)

	// CountForCustomerUnderProvider counts the customer's subscriptions
	// whose plan belongs to the given provider, restricted to states,
	// excluding excludeID when nonzero.
	CountForCustomerUnderProvider(ctx context.Context, db *gorm.DB, customerID, providerID snowflake.ID, states []State, excludeID snowflake.ID) (int64, error)
}
