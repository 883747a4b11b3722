package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *BillingDocument) error
	Update(ctx context.Context, db *gorm.DB, doc *BillingDocument) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BillingDocument, error)

	// FindDraft returns the customer's open draft of the given kind
	// under the provider, nil when there is none.
	FindDraft(ctx context.Context, db *gorm.DB, customerID, providerID snowflake.ID, kind Kind) (*BillingDocument, error)

	InsertEntries(ctx context.Context, db *gorm.DB, entries []DocumentEntry) error
	ListEntries(ctx context.Context, db *gorm.DB, documentID snowflake.ID) ([]DocumentEntry, error)

	// NextNumber allocates the next document number in a provider
	// series.
	NextNumber(ctx context.Context, db *gorm.DB, providerID snowflake.ID, kind Kind, series string) (int64, error)
}
