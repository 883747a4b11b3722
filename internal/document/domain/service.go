package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateDraftRequest struct {
	Kind       Kind         `json:"kind"`
	CustomerID snowflake.ID `json:"customer_id"`
	ProviderID snowflake.ID `json:"provider_id"`
	Currency   string       `json:"currency"`
}

type Service interface {
	// FindOrCreateDraft reuses the customer's open draft of the given
	// kind under the provider, creating one when none exists. Used by
	// consolidated billing to share one document across subscriptions.
	FindOrCreateDraft(ctx context.Context, db *gorm.DB, req CreateDraftRequest) (*BillingDocument, error)

	// AddEntries appends entries to a draft document atomically with
	// the caller's transaction.
	AddEntries(ctx context.Context, db *gorm.DB, documentID snowflake.ID, entries []DocumentEntry) error

	// Issue assigns a series number and freezes the document.
	Issue(ctx context.Context, documentID snowflake.ID) (*BillingDocument, error)

	GetByID(ctx context.Context, documentID snowflake.ID) (*BillingDocument, error)
	ListEntries(ctx context.Context, documentID snowflake.ID) ([]DocumentEntry, error)
}

var (
	ErrDocumentNotFound = errors.New("document_not_found")
	ErrDocumentNotDraft = errors.New("document_not_draft")
	ErrInvalidKind      = errors.New("invalid_document_kind")
)
