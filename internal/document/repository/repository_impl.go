package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	documentdomain "github.com/smallbiznis/silver/internal/document/domain"
)

type repo struct{}

func Provide() documentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *documentdomain.BillingDocument) error {
	return db.WithContext(ctx).Create(doc).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, doc *documentdomain.BillingDocument) error {
	return db.WithContext(ctx).Save(doc).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*documentdomain.BillingDocument, error) {
	var doc documentdomain.BillingDocument
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM billing_documents WHERE id = ?`,
		id,
	).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}

func (r *repo) FindDraft(ctx context.Context, db *gorm.DB, customerID, providerID snowflake.ID, kind documentdomain.Kind) (*documentdomain.BillingDocument, error) {
	var doc documentdomain.BillingDocument
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM billing_documents
		 WHERE customer_id = ?
		   AND provider_id = ?
		   AND kind = ?
		   AND status = ?
		 ORDER BY id DESC
		 LIMIT 1`,
		customerID,
		providerID,
		kind,
		documentdomain.StatusDraft,
	).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}

func (r *repo) InsertEntries(ctx context.Context, db *gorm.DB, entries []documentdomain.DocumentEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&entries).Error
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, documentID snowflake.ID) ([]documentdomain.DocumentEntry, error) {
	var entries []documentdomain.DocumentEntry
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM document_entries
		 WHERE document_id = ?
		 ORDER BY id ASC`,
		documentID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) NextNumber(ctx context.Context, db *gorm.DB, providerID snowflake.ID, kind documentdomain.Kind, series string) (int64, error) {
	var max int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(number), 0) FROM billing_documents
		 WHERE provider_id = ?
		   AND kind = ?
		   AND series = ?`,
		providerID,
		kind,
		series,
	).Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
