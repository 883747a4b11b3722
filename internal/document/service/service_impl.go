package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/silver/internal/clock"
	customerdomain "github.com/smallbiznis/silver/internal/customer/domain"
	documentdomain "github.com/smallbiznis/silver/internal/document/domain"
	providerdomain "github.com/smallbiznis/silver/internal/provider/domain"
	"github.com/smallbiznis/silver/pkg/repository"
)

const defaultPaymentDueDays = 30

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  documentdomain.Repository
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	clock        clock.Clock
	repo         documentdomain.Repository
	providerRepo repository.Repository[providerdomain.Provider]
	customerRepo repository.Repository[customerdomain.Customer]
}

func NewService(p ServiceParam) documentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("document.service"),

		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		providerRepo: repository.ProvideStore[providerdomain.Provider](p.DB),
		customerRepo: repository.ProvideStore[customerdomain.Customer](p.DB),
	}
}

func (s *Service) FindOrCreateDraft(ctx context.Context, db *gorm.DB, req documentdomain.CreateDraftRequest) (*documentdomain.BillingDocument, error) {
	if req.Kind != documentdomain.KindInvoice && req.Kind != documentdomain.KindProforma {
		return nil, documentdomain.ErrInvalidKind
	}
	if db == nil {
		db = s.db
	}

	doc, err := s.repo.FindDraft(ctx, db, req.CustomerID, req.ProviderID, req.Kind)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	customer, err := s.customerRepo.WithTrx(db).FindOne(ctx, &customerdomain.Customer{ID: req.CustomerID})
	if err != nil {
		return nil, err
	}

	doc = &documentdomain.BillingDocument{
		ID:         s.genID.Generate(),
		Kind:       req.Kind,
		Status:     documentdomain.StatusDraft,
		CustomerID: req.CustomerID,
		ProviderID: req.ProviderID,
		Currency:   req.Currency,
	}
	if customer != nil {
		doc.SalesTaxPercent = customer.SalesTaxPercent
		doc.SalesTaxName = customer.SalesTaxName
		if doc.Currency == "" {
			doc.Currency = customer.Currency
		}
	}
	if err := s.repo.Insert(ctx, db, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) AddEntries(ctx context.Context, db *gorm.DB, documentID snowflake.ID, entries []documentdomain.DocumentEntry) error {
	if db == nil {
		db = s.db
	}
	doc, err := s.repo.FindByID(ctx, db, documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return documentdomain.ErrDocumentNotFound
	}
	if !doc.IsDraft() {
		return documentdomain.ErrDocumentNotDraft
	}
	for i := range entries {
		entries[i].ID = s.genID.Generate()
		entries[i].DocumentID = documentID
	}
	return s.repo.InsertEntries(ctx, db, entries)
}

func (s *Service) Issue(ctx context.Context, documentID snowflake.ID) (*documentdomain.BillingDocument, error) {
	var out *documentdomain.BillingDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.repo.FindByID(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return documentdomain.ErrDocumentNotFound
		}
		if !doc.IsDraft() {
			return documentdomain.ErrDocumentNotDraft
		}

		provider, err := s.providerRepo.WithTrx(tx).FindOne(ctx, &providerdomain.Provider{ID: doc.ProviderID})
		if err != nil {
			return err
		}

		series := doc.Series
		if series == "" && provider != nil {
			if doc.Kind == documentdomain.KindProforma {
				series = provider.ProformaSeries
			} else {
				series = provider.InvoiceSeries
			}
		}
		number, err := s.repo.NextNumber(ctx, tx, doc.ProviderID, doc.Kind, series)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		due := now.AddDate(0, 0, s.paymentDueDays(ctx, tx, doc.CustomerID))
		doc.Series = series
		doc.Number = &number
		doc.Status = documentdomain.StatusIssued
		doc.IssuedAt = &now
		doc.DueDate = &due
		if err := s.repo.Update(ctx, tx, doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("document issued",
		zap.Int64("document_id", int64(out.ID)),
		zap.String("kind", string(out.Kind)),
	)
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, documentID snowflake.ID) (*documentdomain.BillingDocument, error) {
	doc, err := s.repo.FindByID(ctx, s.db, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, documentdomain.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *Service) ListEntries(ctx context.Context, documentID snowflake.ID) ([]documentdomain.DocumentEntry, error) {
	return s.repo.ListEntries(ctx, s.db, documentID)
}

func (s *Service) paymentDueDays(ctx context.Context, db *gorm.DB, customerID snowflake.ID) int {
	customer, err := s.customerRepo.WithTrx(db).FindOne(ctx, &customerdomain.Customer{ID: customerID})
	if err != nil || customer == nil || customer.PaymentDueDays == nil {
		return defaultPaymentDueDays
	}
	return *customer.PaymentDueDays
}
