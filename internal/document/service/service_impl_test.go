package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/silver/internal/clock"
	documentrepo "github.com/smallbiznis/silver/internal/document/repository"

	customerdomain "github.com/smallbiznis/silver/internal/customer/domain"
	documentdomain "github.com/smallbiznis/silver/internal/document/domain"
	providerdomain "github.com/smallbiznis/silver/internal/provider/domain"
)

type fixture struct {
	db       *gorm.DB
	svc      documentdomain.Service
	genID    *snowflake.Node
	clock    *clock.FakeClock
	provider *providerdomain.Provider
	customer *customerdomain.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&providerdomain.Provider{},
		&customerdomain.Customer{},
		&documentdomain.BillingDocument{},
		&documentdomain.DocumentEntry{},
	))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))

	provider := &providerdomain.Provider{
		ID:              genID.Generate(),
		Name:            "Acme Billing",
		Flow:            providerdomain.FlowInvoice,
		InvoiceSeries:   "INV",
		ProformaSeries:  "PF",
		DefaultCurrency: "USD",
	}
	require.NoError(t, db.Create(provider).Error)

	tax := decimal.NewFromInt(19)
	dueDays := 15
	customer := &customerdomain.Customer{
		ID:              genID.Generate(),
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Currency:        "EUR",
		SalesTaxPercent: &tax,
		SalesTaxName:    "VAT",
		PaymentDueDays:  &dueDays,
	}
	require.NoError(t, db.Create(customer).Error)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: genID,
		Clock: fakeClock,
		Repo:  documentrepo.Provide(),
	})
	return &fixture{db: db, svc: svc, genID: genID, clock: fakeClock, provider: provider, customer: customer}
}

func TestFindOrCreateDraft_CopiesCustomerDefaults(t *testing.T) {
	f := newFixture(t)

	doc, err := f.svc.FindOrCreateDraft(context.Background(), nil, documentdomain.CreateDraftRequest{
		Kind:       documentdomain.KindInvoice,
		CustomerID: f.customer.ID,
		ProviderID: f.provider.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, documentdomain.StatusDraft, doc.Status)
	assert.Equal(t, "EUR", doc.Currency)
	require.NotNil(t, doc.SalesTaxPercent)
	assert.Equal(t, "VAT", doc.SalesTaxName)
}

func TestFindOrCreateDraft_ReusesOpenDraft(t *testing.T) {
	f := newFixture(t)
	req := documentdomain.CreateDraftRequest{
		Kind:       documentdomain.KindInvoice,
		CustomerID: f.customer.ID,
		ProviderID: f.provider.ID,
		Currency:   "USD",
	}

	first, err := f.svc.FindOrCreateDraft(context.Background(), nil, req)
	require.NoError(t, err)
	second, err := f.svc.FindOrCreateDraft(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A different kind gets its own draft.
	req.Kind = documentdomain.KindProforma
	proforma, err := f.svc.FindOrCreateDraft(context.Background(), nil, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, proforma.ID)
}

func TestFindOrCreateDraft_RejectsUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.FindOrCreateDraft(context.Background(), nil, documentdomain.CreateDraftRequest{
		Kind:       "receipt",
		CustomerID: f.customer.ID,
		ProviderID: f.provider.ID,
	})
	assert.ErrorIs(t, err, documentdomain.ErrInvalidKind)
}

func TestAddEntries_RequiresDraft(t *testing.T) {
	f := newFixture(t)
	doc, err := f.svc.FindOrCreateDraft(context.Background(), nil, documentdomain.CreateDraftRequest{
		Kind:       documentdomain.KindInvoice,
		CustomerID: f.customer.ID,
		ProviderID: f.provider.ID,
		Currency:   "USD",
	})
	require.NoError(t, err)

	entries := []documentdomain.DocumentEntry{{
		Description: "Starter plan subscription",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.RequireFromString("100.00"),
	}}
	require.NoError(t, f.svc.AddEntries(context.Background(), nil, doc.ID, entries))

	got, err := f.svc.ListEntries(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotZero(t, got[0].ID)
	assert.Equal(t, doc.ID, got[0].DocumentID)

	_, err = f.svc.Issue(context.Background(), doc.ID)
	require.NoError(t, err)
	err = f.svc.AddEntries(context.Background(), nil, doc.ID, entries)
	assert.ErrorIs(t, err, documentdomain.ErrDocumentNotDraft)
}

func TestIssue_AssignsSeriesNumberAndDueDate(t *testing.T) {
	f := newFixture(t)

	issueOne := func() *documentdomain.BillingDocument {
		doc, err := f.svc.FindOrCreateDraft(context.Background(), nil, documentdomain.CreateDraftRequest{
			Kind:       documentdomain.KindInvoice,
			CustomerID: f.customer.ID,
			ProviderID: f.provider.ID,
			Currency:   "USD",
		})
		require.NoError(t, err)
		issued, err := f.svc.Issue(context.Background(), doc.ID)
		require.NoError(t, err)
		return issued
	}

	first := issueOne()
	assert.Equal(t, "INV", first.Series)
	require.NotNil(t, first.Number)
	assert.EqualValues(t, 1, *first.Number)
	require.NotNil(t, first.DueDate)
	assert.Equal(t, time.Date(2024, time.March, 16, 9, 0, 0, 0, time.UTC), first.DueDate.UTC())

	second := issueOne()
	require.NotNil(t, second.Number)
	assert.EqualValues(t, 2, *second.Number)

	_, err := f.svc.Issue(context.Background(), first.ID)
	assert.ErrorIs(t, err, documentdomain.ErrDocumentNotDraft)
}
