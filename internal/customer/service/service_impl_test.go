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
	"github.com/smallbiznis/silver/internal/customer/repository"

	customerdomain "github.com/smallbiznis/silver/internal/customer/domain"
)

func newService(t *testing.T) (customerdomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&customerdomain.Customer{}))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: genID,
		Clock: clock.NewFakeClock(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, db
}

func TestCreate_PersistsCustomer(t *testing.T) {
	svc, db := newService(t)

	tax := decimal.RequireFromString("19")
	customer, err := svc.Create(context.Background(), customerdomain.CreateCustomerRequest{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Currency:        "eur",
		SalesTaxPercent: &tax,
		SalesTaxName:    "VAT",
	})
	require.NoError(t, err)
	assert.NotZero(t, customer.ID)
	assert.Equal(t, "EUR", customer.Currency)

	var stored customerdomain.Customer
	require.NoError(t, db.First(&stored, "id = ?", customer.ID).Error)
	assert.Equal(t, "ada@example.com", stored.Email)
	require.NotNil(t, stored.SalesTaxPercent)
	assert.True(t, stored.SalesTaxPercent.Equal(tax))
}

func TestCreate_Rejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, customerdomain.CreateCustomerRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidEmail)

	bad := decimal.RequireFromString("120")
	_, err = svc.Create(ctx, customerdomain.CreateCustomerRequest{
		Email:           "ada@example.com",
		SalesTaxPercent: &bad,
	})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidTaxRate)

	_, err = svc.Create(ctx, customerdomain.CreateCustomerRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, customerdomain.CreateCustomerRequest{Email: "ada@example.com"})
	assert.ErrorIs(t, err, customerdomain.ErrDuplicateEmail)
}

func TestUpdate_AppliesPartialChanges(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	customer, err := svc.Create(ctx, customerdomain.CreateCustomerRequest{Email: "ada@example.com"})
	require.NoError(t, err)

	consolidated := true
	currency := "usd"
	updated, err := svc.Update(ctx, customerdomain.UpdateCustomerRequest{
		ID:                  customer.ID,
		ConsolidatedBilling: &consolidated,
		Currency:            &currency,
	})
	require.NoError(t, err)
	assert.True(t, updated.ConsolidatedBilling)
	assert.Equal(t, "USD", updated.Currency)
	assert.Equal(t, "ada@example.com", updated.Email)

	_, err = svc.Update(ctx, customerdomain.UpdateCustomerRequest{ID: snowflake.ID(42)})
	assert.ErrorIs(t, err, customerdomain.ErrCustomerNotFound)
}

func TestList_PagesByCursor(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, customerdomain.CreateCustomerRequest{
			Email:    fmt.Sprintf("user%d@example.com", i),
			Currency: "USD",
		})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, customerdomain.ListCustomerRequest{PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, first.Customers, 3)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(ctx, customerdomain.ListCustomerRequest{
		PageSize:  3,
		PageToken: first.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, second.Customers, 2)
	assert.False(t, second.HasMore)
}
