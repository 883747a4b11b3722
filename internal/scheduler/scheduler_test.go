package scheduler

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

	"github.com/smallbiznis/silver/internal/billing/lock"
	"github.com/smallbiznis/silver/internal/clock"
	"github.com/smallbiznis/silver/internal/config"
	"github.com/smallbiznis/silver/internal/observability/metrics"
	"github.com/smallbiznis/silver/pkg/dateutil"

	billingservice "github.com/smallbiznis/silver/internal/billing/service"
	billinglogrepo "github.com/smallbiznis/silver/internal/billinglog/repository"
	documentrepo "github.com/smallbiznis/silver/internal/document/repository"
	documentservice "github.com/smallbiznis/silver/internal/document/service"
	subscriptionrepo "github.com/smallbiznis/silver/internal/subscription/repository"
	usagerepo "github.com/smallbiznis/silver/internal/usage/repository"

	billinglogdomain "github.com/smallbiznis/silver/internal/billinglog/domain"
	bonusdomain "github.com/smallbiznis/silver/internal/bonus/domain"
	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/silver/internal/customer/domain"
	discountdomain "github.com/smallbiznis/silver/internal/discount/domain"
	documentdomain "github.com/smallbiznis/silver/internal/document/domain"
	providerdomain "github.com/smallbiznis/silver/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/silver/internal/usage/domain"
)

type fixture struct {
	db    *gorm.DB
	sched *Scheduler
	clock *clock.FakeClock
	genID *snowflake.Node

	customer *customerdomain.Customer
}

func newFixture(t *testing.T, flow providerdomain.Flow) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&providerdomain.Provider{},
		&customerdomain.Customer{},
		&catalogdomain.Plan{},
		&catalogdomain.MeteredFeature{},
		&subscriptiondomain.Subscription{},
		&usagedomain.UnitsLog{},
		&billinglogdomain.BillingLog{},
		&documentdomain.BillingDocument{},
		&documentdomain.DocumentEntry{},
		&discountdomain.Discount{},
		&bonusdomain.Bonus{},
	))

	genID, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC))
	holder := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())

	docSvc := documentservice.NewService(documentservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: genID,
		Clock: fakeClock,
		Repo:  documentrepo.Provide(),
	})
	billingSvc := billingservice.NewService(billingservice.ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      genID,
		Clock:      fakeClock,
		SubRepo:    subscriptionrepo.Provide(),
		UsageRepo:  usagerepo.Provide(),
		LogRepo:    billinglogrepo.Provide(),
		DocSvc:     docSvc,
		Locker:     lock.NewLocalLocker(),
		BillingCfg: holder,
	})
	sched := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      fakeClock,
		BillingCfg: holder,
		SubRepo:    subscriptionrepo.Provide(),
		BillingSvc: billingSvc,
		DocSvc:     docSvc,
		Metrics:    metrics.NewBillingMetrics(nil),
	})

	provider := &providerdomain.Provider{
		ID:             genID.Generate(),
		Name:           "Acme Billing",
		Flow:           flow,
		InvoiceSeries:  "INV",
		ProformaSeries: "PF",
	}
	require.NoError(t, db.Create(provider).Error)
	customer := &customerdomain.Customer{
		ID:       genID.Generate(),
		Email:    "ada@example.com",
		Currency: "USD",
	}
	require.NoError(t, db.Create(customer).Error)

	// One monthly plan with a subscription whose first cycle closed
	// yesterday, so it is due in arrears today.
	plan := &catalogdomain.Plan{
		ID:            genID.Generate(),
		Name:          "Starter",
		ProductCode:   "starter",
		ProviderID:    provider.ID,
		Interval:      dateutil.IntervalMonth,
		IntervalCount: 1,
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      "USD",
		Enabled:       true,
	}
	require.NoError(t, db.Create(plan).Error)
	start := dateutil.Date(2024, time.January, 15)
	sub := &subscriptiondomain.Subscription{
		ID:         genID.Generate(),
		PlanID:     plan.ID,
		CustomerID: customer.ID,
		State:      subscriptiondomain.StateActive,
		StartDate:  &start,
	}
	require.NoError(t, db.Create(sub).Error)

	return &fixture{db: db, sched: sched, clock: fakeClock, genID: genID, customer: customer}
}

func (f *fixture) documents(t *testing.T) []documentdomain.BillingDocument {
	t.Helper()
	var docs []documentdomain.BillingDocument
	require.NoError(t, f.db.Find(&docs).Error)
	return docs
}

func TestRunOnce_BillsDueSubscription(t *testing.T) {
	f := newFixture(t, providerdomain.FlowInvoice)

	stats, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, 1, stats.Billed)
	assert.Equal(t, 0, stats.Errors)

	docs := f.documents(t)
	require.Len(t, docs, 1)
	assert.Equal(t, documentdomain.KindInvoice, docs[0].Kind)
	assert.True(t, docs[0].IsDraft())

	var entryCount int64
	require.NoError(t, f.db.Model(&documentdomain.DocumentEntry{}).
		Where("document_id = ?", docs[0].ID).Count(&entryCount).Error)
	assert.Equal(t, int64(1), entryCount)

	var logCount int64
	require.NoError(t, f.db.Model(&billinglogdomain.BillingLog{}).Count(&logCount).Error)
	assert.Equal(t, int64(1), logCount)
}

func TestRunOnce_SecondPassBillsNothing(t *testing.T) {
	f := newFixture(t, providerdomain.FlowInvoice)
	ctx := context.Background()

	_, err := f.sched.RunOnce(ctx)
	require.NoError(t, err)

	stats, err := f.sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Billed)
	assert.Equal(t, 1, stats.Skipped)

	var logCount int64
	require.NoError(t, f.db.Model(&billinglogdomain.BillingLog{}).Count(&logCount).Error)
	assert.Equal(t, int64(1), logCount)
}

func TestRunOnce_ProformaFlow(t *testing.T) {
	f := newFixture(t, providerdomain.FlowProforma)

	stats, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Billed)

	docs := f.documents(t)
	require.Len(t, docs, 1)
	assert.Equal(t, documentdomain.KindProforma, docs[0].Kind)
}

func TestRunOnce_SkipsNotYetDue(t *testing.T) {
	f := newFixture(t, providerdomain.FlowInvoice)
	f.clock.SetNow(time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC))

	stats, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, 0, stats.Billed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, f.documents(t))
}
