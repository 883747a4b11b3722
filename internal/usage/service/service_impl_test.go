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

	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	"github.com/smallbiznis/silver/internal/clock"
	subscriptionrepo "github.com/smallbiznis/silver/internal/subscription/repository"
	usagerepo "github.com/smallbiznis/silver/internal/usage/repository"
	"github.com/smallbiznis/silver/pkg/dateutil"

	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/silver/internal/usage/domain"
)

type fixture struct {
	db      *gorm.DB
	svc     usagedomain.Service
	genID   *snowflake.Node
	plan    *catalogdomain.Plan
	feature *catalogdomain.MeteredFeature
	sub     *subscriptiondomain.Subscription
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Plan{},
		&catalogdomain.MeteredFeature{},
		&subscriptiondomain.Subscription{},
		&usagedomain.UnitsLog{},
	))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2024, time.January, 20, 10, 0, 0, 0, time.UTC))

	feature := &catalogdomain.MeteredFeature{
		ID:            genID.Generate(),
		Name:          "API calls",
		Unit:          "call",
		ProductCode:   "api-calls",
		PricePerUnit:  decimal.NewFromInt(1),
		IncludedUnits: decimal.NewFromInt(100),
	}
	plan := &catalogdomain.Plan{
		ID:              genID.Generate(),
		Name:            "Starter",
		ProductCode:     "starter",
		ProviderID:      genID.Generate(),
		Interval:        dateutil.IntervalMonth,
		IntervalCount:   1,
		Currency:        "USD",
		Enabled:         true,
		MeteredFeatures: []catalogdomain.MeteredFeature{*feature},
	}
	require.NoError(t, db.Create(plan).Error)

	start := dateutil.Date(2024, time.January, 1)
	sub := &subscriptiondomain.Subscription{
		ID:         genID.Generate(),
		PlanID:     plan.ID,
		CustomerID: genID.Generate(),
		State:      subscriptiondomain.StateActive,
		StartDate:  &start,
	}
	require.NoError(t, db.Create(sub).Error)

	svc := NewService(ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   genID,
		Clock:   fakeClock,
		Repo:    usagerepo.Provide(),
		SubRepo: subscriptionrepo.Provide(),
	})
	return &fixture{db: db, svc: svc, genID: genID, plan: plan, feature: feature, sub: sub}
}

func TestReport_CreatesBucketLazily(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Report(context.Background(), usagedomain.ReportUsageRequest{
		SubscriptionID:   f.sub.ID,
		MeteredFeatureID: f.feature.ID,
		Date:             dateutil.Date(2024, time.January, 10),
		Units:            decimal.NewFromInt(5),
		Mode:             usagedomain.UpdateAbsolute,
	})
	require.NoError(t, err)
	assert.Equal(t, dateutil.Date(2024, time.January, 1), dateutil.DateOf(got.StartDate))
	assert.Equal(t, dateutil.Date(2024, time.January, 31), dateutil.DateOf(got.EndDate))
	assert.True(t, got.ConsumedUnits.Equal(decimal.NewFromInt(5)))
}

func TestReport_AbsoluteOverwritesRelativeAdds(t *testing.T) {
	f := newFixture(t)
	req := usagedomain.ReportUsageRequest{
		SubscriptionID:   f.sub.ID,
		MeteredFeatureID: f.feature.ID,
		Date:             dateutil.Date(2024, time.January, 10),
		Units:            decimal.NewFromInt(10),
		Mode:             usagedomain.UpdateAbsolute,
	}
	_, err := f.svc.Report(context.Background(), req)
	require.NoError(t, err)

	req.Units = decimal.NewFromInt(7)
	got, err := f.svc.Report(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, got.ConsumedUnits.Equal(decimal.NewFromInt(7)))

	req.Mode = usagedomain.UpdateRelative
	req.Units = decimal.NewFromInt(3)
	got, err = f.svc.Report(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, got.ConsumedUnits.Equal(decimal.NewFromInt(10)))
}

func TestReport_RelativeCannotGoNegative(t *testing.T) {
	f := newFixture(t)
	req := usagedomain.ReportUsageRequest{
		SubscriptionID:   f.sub.ID,
		MeteredFeatureID: f.feature.ID,
		Date:             dateutil.Date(2024, time.January, 10),
		Units:            decimal.NewFromInt(5),
		Mode:             usagedomain.UpdateAbsolute,
	}
	_, err := f.svc.Report(context.Background(), req)
	require.NoError(t, err)

	req.Mode = usagedomain.UpdateRelative
	req.Units = decimal.NewFromInt(-10)
	_, err = f.svc.Report(context.Background(), req)
	assert.ErrorIs(t, err, usagedomain.ErrNegativeUnits)
}

func TestReport_AnnotationsGetSeparateBuckets(t *testing.T) {
	f := newFixture(t)
	base := usagedomain.ReportUsageRequest{
		SubscriptionID:   f.sub.ID,
		MeteredFeatureID: f.feature.ID,
		Date:             dateutil.Date(2024, time.January, 10),
		Units:            decimal.NewFromInt(5),
		Mode:             usagedomain.UpdateAbsolute,
	}
	_, err := f.svc.Report(context.Background(), base)
	require.NoError(t, err)

	annotated := base
	annotated.Annotation = "batch"
	_, err = f.svc.Report(context.Background(), annotated)
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&usagedomain.UnitsLog{}).
		Where("subscription_id = ?", f.sub.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestReport_Rejections(t *testing.T) {
	f := newFixture(t)

	t.Run("bad mode", func(t *testing.T) {
		_, err := f.svc.Report(context.Background(), usagedomain.ReportUsageRequest{
			SubscriptionID:   f.sub.ID,
			MeteredFeatureID: f.feature.ID,
			Date:             dateutil.Date(2024, time.January, 10),
			Mode:             "bogus",
		})
		assert.ErrorIs(t, err, usagedomain.ErrInvalidUpdateMode)
	})
	t.Run("unknown feature", func(t *testing.T) {
		_, err := f.svc.Report(context.Background(), usagedomain.ReportUsageRequest{
			SubscriptionID:   f.sub.ID,
			MeteredFeatureID: f.genID.Generate(),
			Date:             dateutil.Date(2024, time.January, 10),
			Mode:             usagedomain.UpdateAbsolute,
		})
		assert.ErrorIs(t, err, usagedomain.ErrInvalidFeature)
	})
	t.Run("date before start", func(t *testing.T) {
		_, err := f.svc.Report(context.Background(), usagedomain.ReportUsageRequest{
			SubscriptionID:   f.sub.ID,
			MeteredFeatureID: f.feature.ID,
			Date:             dateutil.Date(2023, time.December, 20),
			Mode:             usagedomain.UpdateAbsolute,
		})
		assert.ErrorIs(t, err, usagedomain.ErrDateOutsideCycle)
	})
	t.Run("inactive subscription", func(t *testing.T) {
		require.NoError(t, f.db.Model(&subscriptiondomain.Subscription{}).
			Where("id = ?", f.sub.ID).Update("state", subscriptiondomain.StateEnded).Error)
		_, err := f.svc.Report(context.Background(), usagedomain.ReportUsageRequest{
			SubscriptionID:   f.sub.ID,
			MeteredFeatureID: f.feature.ID,
			Date:             dateutil.Date(2024, time.January, 10),
			Mode:             usagedomain.UpdateAbsolute,
		})
		assert.ErrorIs(t, err, usagedomain.ErrInvalidSubscription)
	})
}
