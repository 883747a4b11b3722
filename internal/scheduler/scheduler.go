// Package scheduler drives periodic billing runs. Each tick claims a
// batch of billable subscriptions, generates entries into the
// customer's open draft and records the outcome in metrics.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/silver/internal/clock"
	"github.com/smallbiznis/silver/internal/config"
	"github.com/smallbiznis/silver/internal/observability/metrics"
	"github.com/smallbiznis/silver/pkg/dateutil"
	"github.com/smallbiznis/silver/pkg/repository"

	billingdomain "github.com/smallbiznis/silver/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	documentdomain "github.com/smallbiznis/silver/internal/document/domain"
	providerdomain "github.com/smallbiznis/silver/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	BillingCfg *config.BillingConfigHolder
	SubRepo    subscriptiondomain.Repository
	BillingSvc billingdomain.Service
	DocSvc     documentdomain.Service
	Metrics    *metrics.BillingMetrics
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	billingCfg *config.BillingConfigHolder
	subRepo    subscriptiondomain.Repository
	billingSvc billingdomain.Service
	docSvc     documentdomain.Service
	metrics    *metrics.BillingMetrics

	planRepo     repository.Repository[catalogdomain.Plan]
	providerRepo repository.Repository[providerdomain.Provider]
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler"),
		clock:      p.Clock,
		billingCfg: p.BillingCfg,
		subRepo:    p.SubRepo,
		billingSvc: p.BillingSvc,
		docSvc:     p.DocSvc,
		metrics:    p.Metrics,

		planRepo:     repository.ProvideStore[catalogdomain.Plan](p.DB),
		providerRepo: repository.ProvideStore[providerdomain.Provider](p.DB),
	}
}

// RunStats summarizes one scheduler pass.
type RunStats struct {
	Claimed int
	Billed  int
	Skipped int
	Errors  int
}

// RunOnce claims one batch of billable subscriptions and bills each
// that is due today. Lock contention and ineligibility are skips, not
// errors; a run never fails because one subscription did.
func (s *Scheduler) RunOnce(ctx context.Context) (RunStats, error) {
	var stats RunStats

	cfg := s.billingCfg.Get()
	today := dateutil.DateOf(s.clock.Now())

	subscriptions, err := s.subRepo.ListBillable(ctx, s.db, cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(subscriptions)
	s.metrics.ObserveBatch(stats.Claimed)

	for i := range subscriptions {
		sub := &subscriptions[i]

		due, err := s.billingSvc.ShouldBeBilled(ctx, sub.ID, today)
		if err != nil {
			stats.Errors++
			s.log.Error("eligibility check failed",
				zap.Int64("subscription_id", int64(sub.ID)),
				zap.Error(err),
			)
			continue
		}
		if !due {
			stats.Skipped++
			continue
		}

		if err := s.billSubscription(ctx, sub, today); err != nil {
			switch {
			case errors.Is(err, billingdomain.ErrLockNotAcquired):
				stats.Skipped++
			case errors.Is(err, billingdomain.ErrNotEligible):
				stats.Skipped++
			default:
				stats.Errors++
				s.log.Error("billing run failed",
					zap.Int64("subscription_id", int64(sub.ID)),
					zap.Error(err),
				)
			}
			continue
		}
		stats.Billed++
	}

	s.log.Info("scheduler pass complete",
		zap.Int("claimed", stats.Claimed),
		zap.Int("billed", stats.Billed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

func (s *Scheduler) billSubscription(ctx context.Context, sub *subscriptiondomain.Subscription, today time.Time) error {
	start := s.clock.Now()

	doc, err := s.resolveDraft(ctx, sub)
	if err != nil {
		s.metrics.ObserveRun(metrics.ResultError, s.clock.Now().Sub(start))
		return err
	}

	result, err := s.billingSvc.AddBillingEntries(ctx, billingdomain.AddBillingEntriesRequest{
		SubscriptionID: sub.ID,
		BillingDate:    today,
		DocumentID:     doc.ID,
	})
	elapsed := s.clock.Now().Sub(start)
	switch {
	case err == nil:
		s.metrics.ObserveRun(metrics.ResultBilled, elapsed)
		s.metrics.AddEntries(len(result.Entries))
		return nil
	case errors.Is(err, billingdomain.ErrLockNotAcquired):
		s.metrics.ObserveRun(metrics.ResultLockContended, elapsed)
		return err
	case errors.Is(err, billingdomain.ErrNotEligible):
		s.metrics.ObserveRun(metrics.ResultNotEligible, elapsed)
		return err
	default:
		s.metrics.ObserveRun(metrics.ResultError, elapsed)
		return err
	}
}

// resolveDraft finds or creates the customer's open draft under the
// provider, in the kind the provider's flow selects. Drafts are shared
// across the customer's subscriptions so consolidated billing lands on
// one document.
func (s *Scheduler) resolveDraft(ctx context.Context, sub *subscriptiondomain.Subscription) (*documentdomain.BillingDocument, error) {
	plan, err := s.planRepo.FindOne(ctx, &catalogdomain.Plan{ID: sub.PlanID})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, subscriptiondomain.ErrPlanNotFound
	}

	provider, err := s.providerRepo.FindOne(ctx, &providerdomain.Provider{ID: plan.ProviderID})
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, providerdomain.ErrProviderNotFound
	}

	kind := documentdomain.KindInvoice
	if provider.Flow == providerdomain.FlowProforma {
		kind = documentdomain.KindProforma
	}

	return s.docSvc.FindOrCreateDraft(ctx, s.db, documentdomain.CreateDraftRequest{
		Kind:       kind,
		CustomerID: sub.CustomerID,
		ProviderID: provider.ID,
		Currency:   plan.Currency,
	})
}
