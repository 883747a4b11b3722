package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/silver/internal/clock"
	"github.com/smallbiznis/silver/internal/config"
	"github.com/smallbiznis/silver/pkg/dateutil"
	"github.com/smallbiznis/silver/pkg/db/option"
	"github.com/smallbiznis/silver/pkg/repository"

	billingdomain "github.com/smallbiznis/silver/internal/billing/domain"
	"github.com/smallbiznis/silver/internal/billing/lock"
	billinglogdomain "github.com/smallbiznis/silver/internal/billinglog/domain"
	bonusdomain "github.com/smallbiznis/silver/internal/bonus/domain"
	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/silver/internal/customer/domain"
	discountdomain "github.com/smallbiznis/silver/internal/discount/domain"
	documentdomain "github.com/smallbiznis/silver/internal/document/domain"
	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/silver/internal/usage/domain"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	SubRepo    subscriptiondomain.Repository
	UsageRepo  usagedomain.Repository
	LogRepo    billinglogdomain.Repository
	DocSvc     documentdomain.Service
	Locker     lock.Locker
	BillingCfg *config.BillingConfigHolder
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	subRepo    subscriptiondomain.Repository
	usageRepo  usagedomain.Repository
	logRepo    billinglogdomain.Repository
	docSvc     documentdomain.Service
	locker     lock.Locker
	billingCfg *config.BillingConfigHolder

	planRepo     repository.Repository[catalogdomain.Plan]
	customerRepo repository.Repository[customerdomain.Customer]
	discountRepo repository.Repository[discountdomain.Discount]
	bonusRepo    repository.Repository[bonusdomain.Bonus]
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("billing.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		subRepo:    p.SubRepo,
		usageRepo:  p.UsageRepo,
		logRepo:    p.LogRepo,
		docSvc:     p.DocSvc,
		locker:     p.Locker,
		billingCfg: p.BillingCfg,

		planRepo:     repository.ProvideStore[catalogdomain.Plan](p.DB),
		customerRepo: repository.ProvideStore[customerdomain.Customer](p.DB),
		discountRepo: repository.ProvideStore[discountdomain.Discount](p.DB),
		bonusRepo:    repository.ProvideStore[bonusdomain.Bonus](p.DB),
	}
}

func (s *Service) ShouldBeBilled(ctx context.Context, subscriptionID snowflake.ID, billingDate time.Time) (bool, error) {
	bc, err := s.loadContext(ctx, s.db, subscriptionID, false)
	if err != nil {
		return false, err
	}
	planDue, meteredDue := bc.shouldBeBilled(billingDate, s.clock.Now())
	return planDue || meteredDue, nil
}

func (s *Service) AddBillingEntries(ctx context.Context, req billingdomain.AddBillingEntriesRequest) (*billingdomain.BillingResult, error) {
	cfg := s.billingCfg.Get()
	now := s.clock.Now()

	billingDate := req.BillingDate
	if billingDate.IsZero() {
		billingDate = now
	}
	billingDate = dateutil.DateOf(billingDate)

	doc, err := s.docSvc.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, documentdomain.ErrDocumentNotFound) {
			return nil, billingdomain.ErrMissingDocument
		}
		return nil, err
	}
	if !doc.IsDraft() {
		return nil, documentdomain.ErrDocumentNotDraft
	}

	key := lock.SubscriptionKey(req.SubscriptionID)
	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	token, ok, err := s.locker.TryLock(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, billingdomain.ErrLockNotAcquired
	}
	defer func() {
		if err := s.locker.Release(ctx, key, token); err != nil {
			s.log.Warn("failed to release billing lock",
				zap.String("key", key), zap.Error(err))
		}
	}()

	result := &billingdomain.BillingResult{}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bc, err := s.loadContext(ctx, tx, req.SubscriptionID, true)
		if err != nil {
			return err
		}

		planDue, meteredDue := bc.shouldBeBilled(billingDate, now)
		if !planDue && !meteredDue {
			return billingdomain.ErrNotEligible
		}

		discounts, bonuses, err := s.loadAdjustments(ctx, tx)
		if err != nil {
			return err
		}

		gen := &entryGenerator{
			bc:        bc,
			usageRepo: s.usageRepo,
			discounts: discounts,
			bonuses:   bonuses,
		}
		out, err := gen.generate(ctx, tx, billingDate, now, planDue, meteredDue)
		if err != nil {
			return err
		}

		if len(out.entries) > 0 {
			if err := s.docSvc.AddEntries(ctx, tx, req.DocumentID, out.entries); err != nil {
				return err
			}
		}

		billingLog := &billinglogdomain.BillingLog{
			ID:                        s.genID.Generate(),
			SubscriptionID:            bc.sub.ID,
			BillingDate:               billingDate,
			PlanBilledUpTo:            out.planBilledUpTo,
			MeteredFeaturesBilledUpTo: out.meteredFeaturesBilledUpTo,
			TotalBeforeTax:            out.totalBeforeTax,
			Total:                     out.total,
		}
		docID := doc.ID
		if doc.Kind == documentdomain.KindProforma {
			billingLog.ProformaID = &docID
		} else {
			billingLog.InvoiceID = &docID
		}
		if err := s.logRepo.Append(ctx, tx, billingLog); err != nil {
			return err
		}

		result.PlanBilled = planDue
		result.MeteredBilled = meteredDue
		result.Entries = out.entries
		result.Log = billingLog
		result.TotalBeforeTax = out.totalBeforeTax
		result.Total = out.total
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("billed subscription",
		zap.Int64("subscription_id", int64(req.SubscriptionID)),
		zap.Time("billing_date", billingDate),
		zap.Bool("plan_billed", result.PlanBilled),
		zap.Bool("metered_billed", result.MeteredBilled),
		zap.Int("entries", len(result.Entries)),
		zap.String("total", result.Total.String()),
	)
	return result, nil
}

// loadContext gathers everything one billing decision needs, inside the
// caller's transaction. forUpdate row-locks the subscription for the
// duration of the run.
func (s *Service) loadContext(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, forUpdate bool) (*billingContext, error) {
	var (
		sub *subscriptiondomain.Subscription
		err error
	)
	if forUpdate {
		sub, err = s.subRepo.FindByIDForUpdate(ctx, db, subscriptionID)
	} else {
		sub, err = s.subRepo.FindByID(ctx, db, subscriptionID)
	}
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	plan, err := s.planRepo.WithTrx(db).FindOne(ctx,
		&catalogdomain.Plan{ID: sub.PlanID},
		option.WithPreload("MeteredFeatures"))
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, subscriptiondomain.ErrPlanNotFound
	}

	customer, err := s.customerRepo.WithTrx(db).FindOne(ctx,
		&customerdomain.Customer{ID: sub.CustomerID})
	if err != nil {
		return nil, err
	}

	lastLog, err := s.logRepo.LastFor(ctx, db, sub.ID)
	if err != nil {
		return nil, err
	}

	activeSiblings, err := s.subRepo.CountForCustomerUnderProvider(ctx, db,
		sub.CustomerID, plan.ProviderID,
		[]subscriptiondomain.State{subscriptiondomain.StateActive}, sub.ID)
	if err != nil {
		return nil, err
	}

	return &billingContext{
		sub:                         sub,
		plan:                        plan,
		customer:                    customer,
		lastLog:                     lastLog,
		hasOtherActiveSub:           activeSiblings > 0,
		defaultGenerateAfterSeconds: s.billingCfg.Get().DefaultGenerateAfterSeconds,
	}, nil
}

func (s *Service) loadAdjustments(ctx context.Context, tx *gorm.DB) ([]discountdomain.Discount, []bonusdomain.Bonus, error) {
	discountRows, err := s.discountRepo.WithTrx(tx).Find(ctx, &discountdomain.Discount{Enabled: true})
	if err != nil {
		return nil, nil, err
	}
	bonusRows, err := s.bonusRepo.WithTrx(tx).Find(ctx, &bonusdomain.Bonus{Enabled: true})
	if err != nil {
		return nil, nil, err
	}

	discounts := make([]discountdomain.Discount, 0, len(discountRows))
	for _, d := range discountRows {
		discounts = append(discounts, *d)
	}
	bonuses := make([]bonusdomain.Bonus, 0, len(bonusRows))
	for _, b := range bonusRows {
		bonuses = append(bonuses, *b)
	}
	return discounts, bonuses, nil
}
