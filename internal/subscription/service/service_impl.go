package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	"github.com/smallbiznis/silver/internal/clock"
	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/silver/internal/usage/domain"
	"github.com/smallbiznis/silver/pkg/dateutil"
	"github.com/smallbiznis/silver/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      subscriptiondomain.Repository
	UsageRepo usagedomain.Repository
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	repo      subscriptiondomain.Repository
	usageRepo usagedomain.Repository
	planRepo  repository.Repository[catalogdomain.Plan]

	callbacks []subscriptiondomain.TransitionCallback
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		usageRepo: p.UsageRepo,
		planRepo:  repository.ProvideStore[catalogdomain.Plan](p.DB),
	}
}

func (s *Service) RegisterTransitionCallback(cb subscriptiondomain.TransitionCallback) {
	s.callbacks = append(s.callbacks, cb)
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	plan, err := s.planRepo.FindOne(ctx, &catalogdomain.Plan{ID: req.PlanID})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, subscriptiondomain.ErrPlanNotFound
	}

	sub := &subscriptiondomain.Subscription{
		ID:         s.genID.Generate(),
		PlanID:     req.PlanID,
		CustomerID: req.CustomerID,
		State:      subscriptiondomain.StateInactive,
		Reference:  req.Reference,
		Metadata:   datatypes.JSONMap(req.Metadata),
	}
	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

// Activate moves the subscription into active, pinning its start date
// and resolving the trial window. A customer who already had any
// subscription under the same provider gets no trial on the new one.
func (s *Service) Activate(ctx context.Context, req subscriptiondomain.ActivateRequest) (*subscriptiondomain.Subscription, error) {
	var out *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		next, err := subscriptiondomain.NextState(sub.State, subscriptiondomain.EventActivate)
		if err != nil {
			return err
		}

		plan, err := s.planRepo.WithTrx(tx).FindOne(ctx, &catalogdomain.Plan{ID: sub.PlanID})
		if err != nil {
			return err
		}
		if plan == nil {
			return subscriptiondomain.ErrPlanNotFound
		}

		// A subscription never starts in the future.
		today := dateutil.DateOf(s.clock.Now())
		start := today
		if req.StartDate != nil {
			start = dateutil.MinDate(dateutil.DateOf(*req.StartDate), today)
		}
		sub.StartDate = &start

		// Reactivation leaves no trace of the earlier cancellation.
		sub.CancelDate = nil
		sub.EndedAt = nil

		trialEnd, err := s.resolveTrialEnd(ctx, tx, sub, plan, start, req.TrialEndDate)
		if err != nil {
			return err
		}
		sub.TrialEnd = trialEnd

		sub.State = next
		if err := sub.Validate(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.fireCallbacks(ctx, out, subscriptiondomain.EventActivate)
	return out, nil
}

func (s *Service) resolveTrialEnd(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, plan *catalogdomain.Plan, start time.Time, override *time.Time) (*time.Time, error) {
	var trialEnd *time.Time
	if override != nil {
		te := dateutil.DateOf(*override)
		trialEnd = &te
	} else if plan.TrialPeriodDays != nil && *plan.TrialPeriodDays > 0 {
		te := dateutil.AddInterval(start, dateutil.IntervalDay, *plan.TrialPeriodDays-1)
		trialEnd = &te
	}
	if trialEnd == nil {
		return nil, nil
	}

	prior, err := s.repo.CountForCustomerUnderProvider(ctx, tx, sub.CustomerID, plan.ProviderID,
		[]subscriptiondomain.State{
			subscriptiondomain.StateActive,
			subscriptiondomain.StateCanceled,
			subscriptiondomain.StateEnded,
		}, sub.ID)
	if err != nil {
		return nil, err
	}
	if prior > 0 {
		s.log.Info("trial skipped for returning customer",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.Int64("customer_id", int64(sub.CustomerID)),
		)
		return nil, nil
	}
	return trialEnd, nil
}

// Cancel moves an active subscription to canceled. The effective
// cancellation date depends on When: the current day, the end of the
// current billing cycle, or a literal date.
func (s *Service) Cancel(ctx context.Context, req subscriptiondomain.CancelRequest) (*subscriptiondomain.Subscription, error) {
	var out *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		next, err := subscriptiondomain.NextState(sub.State, subscriptiondomain.EventCancel)
		if err != nil {
			return err
		}

		plan, err := s.planRepo.WithTrx(tx).FindOne(ctx, &catalogdomain.Plan{ID: sub.PlanID})
		if err != nil {
			return err
		}
		if plan == nil {
			return subscriptiondomain.ErrPlanNotFound
		}

		today := dateutil.DateOf(s.clock.Now())
		var cancelDate time.Time
		switch req.When {
		case subscriptiondomain.CancelNow:
			cancelDate = today
		case subscriptiondomain.CancelEndOfBillingCycle:
			end := sub.CycleEndDate(plan, today, catalogdomain.CadencePlan)
			if end == nil {
				return subscriptiondomain.ErrNoCycle
			}
			cancelDate = *end
		case subscriptiondomain.CancelOnDate:
			if req.Date == nil {
				return subscriptiondomain.ErrInvalidCancelWhen
			}
			cancelDate = dateutil.DateOf(*req.Date)
		default:
			return subscriptiondomain.ErrInvalidCancelWhen
		}

		// Canceling inside the trial shortens the trial to the
		// cancellation date.
		if sub.TrialEnd != nil && cancelDate.Before(dateutil.DateOf(*sub.TrialEnd)) {
			sub.TrialEnd = &cancelDate
		}
		sub.CancelDate = &cancelDate
		sub.State = next
		if err := sub.Validate(); err != nil {
			return err
		}

		if req.When == subscriptiondomain.CancelNow {
			if err := s.usageRepo.TruncateOpenBuckets(ctx, tx, sub.ID, today); err != nil {
				return err
			}
		}

		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.fireCallbacks(ctx, out, subscriptiondomain.EventCancel)
	return out, nil
}

// End moves a canceled subscription to its terminal state.
func (s *Service) End(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var out *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		next, err := subscriptiondomain.NextState(sub.State, subscriptiondomain.EventEnd)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		sub.EndedAt = &now
		sub.State = next
		if err := sub.Validate(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.fireCallbacks(ctx, out, subscriptiondomain.EventEnd)
	return out, nil
}

func (s *Service) fireCallbacks(ctx context.Context, sub *subscriptiondomain.Subscription, event subscriptiondomain.Event) {
	for _, cb := range s.callbacks {
		cb(ctx, sub, event)
	}
}
