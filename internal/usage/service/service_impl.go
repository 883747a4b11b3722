package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	"github.com/smallbiznis/silver/internal/clock"
	subscriptiondomain "github.com/smallbiznis/silver/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/silver/internal/usage/domain"
	"github.com/smallbiznis/silver/pkg/dateutil"
	"github.com/smallbiznis/silver/pkg/db/option"
	"github.com/smallbiznis/silver/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    usagedomain.Repository
	SubRepo subscriptiondomain.Repository
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     usagedomain.Repository
	subRepo  subscriptiondomain.Repository
	planRepo repository.Repository[catalogdomain.Plan]
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("usage.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		subRepo:  p.SubRepo,
		planRepo: repository.ProvideStore[catalogdomain.Plan](p.DB),
	}
}

func (s *Service) Report(ctx context.Context, req usagedomain.ReportUsageRequest) (*usagedomain.UnitsLog, error) {
	if req.Mode != usagedomain.UpdateAbsolute && req.Mode != usagedomain.UpdateRelative {
		return nil, usagedomain.ErrInvalidUpdateMode
	}
	if req.Mode == usagedomain.UpdateAbsolute && req.Units.IsNegative() {
		return nil, usagedomain.ErrNegativeUnits
	}

	sub, err := s.subRepo.FindByID(ctx, s.db, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !sub.IsBillable() {
		return nil, usagedomain.ErrInvalidSubscription
	}

	plan, feature, err := s.resolveFeature(ctx, sub.PlanID, req.MeteredFeatureID)
	if err != nil {
		return nil, err
	}

	day := dateutil.DateOf(req.Date)
	start := sub.BucketStartDate(plan, day, catalogdomain.CadenceMeteredFeatures)
	end := sub.BucketEndDate(plan, day, catalogdomain.CadenceMeteredFeatures)
	if start == nil || end == nil {
		return nil, usagedomain.ErrDateOutsideCycle
	}

	var result *usagedomain.UnitsLog
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bucket, err := s.repo.FindBucket(ctx, tx, feature.ID, sub.ID, *start, *end, req.Annotation)
		if err != nil {
			return err
		}
		if bucket == nil {
			bucket = &usagedomain.UnitsLog{
				ID:               s.genID.Generate(),
				MeteredFeatureID: feature.ID,
				SubscriptionID:   sub.ID,
				StartDate:        *start,
				EndDate:          *end,
				Annotation:       req.Annotation,
				ConsumedUnits:    req.Units,
			}
			if bucket.ConsumedUnits.IsNegative() {
				return usagedomain.ErrNegativeUnits
			}
			result = bucket
			return s.repo.Insert(ctx, tx, bucket)
		}

		switch req.Mode {
		case usagedomain.UpdateAbsolute:
			bucket.ConsumedUnits = req.Units
		case usagedomain.UpdateRelative:
			bucket.ConsumedUnits = bucket.ConsumedUnits.Add(req.Units)
		}
		if bucket.ConsumedUnits.IsNegative() {
			return usagedomain.ErrNegativeUnits
		}
		result = bucket
		return s.repo.Update(ctx, tx, bucket)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("usage reported",
		zap.Int64("subscription_id", int64(sub.ID)),
		zap.Int64("metered_feature_id", int64(feature.ID)),
		zap.String("consumed_units", result.ConsumedUnits.String()),
	)
	return result, nil
}

func (s *Service) resolveFeature(ctx context.Context, planID, featureID snowflake.ID) (*catalogdomain.Plan, *catalogdomain.MeteredFeature, error) {
	plan, err := s.planRepo.FindOne(ctx, &catalogdomain.Plan{ID: planID}, option.WithPreload("MeteredFeatures"))
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		return nil, nil, subscriptiondomain.ErrPlanNotFound
	}
	for i := range plan.MeteredFeatures {
		if plan.MeteredFeatures[i].ID == featureID {
			return plan, &plan.MeteredFeatures[i], nil
		}
	}
	return nil, nil, usagedomain.ErrInvalidFeature
}
