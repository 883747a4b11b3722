package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/silver/internal/clock"
	"github.com/smallbiznis/silver/pkg/db"
	"github.com/smallbiznis/silver/pkg/db/pagination"

	customerdomain "github.com/smallbiznis/silver/internal/customer/domain"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  customerdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  customerdomain.Repository
}

func NewService(p ServiceParam) customerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (*customerdomain.Customer, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, customerdomain.ErrInvalidEmail
	}
	if err := validateTaxRate(req.SalesTaxPercent); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, customerdomain.ErrDuplicateEmail
	}

	now := s.clock.Now()
	customer := &customerdomain.Customer{
		ID:                  s.genID.Generate(),
		FirstName:           strings.TrimSpace(req.FirstName),
		LastName:            strings.TrimSpace(req.LastName),
		Company:             strings.TrimSpace(req.Company),
		Email:               email,
		Currency:            strings.ToUpper(strings.TrimSpace(req.Currency)),
		ConsolidatedBilling: req.ConsolidatedBilling,
		SalesTaxPercent:     req.SalesTaxPercent,
		SalesTaxName:        req.SalesTaxName,
		PaymentDueDays:      req.PaymentDueDays,
		Metadata:            datatypes.JSONMap{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Insert(ctx, s.db, customer); err != nil {
		// A concurrent create can slip past the lookup above; the
		// unique index is the real guard.
		if db.IsDuplicateKeyErr(err) {
			return nil, customerdomain.ErrDuplicateEmail
		}
		return nil, err
	}

	s.log.Info("customer created",
		zap.Int64("customer_id", int64(customer.ID)),
		zap.String("email", customer.Email),
	)
	return customer, nil
}

func (s *Service) Update(ctx context.Context, req customerdomain.UpdateCustomerRequest) (*customerdomain.Customer, error) {
	customer, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrCustomerNotFound
	}

	if req.SalesTaxPercent != nil {
		if err := validateTaxRate(req.SalesTaxPercent); err != nil {
			return nil, err
		}
		customer.SalesTaxPercent = req.SalesTaxPercent
	}
	if req.Company != nil {
		customer.Company = strings.TrimSpace(*req.Company)
	}
	if req.Currency != nil {
		customer.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
	}
	if req.ConsolidatedBilling != nil {
		customer.ConsolidatedBilling = *req.ConsolidatedBilling
	}
	if req.SalesTaxName != nil {
		customer.SalesTaxName = *req.SalesTaxName
	}
	if req.PaymentDueDays != nil {
		customer.PaymentDueDays = req.PaymentDueDays
	}
	customer.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error) {
	customer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrCustomerNotFound
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context, req customerdomain.ListCustomerRequest) (*customerdomain.ListCustomerResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, customerdomain.ListCustomerFilter{
		Email:       req.Email,
		Currency:    req.Currency,
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}, pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize})
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(customer *customerdomain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: customer.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	customers := make([]customerdomain.Customer, 0, len(items))
	for _, item := range items {
		customers = append(customers, *item)
	}
	return &customerdomain.ListCustomerResponse{
		PageInfo:  *pageInfo,
		Customers: customers,
	}, nil
}

func validateTaxRate(rate *decimal.Decimal) error {
	if rate == nil {
		return nil
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return customerdomain.ErrInvalidTaxRate
	}
	return nil
}
