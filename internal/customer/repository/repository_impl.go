package repository

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	customerdomain "github.com/smallbiznis/silver/internal/customer/domain"
	"github.com/smallbiznis/silver/pkg/db/pagination"
)

type repo struct{}

func Provide() customerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *customerdomain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, customer *customerdomain.Customer) error {
	return db.WithContext(ctx).Save(customer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*customerdomain.Customer, error) {
	var customer customerdomain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM customers WHERE id = ?`,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*customerdomain.Customer, error) {
	var customer customerdomain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM customers WHERE email = ? ORDER BY id ASC LIMIT 1`,
		email,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter customerdomain.ListCustomerFilter, page pagination.Pagination) ([]*customerdomain.Customer, error) {
	stmt := db.WithContext(ctx).Model(&customerdomain.Customer{})
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if filter.Currency != "" {
		stmt = stmt.Where("currency = ?", filter.Currency)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		if cursor.ID != "" {
			lastID, err := strconv.ParseInt(cursor.ID, 10, 64)
			if err != nil {
				return nil, err
			}
			stmt = stmt.Where("id > ?", lastID)
		}
	}
	if page.PageSize > 0 {
		// One extra row tells the caller more pages remain.
		stmt = stmt.Limit(page.PageSize + 1)
	}

	var customers []*customerdomain.Customer
	if err := stmt.Order("id asc").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}
