package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	billinglogdomain "github.com/smallbiznis/silver/internal/billinglog/domain"
)

type repo struct{}

func Provide() billinglogdomain.Repository {
	return &repo{}
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, log *billinglogdomain.BillingLog) error {
	return db.WithContext(ctx).Create(log).Error
}

func (r *repo) LastFor(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*billinglogdomain.BillingLog, error) {
	var log billinglogdomain.BillingLog
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM billing_logs
		 WHERE subscription_id = ?
		 ORDER BY billing_date DESC, id DESC
		 LIMIT 1`,
		subscriptionID,
	).Scan(&log).Error
	if err != nil {
		return nil, err
	}
	if log.ID == 0 {
		return nil, nil
	}
	return &log, nil
}

func (r *repo) CountFor(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM billing_logs WHERE subscription_id = ?`,
		subscriptionID,
	).Scan(&count).Error
	return count, err
}
