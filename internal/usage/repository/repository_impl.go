package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	usagedomain "github.com/smallbiznis/silver/internal/usage/domain"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, log *usagedomain.UnitsLog) error {
	return db.WithContext(ctx).Create(log).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, log *usagedomain.UnitsLog) error {
	return db.WithContext(ctx).Save(log).Error
}

func (r *repo) FindBucket(ctx context.Context, db *gorm.DB, featureID, subscriptionID snowflake.ID, start, end time.Time, annotation string) (*usagedomain.UnitsLog, error) {
	var log usagedomain.UnitsLog
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM metered_feature_units_logs
		 WHERE metered_feature_id = ?
		   AND subscription_id = ?
		   AND start_date = ?
		   AND end_date = ?
		   AND annotation = ?`,
		featureID,
		subscriptionID,
		start,
		end,
		annotation,
	).Scan(&log).Error
	if err != nil {
		return nil, err
	}
	if log.ID == 0 {
		return nil, nil
	}
	return &log, nil
}

func (r *repo) ListForPeriod(ctx context.Context, db *gorm.DB, subscriptionID, featureID snowflake.ID, start, end time.Time) ([]usagedomain.UnitsLog, error) {
	var logs []usagedomain.UnitsLog
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM metered_feature_units_logs
		 WHERE subscription_id = ?
		   AND metered_feature_id = ?
		   AND start_date >= ?
		   AND end_date <= ?
		 ORDER BY start_date ASC, id ASC`,
		subscriptionID,
		featureID,
		start,
		end,
	).Scan(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) TruncateOpenBuckets(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, day time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE metered_feature_units_logs
		 SET end_date = ?, updated_at = ?
		 WHERE subscription_id = ?
		   AND start_date <= ?
		   AND end_date > ?`,
		day,
		time.Now().UTC(),
		subscriptionID,
		day,
		day,
	).Error
}
