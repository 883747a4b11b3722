// Package migration creates the billing schema on startup so a fresh
// database is usable without any out-of-band tooling.
package migration

import (
	"gorm.io/gorm"

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

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
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
	)
}
