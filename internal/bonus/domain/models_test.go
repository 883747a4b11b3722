package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	catalogdomain "github.com/smallbiznis/silver/internal/catalog/domain"
	"github.com/smallbiznis/silver/pkg/dateutil"
)

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestMatchesFeature(t *testing.T) {
	feature := &catalogdomain.MeteredFeature{ProductCode: "api-calls"}

	t.Run("no filters match any feature", func(t *testing.T) {
		b := &Bonus{Enabled: true, Amount: amount(10)}
		assert.True(t, b.MatchesFeature(feature, nil))
	})
	t.Run("product code filter", func(t *testing.T) {
		b := &Bonus{
			Enabled:            true,
			Amount:             amount(10),
			FilterProductCodes: datatypes.JSONSlice[string]{"storage"},
		}
		assert.False(t, b.MatchesFeature(feature, nil))
	})
	t.Run("annotation filter needs a matching annotation", func(t *testing.T) {
		b := &Bonus{
			Enabled:           true,
			Amount:            amount(10),
			FilterAnnotations: datatypes.JSONSlice[string]{"batch"},
		}
		assert.False(t, b.MatchesFeature(feature, nil))
		assert.False(t, b.MatchesFeature(feature, []string{"interactive"}))
		assert.True(t, b.MatchesFeature(feature, []string{"interactive", "batch"}))
	})
}

func TestActiveFor(t *testing.T) {
	subStart := dateutil.Date(2024, time.January, 1)
	period := func(b *Bonus, sm, sd, em, ed int) bool {
		return b.ActiveFor(
			dateutil.Date(2024, time.Month(sm), sd),
			dateutil.Date(2024, time.Month(em), ed),
			subStart)
	}

	t.Run("open window always active", func(t *testing.T) {
		b := &Bonus{Enabled: true, Amount: amount(10)}
		assert.True(t, period(b, 3, 1, 3, 31))
	})
	t.Run("window overlap suffices", func(t *testing.T) {
		b := &Bonus{
			Enabled:   true,
			Amount:    amount(10),
			StartDate: datePtr(2024, time.March, 20),
		}
		assert.True(t, period(b, 3, 1, 3, 31))
		assert.False(t, period(b, 2, 1, 2, 29))
	})
	t.Run("duration from subscription start", func(t *testing.T) {
		count := 1
		interval := dateutil.IntervalMonth
		b := &Bonus{
			Enabled:          true,
			Amount:           amount(10),
			DurationCount:    &count,
			DurationInterval: &interval,
		}
		assert.True(t, period(b, 1, 15, 2, 14))
		assert.False(t, period(b, 2, 1, 2, 29))
	})
}

func TestGrantedUnits(t *testing.T) {
	included := decimal.NewFromInt(200)

	fixed := &Bonus{Amount: amount(50)}
	assert.True(t, fixed.GrantedUnits(included).Equal(decimal.NewFromInt(50)))

	p := decimal.NewFromInt(25)
	percentage := &Bonus{AmountPercentage: &p}
	assert.True(t, percentage.GrantedUnits(included).Equal(decimal.NewFromInt(50)))

	empty := &Bonus{}
	assert.True(t, empty.GrantedUnits(included).IsZero())
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := dateutil.Date(year, month, day)
	return &d
}
