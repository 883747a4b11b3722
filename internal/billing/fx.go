package billing

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/silver/internal/billing/lock"
	"github.com/smallbiznis/silver/internal/billing/service"
)

var Module = fx.Module("billing.service",
	lock.Module,
	fx.Provide(service.NewService),
)
