package billinglog

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/silver/internal/billinglog/repository"
)

var Module = fx.Module("billinglog",
	fx.Provide(repository.Provide),
)
