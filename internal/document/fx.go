package document

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/silver/internal/document/repository"
	"github.com/smallbiznis/silver/internal/document/service"
)

var Module = fx.Module("document.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
