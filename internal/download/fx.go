package download

import (
	"github.com/smallbiznis/storefront/internal/download/domain"
	"github.com/smallbiznis/storefront/internal/download/service"
	"github.com/smallbiznis/storefront/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("download.service",
	storage.Module,
	fx.Provide(func(p *storage.S3Presigner) domain.Presigner { return p }),
	fx.Provide(service.New),
)
