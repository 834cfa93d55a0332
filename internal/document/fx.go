package document

import (
	"github.com/smallbiznis/invoicedoc/internal/document/lock"
	"github.com/smallbiznis/invoicedoc/internal/document/repository"
	"github.com/smallbiznis/invoicedoc/internal/document/service"
	"go.uber.org/fx"
)

var Module = fx.Module("document.service",
	lock.Module,
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
