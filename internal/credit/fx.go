package credit

import (
	"github.com/leadrail/leadrail/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit",
	fx.Provide(service.New),
)
