package billing

import (
	"github.com/leadrail/leadrail/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(service.New),
)
