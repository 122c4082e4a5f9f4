package campaign

import (
	"github.com/leadrail/leadrail/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign",
	fx.Provide(service.New),
)
