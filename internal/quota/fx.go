package quota

import (
	"github.com/leadrail/leadrail/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota",
	fx.Provide(service.New),
)
