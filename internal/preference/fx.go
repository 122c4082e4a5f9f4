package preference

import (
	"github.com/leadrail/leadrail/internal/preference/service"
	"go.uber.org/fx"
)

var Module = fx.Module("preference",
	fx.Provide(service.New),
)
