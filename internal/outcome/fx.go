package outcome

import (
	"github.com/leadrail/leadrail/internal/outcome/service"
	"go.uber.org/fx"
)

var Module = fx.Module("outcome",
	fx.Provide(service.New),
)
