package account

import (
	"github.com/leadrail/leadrail/internal/account/repository"
	"github.com/leadrail/leadrail/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
