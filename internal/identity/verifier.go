package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/leadrail/leadrail/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidToken = errors.New("invalid_token")

// Verifier resolves an opaque caller token to a stable account id. The
// rest of the system trusts the returned id and never inspects tokens
// itself.
type Verifier interface {
	Verify(ctx context.Context, token string) (accountID string, err error)
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// StaticVerifier maps pre-shared tokens to account ids from configuration.
// Suitable for service-to-service callers and local development; a real
// IdP sits behind the same interface in production.
type StaticVerifier struct {
	log    *zap.Logger
	tokens map[string]string
}

func New(p Params) Verifier {
	return &StaticVerifier{
		log:    p.Log.Named("identity.verifier"),
		tokens: parseTokens(p.Config.StaticTokens),
	}
}

// parseTokens reads "token:accountID" pairs from a comma-separated list.
func parseTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		token, accountID, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || token == "" || accountID == "" {
			continue
		}
		tokens[token] = accountID
	}
	return tokens
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	accountID, ok := v.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return accountID, nil
}

var Module = fx.Module("identity",
	fx.Provide(New),
)
