package identity

import (
	"context"
	"testing"

	"github.com/leadrail/leadrail/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticVerifier(t *testing.T) {
	v := New(Params{
		Config: config.Config{StaticTokens: "tok-abc:1001, tok-def:1002,broken-pair"},
		Log:    zap.NewNop(),
	})

	accountID, err := v.Verify(context.Background(), "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "1001", accountID)

	accountID, err = v.Verify(context.Background(), "tok-def")
	require.NoError(t, err)
	assert.Equal(t, "1002", accountID)

	_, err = v.Verify(context.Background(), "tok-unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
