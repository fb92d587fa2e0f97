package validator

import (
	"errors"
	"testing"

	apperrors "github.com/opensqt/gridbot/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBuyRejectsInsufficientBalance(t *testing.T) {
	v := New(Rules{QuantityDecimals: 6})
	_, err := v.ValidateBuy(decimal.NewFromInt(100), decimal.NewFromInt(2), decimal.NewFromInt(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientBalance))
}

func TestValidateBuyRoundsDownToStep(t *testing.T) {
	v := New(Rules{QuantityDecimals: 2})
	qty, err := v.ValidateBuy(decimal.NewFromInt(1000), decimal.RequireFromString("1.239"), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.RequireFromString("1.23")), "got %s", qty)
}

func TestValidateBuyEnforcesMinNotional(t *testing.T) {
	v := New(Rules{QuantityDecimals: 4, MinNotional: decimal.NewFromInt(10)})
	qty, err := v.ValidateBuy(decimal.NewFromInt(1000), decimal.RequireFromString("0.0001"), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, qty.Mul(decimal.NewFromInt(100)).GreaterThanOrEqual(decimal.NewFromInt(10)))
}

func TestValidateSellRejectsInsufficientCrypto(t *testing.T) {
	v := New(Rules{QuantityDecimals: 6})
	_, err := v.ValidateSell(decimal.NewFromInt(1), decimal.NewFromInt(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientCryptoBalance))
}
