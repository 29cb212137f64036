package formance

import (
	"context"
	"fmt"
	"math/big"

	"streamprime-wallet-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MirroredBalance returns the balance the mirror holds for an account.
// Accounts the mirror has never seen report zero.
func (m *Mirror) MirroredBalance(ctx context.Context, accountId string) (decimal.Decimal, error) {
	address := userAddress(accountId)
	zap.L().Debug("Getting mirrored balance", zap.String("address", address))

	resp, err := m.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  m.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	return minorToDecimal(volumeBalance(resp.V2AccountResponse.Data.Volumes, Asset)), nil
}

func userAddress(accountId string) string { return "users:" + accountId }

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, asset string) *big.Int {
	vol, ok := vols[asset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// minorToDecimal converts a minor-unit big.Int to a currency amount.
func minorToDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -models.MinorDigits)
}
