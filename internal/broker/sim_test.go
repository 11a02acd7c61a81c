package broker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSim() *Sim {
	return NewSim(DefaultSimConfig(), zerolog.Nop())
}

func TestSim_BuyDebitsCashWithCommission(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	s.AdvanceDay("20240110")

	id, err := s.Buy(ctx, "", "600000.SH", 10, 3500, "t", "r")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	cash, _ := s.Cash(ctx, "")
	assert.InDelta(t, 1_000_000-35_000-10.5, cash, 1e-9)

	holdings, _ := s.Holdings(ctx, "")
	h := holdings["600000.SH"]
	assert.Equal(t, int64(3500), h.Volume)
	assert.Equal(t, int64(0), h.Available, "same-day shares locked")
	assert.InDelta(t, 35_010.5/3500, h.Cost, 1e-9)
}

func TestSim_MinCommissionFloor(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	s.AdvanceDay("20240110")

	// 1000 at 1.0: 0.03% commission would be 0.30, floored to 5.
	_, err := s.Buy(ctx, "", "AAA", 1, 1000, "t", "r")
	require.NoError(t, err)
	cash, _ := s.Cash(ctx, "")
	assert.InDelta(t, 1_000_000-1000-5, cash, 1e-9)
}

func TestSim_RejectsOverdraftAndBadOrders(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	s.AdvanceDay("20240110")

	_, err := s.Buy(ctx, "", "AAA", 10, 200_000, "t", "r") // 2M > 1M cash
	assert.ErrorIs(t, err, ErrOrderRejected)

	_, err = s.Buy(ctx, "", "AAA", -1, 100, "t", "r")
	assert.ErrorIs(t, err, ErrOrderRejected)

	_, err = s.Sell(ctx, "", "AAA", 10, 100, "t", "r") // nothing held
	assert.ErrorIs(t, err, ErrOrderRejected)
}

func TestSim_TPlusOneAvailability(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	s.AdvanceDay("20240110")
	_, err := s.Buy(ctx, "", "AAA", 10, 1000, "t", "r")
	require.NoError(t, err)

	// Same day: nothing sellable.
	_, err = s.Sell(ctx, "", "AAA", 10, 1000, "t", "r")
	assert.ErrorIs(t, err, ErrOrderRejected)

	s.AdvanceDay("20240111")
	holdings, _ := s.Holdings(ctx, "")
	assert.Equal(t, int64(1000), holdings["AAA"].Available)

	_, err = s.Sell(ctx, "", "AAA", 10.5, 1000, "t", "r")
	require.NoError(t, err)
	holdings, _ = s.Holdings(ctx, "")
	assert.NotContains(t, holdings, "AAA")
}

func TestSim_SellCreditsNetOfFees(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	s.AdvanceDay("20240110")
	_, err := s.Buy(ctx, "", "AAA", 10, 1000, "t", "r")
	require.NoError(t, err)
	s.AdvanceDay("20240111")

	cashBefore, _ := s.Cash(ctx, "")
	_, err = s.Sell(ctx, "", "AAA", 10, 1000, "t", "r")
	require.NoError(t, err)
	cashAfter, _ := s.Cash(ctx, "")

	// 10k gross, minus 5 floored commission and 5 stamp tax.
	assert.InDelta(t, cashBefore+10_000-5-5, cashAfter, 1e-9)
}

func TestSim_TotalAssetUsesMarks(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	s.AdvanceDay("20240110")
	_, err := s.Buy(ctx, "", "AAA", 10, 1000, "t", "r")
	require.NoError(t, err)

	s.MarkPrices(map[string]float64{"AAA": 11, "ignored": -1})
	total, _ := s.TotalAsset(ctx, "")
	cash, _ := s.Cash(ctx, "")
	assert.InDelta(t, cash+11_000, total, 1e-9)

	holdings, _ := s.Holdings(ctx, "")
	assert.InDelta(t, (11-holdings["AAA"].Cost)*1000, holdings["AAA"].FloatPnL, 1e-9)
}

func TestSim_PartialSellScalesCost(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()
	s.AdvanceDay("20240110")
	_, err := s.Buy(ctx, "", "AAA", 10, 1000, "t", "r")
	require.NoError(t, err)
	holdings, _ := s.Holdings(ctx, "")
	unitCost := holdings["AAA"].Cost

	s.AdvanceDay("20240111")
	_, err = s.Sell(ctx, "", "AAA", 10, 400, "t", "r")
	require.NoError(t, err)

	holdings, _ = s.Holdings(ctx, "")
	h := holdings["AAA"]
	assert.Equal(t, int64(600), h.Volume)
	assert.InDelta(t, unitCost, h.Cost, 1e-9, "unit cost unchanged by a partial sell")
}
