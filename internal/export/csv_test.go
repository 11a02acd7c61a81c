package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmill/uptrend/internal/ledger"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestWriteTrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	rows := []TradeRow{
		{Date: "20240110", Time: "20240110100500", Symbol: "600000.SH", Side: "buy",
			Price: 10, Volume: 3500, Amount: 35000, Score: 14, Reason: "buy_score_14"},
		{Date: "20240111", Time: "20240111101500", Symbol: "600000.SH", Side: "sell",
			Price: 10.4, Volume: 3500, Amount: 36400, Reason: "sell_target_profit"},
	}
	require.NoError(t, WriteTrades(path, rows))

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "date,time,symbol,side,price,volume,amount,score,reason", lines[0])
	assert.Contains(t, lines[1], "buy,10.0000,3500,35000.0000,14,buy_score_14")
	assert.Contains(t, lines[2], "sell_target_profit")
}

func TestWriteEquity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity.csv")
	rows := []EquityRow{
		{Date: "20240110", Cash: 930_000, TotalAsset: 1_000_100, Positions: 2},
	}
	require.NoError(t, WriteEquity(path, rows))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "20240110,930000.0000,1000100.0000,2", lines[1])
}

func TestWritePositions_SortedBySymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.csv")
	recs := map[string]ledger.Record{
		"600519.SH": {Symbol: "600519.SH", BuyDate: "20240110", BuyPrice: 1700, BuyVolume: 100},
		"000001.SZ": {Symbol: "000001.SZ", BuyDate: "20240110", BuyPrice: 10, BuyVolume: 3000},
	}
	require.NoError(t, WritePositions(path, recs))

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "000001.SZ"))
	assert.True(t, strings.HasPrefix(lines[2], "600519.SH"))
}
