// Package export writes run artifacts as CSV for offline review.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/quantmill/uptrend/internal/ledger"
)

// TradeRow is one fill in the trade log.
type TradeRow struct {
	Date   string
	Time   string
	Symbol string
	Side   string
	Price  float64
	Volume int64
	Amount float64
	Score  int
	Reason string
}

// EquityRow is one end-of-day account snapshot.
type EquityRow struct {
	Date       string
	Cash       float64
	TotalAsset float64
	Positions  int
}

// WriteTrades writes the trade log in fill order.
func WriteTrades(path string, rows []TradeRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"date", "time", "symbol", "side", "price", "volume", "amount", "score", "reason"})
	for _, r := range rows {
		w.Write([]string{r.Date, r.Time, r.Symbol, r.Side, ftoa(r.Price), itoa64(r.Volume),
			ftoa(r.Amount), fmt.Sprintf("%d", r.Score), r.Reason})
	}
	return w.Error()
}

// WriteEquity writes the daily equity curve.
func WriteEquity(path string, rows []EquityRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"date", "cash", "total_asset", "positions"})
	for _, r := range rows {
		w.Write([]string{r.Date, ftoa(r.Cash), ftoa(r.TotalAsset), fmt.Sprintf("%d", r.Positions)})
	}
	return w.Error()
}

// WritePositions writes the open-position snapshot, sorted by symbol.
func WritePositions(path string, recs map[string]ledger.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"symbol", "buy_date", "buy_time", "buy_price", "buy_volume", "buy_amount", "score", "target_profit"})
	syms := make([]string, 0, len(recs))
	for sym := range recs {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	for _, sym := range syms {
		r := recs[sym]
		w.Write([]string{r.Symbol, r.BuyDate, r.BuyTime, ftoa(r.BuyPrice), itoa64(r.BuyVolume),
			ftoa(r.BuyAmount), fmt.Sprintf("%d", r.Score), ftoa(r.TargetProfit)})
	}
	return w.Error()
}

func itoa64(x int64) string { return fmt.Sprintf("%d", x) }
func ftoa(x float64) string { return fmt.Sprintf("%.4f", x) }
