package gates

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmill/uptrend/internal/broker"
	"github.com/quantmill/uptrend/internal/calendar"
	"github.com/quantmill/uptrend/internal/exits"
	"github.com/quantmill/uptrend/internal/factors"
	"github.com/quantmill/uptrend/internal/ledger"
	"github.com/quantmill/uptrend/internal/series"
)

const day = "20240110"

func score(total int) factors.Score { return factors.Score{Total: total} }

func allTrue(symbols ...string) *series.Bool {
	b := series.NewBool([]string{day})
	for _, s := range symbols {
		b.Set(day, s, true)
	}
	return b
}

func TestBuyCandidates_FunnelAndOrdering(t *testing.T) {
	g := New(10, STTable{}, zerolog.Nop())

	scores := map[string]factors.Score{
		"AAA": score(14), // passes everything
		"BBB": score(14), // same score, tie broken by symbol
		"CCC": score(20), // fails cond1
		"DDD": score(12), // fails cond2
		"EEE": score(8),  // fails score gate
		"FFF": score(16), // fails listing age
	}
	surge := map[string]bool{"AAA": true, "BBB": true, "CCC": true, "EEE": true, "FFF": true}
	cond1 := allTrue("AAA", "BBB", "DDD", "EEE", "FFF")
	listing := allTrue("AAA", "BBB", "CCC", "DDD", "EEE")

	cands, funnel := g.BuyCandidates(day, scores, surge, cond1, listing)

	require.Len(t, cands, 2)
	assert.Equal(t, "AAA", cands[0].Symbol)
	assert.Equal(t, "BBB", cands[1].Symbol)

	assert.Equal(t, 6, funnel.Scanned)
	assert.Equal(t, 5, funnel.PassedCond1)
	assert.Equal(t, 4, funnel.PassedCond2)
	assert.Equal(t, 3, funnel.PassedScore)
	assert.Equal(t, 2, funnel.PassedListing)
	assert.Equal(t, 2, funnel.PassedST)
}

func TestBuyCandidates_ScoreDescending(t *testing.T) {
	g := New(10, STTable{}, zerolog.Nop())
	scores := map[string]factors.Score{"AAA": score(12), "BBB": score(18), "CCC": score(15)}
	surge := map[string]bool{"AAA": true, "BBB": true, "CCC": true}
	all := allTrue("AAA", "BBB", "CCC")

	cands, _ := g.BuyCandidates(day, scores, surge, all, all)
	require.Len(t, cands, 3)
	assert.Equal(t, []string{"BBB", "CCC", "AAA"}, []string{cands[0].Symbol, cands[1].Symbol, cands[2].Symbol})
}

func TestSTTable_Flagged(t *testing.T) {
	st := STTable{"AAA": {{Start: "20240101", End: "20240131"}}}

	assert.True(t, st.Flagged("AAA", "20240110"))
	assert.True(t, st.Flagged("AAA", "20240101")) // inclusive start
	assert.True(t, st.Flagged("AAA", "20240131")) // inclusive end
	assert.False(t, st.Flagged("AAA", "20240201"))
	assert.False(t, st.Flagged("BBB", "20240110"))
}

func TestBuyCandidates_STExclusion(t *testing.T) {
	st := STTable{"AAA": {{Start: "20240101", End: "20240131"}}}
	g := New(10, st, zerolog.Nop())
	scores := map[string]factors.Score{"AAA": score(20)}
	all := allTrue("AAA")

	cands, funnel := g.BuyCandidates(day, scores, map[string]bool{"AAA": true}, all, all)
	assert.Empty(t, cands)
	assert.Equal(t, 1, funnel.PassedListing)
	assert.Equal(t, 0, funnel.PassedST)
}

func TestSellCandidates(t *testing.T) {
	g := New(10, STTable{}, zerolog.Nop())
	cal, err := calendar.New([]string{"20240108", "20240109", day})
	require.NoError(t, err)
	eval := exits.NewEvaluator(exits.DefaultConfig(), cal)

	led := ledger.New(nil, zerolog.Nop())
	led.RecordBuy(ledger.Record{Symbol: "AAA", BuyDate: "20240108", TargetProfit: 0.025})
	led.RecordBuy(ledger.Record{Symbol: "BBB", BuyDate: "20240108", TargetProfit: 0.025})
	led.RecordBuy(ledger.Record{Symbol: "CCC", BuyDate: "20240108", TargetProfit: 0.025})

	holdings := map[string]broker.Holding{
		"AAA": {Symbol: "AAA", Volume: 100, Available: 100, Cost: 10.0},
		"BBB": {Symbol: "BBB", Volume: 100, Available: 100, Cost: 10.0},
		"CCC": {Symbol: "CCC", Volume: 100, Available: 100, Cost: 10.0},
		"DDD": {Symbol: "DDD", Volume: 100, Available: 100, Cost: 10.0}, // untracked
	}
	prices := map[string]float64{
		"AAA": 10.30, // target hit
		"BBB": 10.05, // hold
		"DDD": 9.50,  // untracked stop fallback
		// CCC has no price this tick
	}

	decisions := g.SellCandidates(day, holdings, prices, led, eval)
	require.Len(t, decisions, 2)
	// Sorted by symbol.
	assert.Equal(t, "AAA", decisions[0].Symbol)
	assert.Equal(t, exits.TargetProfit, decisions[0].Decision.Reason)
	assert.Equal(t, "DDD", decisions[1].Symbol)
	assert.Equal(t, exits.StopLossFallback, decisions[1].Decision.Reason)
}
