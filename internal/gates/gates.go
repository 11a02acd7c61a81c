// Package gates fuses the factor outputs into actionable signals: the buy
// funnel (price-action gate, volume-surge gate, score threshold, listing
// age, ST exclusion) and the sell-side delegation to the exit evaluator.
package gates

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/broker"
	"github.com/quantmill/uptrend/internal/exits"
	"github.com/quantmill/uptrend/internal/factors"
	"github.com/quantmill/uptrend/internal/ledger"
	"github.com/quantmill/uptrend/internal/series"
)

// Candidate is one qualifying symbol with its score.
type Candidate struct {
	Symbol string
	Score  int
	Detail factors.ScoreDetail
}

// Funnel counts how many symbols survived each buy gate, cumulatively.
// The counts are a functional requirement: they reconstruct why a trade
// did or did not happen.
type Funnel struct {
	Scanned       int
	PassedCond1   int
	PassedCond2   int
	PassedScore   int
	PassedListing int
	PassedST      int
}

// STPeriod is one special-treatment flag window, inclusive on both ends.
type STPeriod struct {
	Start string `yaml:"start"` // YYYYMMDD
	End   string `yaml:"end"`
}

// STTable maps symbols to their historical ST windows. Symbols under a
// flag on the evaluation date are excluded from the buy list.
type STTable map[string][]STPeriod

// Flagged reports whether the symbol is ST-flagged on the date.
func (t STTable) Flagged(symbol, date string) bool {
	for _, p := range t[symbol] {
		if p.Start <= date && date <= p.End {
			return true
		}
	}
	return false
}

// Gate evaluates buy and sell candidates for one strategy instance.
type Gate struct {
	minScore int
	st       STTable
	log      zerolog.Logger
}

// New builds a gate with the minimum qualifying score.
func New(minScore int, st STTable, log zerolog.Logger) *Gate {
	return &Gate{minScore: minScore, st: st, log: log.With().Str("component", "gates").Logger()}
}

// BuyCandidates returns the symbols passing all four gates, sorted by
// score descending with symbol code breaking ties, plus the funnel counts.
// Ordering is deterministic so a rerun reproduces the same buy sequence.
func (g *Gate) BuyCandidates(date string, scores map[string]factors.Score, surge map[string]bool,
	cond1, listing *series.Bool) ([]Candidate, Funnel) {

	var funnel Funnel
	funnel.Scanned = len(scores)
	var out []Candidate
	for sym, score := range scores {
		if !cond1.At(date, sym) {
			continue
		}
		funnel.PassedCond1++
		if !surge[sym] {
			continue
		}
		funnel.PassedCond2++
		if score.Total < g.minScore {
			continue
		}
		funnel.PassedScore++
		if !listing.At(date, sym) {
			continue
		}
		funnel.PassedListing++
		if g.st.Flagged(sym, date) {
			g.log.Debug().Str("symbol", sym).Str("date", date).Msg("buy candidate dropped, ST flag")
			continue
		}
		funnel.PassedST++
		out = append(out, Candidate{Symbol: sym, Score: score.Total, Detail: score.Detail})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, funnel
}

// SellDecision pairs an exit decision with its symbol.
type SellDecision struct {
	Symbol   string
	Decision exits.Decision
}

// SellCandidates checks every held symbol with a known current price
// against the exit ladder. Holdings without ledger metadata get the
// evaluator's conservative fallback, flagged by distinct reason codes.
func (g *Gate) SellCandidates(date string, holdings map[string]broker.Holding,
	prices map[string]float64, led *ledger.Ledger, eval *exits.Evaluator) []SellDecision {

	var out []SellDecision
	for sym, holding := range holdings {
		price, known := prices[sym]
		if !known || price <= 0 {
			g.log.Debug().Str("symbol", sym).Str("date", date).Msg("no current price, exit check skipped")
			continue
		}
		pos := exits.Position{Symbol: sym, CostBasis: holding.Cost}
		if rec, tracked := led.Get(sym); tracked {
			pos.HasRecord = true
			pos.BuyDate = rec.BuyDate
			pos.TargetProfit = rec.TargetProfit
		}
		decision := eval.Check(pos, price, date)
		if decision.Exit {
			out = append(out, SellDecision{Symbol: sym, Decision: decision})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
