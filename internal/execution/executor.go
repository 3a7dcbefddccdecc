package execution

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"derivbot/internal/deriv"
	"derivbot/internal/model"
)

// Simulator settles trades without broker calls: each trade wins with a
// fixed probability and pays stake times the payout ratio, otherwise it
// loses the full stake. Useful for demo accounts and dry runs.
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	winRate float64
	payout  float64
	seq     int64
}

// NewSimulator builds a simulated executor. rng may be nil, in which case
// a time-seeded source is used; tests inject a fixed seed.
func NewSimulator(winRate, payout float64, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng, winRate: winRate, payout: payout}
}

// Settle resolves one trade immediately and returns the journal record.
func (s *Simulator) Settle(contractType string, sig model.Signal, stake float64, account model.AccountKind) model.TradeRecord {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	win := s.rng.Float64() < s.winRate
	s.mu.Unlock()

	rec := model.TradeRecord{
		Seq:       seq,
		Type:      contractType,
		Signal:    sig,
		Stake:     stake,
		Outcome:   model.OutcomeLoss,
		Profit:    -stake,
		Timestamp: time.Now().UTC(),
		Account:   account,
	}
	if win {
		rec.Outcome = model.OutcomeWin
		rec.Profit = stake * s.payout
	}

	log.Printf("[exec] sim %s %s stake=%.2f -> %s profit=%.2f",
		contractType, sig, stake, rec.Outcome, rec.Profit)
	return rec
}

// Live places real contracts through the Deriv API: a proposal prices the
// contract, and the proposal response is confirmed with a buy at the asked
// price. Settlement arrives later on the contract stream.
type Live struct {
	api          *deriv.Client
	symbol       string
	contractType string
	currency     string
}

func NewLive(api *deriv.Client, symbol, contractType, currency string) *Live {
	return &Live{api: api, symbol: symbol, contractType: contractType, currency: currency}
}

// RequestProposal asks for pricing on a one-tick contract in the signal's
// direction. The response arrives on the client's OnProposal handler.
func (l *Live) RequestProposal(sig model.Signal, stake float64) {
	ct := l.contractType
	if ct == "" {
		ct = string(sig)
	}
	l.api.Send(deriv.ProposalRequest{
		Proposal:     1,
		Subscribe:    1,
		Amount:       stake,
		Basis:        "stake",
		ContractType: ct,
		Currency:     l.currency,
		Duration:     1,
		DurationUnit: "t",
		Symbol:       l.symbol,
	})
}

// ConfirmBuy purchases a priced proposal at its ask price.
func (l *Live) ConfirmBuy(p deriv.ProposalResult) {
	log.Printf("[exec] buying proposal %s ask=%.2f payout=%.2f", p.ID, p.AskPrice, p.Payout)
	l.api.Send(deriv.BuyRequest{Buy: p.ID, Price: p.AskPrice})
}
