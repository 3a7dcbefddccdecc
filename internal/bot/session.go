// Package bot wires market data, strategy evaluation, risk checks and
// execution into a single ordered event loop.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"derivbot/config"
	"derivbot/internal/bus"
	"derivbot/internal/deriv"
	"derivbot/internal/digits"
	"derivbot/internal/execution"
	"derivbot/internal/model"
	"derivbot/internal/risk"
	"derivbot/internal/strategy"
)

const (
	shortWindow = 10
	longWindow  = 100

	// Backfill request size on (re)connect.
	historyCount = 100
)

// Hooks are optional observer callbacks, fired from the event loop.
// The metrics wiring in main attaches here so the session itself stays
// free of Prometheus types.
type Hooks struct {
	OnTick       func()
	OnTrade      func(model.TradeRecord)
	OnRiskReject func(reason string)
	OnConfidence func(float64)
}

// event is one unit of work for the session loop. Exactly one field is
// set. Everything the bot reacts to (ticks, balance pushes, UI commands)
// funnels through the same channel, which is what guarantees that a tick
// is fully processed, digits through trade, before the next event.
type event struct {
	tick      *deriv.TickResult
	history   *deriv.HistoryResult
	balance   *deriv.BalanceResult
	authorize *deriv.AuthorizeResult
	accounts  []deriv.AccountEntry
	proposal  *deriv.ProposalResult
	buy       *deriv.BuyResult
	apiErr    *deriv.APIError
	conn      string // "open" | "closed" | "fatal"
	cmd       *command
}

type command struct {
	kind    string // start | stop | reset | switch_account | set_stake
	account model.AccountKind
	stake   float64
}

// Session owns the bot state machine. All state mutation happens on the
// single Run goroutine; public methods only post events.
type Session struct {
	cfg  *config.Config
	api  *deriv.Client
	subs *deriv.Registry

	set     *strategy.Set
	ledger  *risk.Ledger
	gate    *risk.Gate
	sim     *execution.Simulator
	live    *execution.Live // nil in sim mode
	journal *execution.Journal
	out     *bus.FanOut

	Hooks Hooks

	events  chan event
	running atomic.Bool
	stake   float64

	short *digits.History
	long  *digits.History

	// Maps loginids seen in account_list to their kind, for routing
	// balance pushes. Unknown loginids fall back to the VRT prefix rule.
	loginKinds map[string]model.AccountKind

	// Serializes the live proposal/buy flow: at most one open proposal.
	pendingProposal bool
}

// New builds a session. live may be nil, which keeps every trade in the
// simulator; journal may be nil to skip persistence.
func New(cfg *config.Config, api *deriv.Client, subs *deriv.Registry, set *strategy.Set,
	ledger *risk.Ledger, sim *execution.Simulator, live *execution.Live,
	journal *execution.Journal, out *bus.FanOut) *Session {

	s := &Session{
		cfg:        cfg,
		api:        api,
		subs:       subs,
		set:        set,
		ledger:     ledger,
		sim:        sim,
		live:       live,
		journal:    journal,
		out:        out,
		events:     make(chan event, 256),
		stake:      cfg.StakeAmount,
		short:      digits.NewHistory(shortWindow),
		long:       digits.NewHistory(longWindow),
		loginKinds: make(map[string]model.AccountKind),
	}
	s.gate = risk.NewGate(risk.Settings{
		RiskPerTrade:        cfg.RiskPerTrade,
		MaxDailyLoss:        cfg.MaxDailyLoss,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	}, ledger, s.Running)

	// Balance pushes bypass Handlers; route them into the loop so the
	// ledger sees every venue balance change.
	api.RegisterBalanceHandler(func(b deriv.BalanceResult) {
		s.events <- event{balance: &b}
	})
	return s
}

// Handlers returns the deriv callbacks that feed this session. Wire them
// into the client before connecting.
func (s *Session) Handlers() deriv.Handlers {
	return deriv.Handlers{
		OnOpen:         func() { s.events <- event{conn: "open"} },
		OnClose:        func() { s.events <- event{conn: "closed"} },
		OnFatal:        func() { s.events <- event{conn: "fatal"} },
		OnError:        func(e deriv.APIError) { s.events <- event{apiErr: &e} },
		OnAuthorize:    func(a deriv.AuthorizeResult) { s.events <- event{authorize: &a} },
		OnAccountList:  func(l []deriv.AccountEntry) { s.events <- event{accounts: l} },
		OnTick:         func(t deriv.TickResult) { s.events <- event{tick: &t} },
		OnHistory:      func(h deriv.HistoryResult) { s.events <- event{history: &h} },
		OnProposal:     func(p deriv.ProposalResult) { s.events <- event{proposal: &p} },
		OnBuy:          func(b deriv.BuyResult) { s.events <- event{buy: &b} },
		OnSubscription: func(mt, id string) { s.subs.Ack(mt, id) },
	}
}

// Running reports whether trading is enabled. The risk gate reads this.
func (s *Session) Running() bool { return s.running.Load() }

// Gate exposes the session's risk gate, mainly for settings updates.
func (s *Session) Gate() *risk.Gate { return s.gate }

// Start enables trading.
func (s *Session) Start() { s.events <- event{cmd: &command{kind: "start"}} }

// Stop disables trading. Streams stay up; only execution is gated off.
func (s *Session) Stop() { s.events <- event{cmd: &command{kind: "stop"}} }

// Reset zeroes the active account's statistics and clears the digit windows.
func (s *Session) Reset() { s.events <- event{cmd: &command{kind: "reset"}} }

// SwitchAccount makes kind the active account and resets its stats.
func (s *Session) SwitchAccount(kind model.AccountKind) {
	s.events <- event{cmd: &command{kind: "switch_account", account: kind}}
}

// SetStake changes the per-trade stake.
func (s *Session) SetStake(amount float64) {
	s.events <- event{cmd: &command{kind: "set_stake", stake: amount}}
}

// Run processes events until ctx is cancelled. It is the only goroutine
// that touches session state.
func (s *Session) Run(ctx context.Context) {
	s.publishStatus("stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev event) {
	switch {
	case ev.tick != nil:
		s.handleTick(*ev.tick)
	case ev.history != nil:
		s.handleHistory(*ev.history)
	case ev.balance != nil:
		s.handleBalance(*ev.balance)
	case ev.authorize != nil:
		s.handleAuthorize(*ev.authorize)
	case ev.accounts != nil:
		s.handleAccountList(ev.accounts)
	case ev.proposal != nil:
		s.handleProposal(*ev.proposal)
	case ev.buy != nil:
		s.handleBuy(*ev.buy)
	case ev.apiErr != nil:
		s.handleAPIError(*ev.apiErr)
	case ev.conn != "":
		s.handleConn(ev.conn)
	case ev.cmd != nil:
		s.handleCommand(*ev.cmd)
	}
}

func (s *Session) handleConn(state string) {
	switch state {
	case "open":
		s.activity(model.SevSuccess, "connected to Deriv")
		s.publishStatus("connected")
		if s.cfg.APIToken != "" {
			s.api.Send(deriv.AuthorizeRequest{Authorize: s.cfg.APIToken})
		} else {
			// Public ticks only; no account streams without a token.
			s.subscribeMarketData()
		}
	case "closed":
		s.activity(model.SevWarning, "connection lost, reconnecting")
		s.publishStatus("disconnected")
	case "fatal":
		// Reconnect budget exhausted. Fail closed.
		s.running.Store(false)
		s.activity(model.SevError, "connection lost permanently, trading stopped")
		s.publishStatus("stopped")
	}
}

func (s *Session) handleAuthorize(a deriv.AuthorizeResult) {
	kind := kindOfLogin(a.LoginID, a.IsVirtual == 1)
	s.loginKinds[a.LoginID] = kind
	s.ledger.ApplyBalance(kind, a.LoginID, a.Balance, a.Currency)
	s.activity(model.SevInfo, fmt.Sprintf("authorized as %s (%s)", a.LoginID, kind))
	s.publishAccount()

	s.api.Send(deriv.AccountListRequest{AccountList: 1})
	s.subs.SubscribeBalance("all")
	s.subscribeMarketData()
}

// subscribeMarketData backfills recent digits, then joins the live stream.
// Both requests ride the send queue, so this is safe mid-reconnect.
func (s *Session) subscribeMarketData() {
	s.api.Send(deriv.TicksHistoryRequest{
		TicksHistory: s.cfg.Symbol,
		Count:        historyCount,
		End:          "latest",
		Style:        "ticks",
	})
	s.subs.SubscribeTicks(s.cfg.Symbol)
}

func (s *Session) handleAccountList(entries []deriv.AccountEntry) {
	for _, e := range entries {
		s.loginKinds[e.LoginID] = kindOfLogin(e.LoginID, e.IsVirtual == 1)
	}
	log.Printf("[bot] account list: %d accounts", len(entries))
}

func (s *Session) handleBalance(b deriv.BalanceResult) {
	kind, ok := s.loginKinds[b.LoginID]
	if !ok {
		kind = kindOfLogin(b.LoginID, false)
	}
	s.ledger.ApplyBalance(kind, b.LoginID, b.Balance, b.Currency)
	if kind == s.ledger.ActiveKind() {
		s.publishAccount()
	}
}

// handleHistory seeds the digit windows from the backfill. Prices arrive
// oldest first, so pushing in order leaves the newest digit at the front.
func (s *Session) handleHistory(h deriv.HistoryResult) {
	s.short.Reset()
	s.long.Reset()
	for _, p := range h.Prices {
		d := model.LastDigit(p.String())
		if d < 0 {
			continue
		}
		s.short.Push(d)
		s.long.Push(d)
	}
	log.Printf("[bot] backfilled %d ticks", len(h.Prices))
	s.publishDigits()
}

func (s *Session) handleTick(t deriv.TickResult) {
	if s.Hooks.OnTick != nil {
		s.Hooks.OnTick()
	}

	tick := model.Tick{Symbol: t.Symbol, Quote: t.Quote.String(), Epoch: t.Epoch}
	d := tick.LastDigit()
	if d < 0 {
		log.Printf("[bot] malformed quote %q, skipping", tick.Quote)
		return
	}

	s.short.Push(d)
	s.long.Push(d)
	s.publishDigits()

	pred, _ := s.set.Evaluate(s.long)
	if s.Hooks.OnConfidence != nil {
		s.Hooks.OnConfidence(pred.Confidence)
	}
	s.out.Publish(model.Update{Kind: model.UpdatePrediction, Prediction: &pred})

	s.maybeTrade(pred)
}

// maybeTrade runs the full decision chain for one tick: at most one trade
// attempt, and any failed check ends it.
func (s *Session) maybeTrade(pred model.Prediction) {
	if !s.running.Load() {
		return
	}
	if !pred.Actionable() {
		return
	}
	if !s.gate.MeetsConfidence(pred.Confidence) {
		return
	}

	stake := s.stake
	if ok, reason := s.gate.CanTrade(stake); !ok {
		if s.Hooks.OnRiskReject != nil {
			s.Hooks.OnRiskReject(reason)
		}
		s.activity(model.SevWarning, "trade blocked: "+reason)
		return
	}

	if s.live != nil {
		if s.pendingProposal {
			return
		}
		s.pendingProposal = true
		s.live.RequestProposal(pred.Signal, stake)
		return
	}

	rec := s.sim.Settle(s.cfg.ContractType, pred.Signal, stake, s.ledger.ActiveKind())
	s.settle(rec)
}

// handleAPIError surfaces a venue error. When a proposal is in flight the
// error settles it, so the next qualifying tick can trade again.
func (s *Session) handleAPIError(e deriv.APIError) {
	if s.pendingProposal {
		s.pendingProposal = false
		s.subs.Forget(deriv.KindProposal)
	}
	s.activity(model.SevError, fmt.Sprintf("API error %s: %s", e.Code, e.Message))
}

func (s *Session) handleProposal(p deriv.ProposalResult) {
	if s.live == nil || !s.pendingProposal {
		return
	}
	s.live.ConfirmBuy(p)
}

func (s *Session) handleBuy(b deriv.BuyResult) {
	s.pendingProposal = false
	s.subs.Forget(deriv.KindProposal)
	s.activity(model.SevInfo, fmt.Sprintf("bought contract %d for %.2f", b.ContractID, b.BuyPrice))
}

func (s *Session) settle(rec model.TradeRecord) {
	acct, stats := s.ledger.Settle(rec.Profit, rec.Outcome == model.OutcomeWin)

	if s.journal != nil {
		if err := s.journal.Record(rec); err != nil {
			log.Printf("[bot] journal write failed: %v", err)
		}
	}
	if s.Hooks.OnTrade != nil {
		s.Hooks.OnTrade(rec)
	}

	s.out.Publish(model.Update{Kind: model.UpdateTrade, Trade: &rec})
	s.out.Publish(model.Update{Kind: model.UpdateAccount, Account: &acct, Stats: &stats})

	sev := model.SevSuccess
	if rec.Outcome == model.OutcomeLoss {
		sev = model.SevError
	}
	s.activity(sev, fmt.Sprintf("%s %s stake %.2f: %s (%+.2f)",
		rec.Type, rec.Signal, rec.Stake, rec.Outcome, rec.Profit))
}

func (s *Session) handleCommand(cmd command) {
	switch cmd.kind {
	case "start":
		if s.running.Swap(true) {
			return
		}
		s.activity(model.SevSuccess, "bot started")
		s.publishStatus("running")
	case "stop":
		if !s.running.Swap(false) {
			return
		}
		s.activity(model.SevInfo, "bot stopped")
		s.publishStatus("stopped")
	case "reset":
		s.ledger.ResetStats()
		s.short.Reset()
		s.long.Reset()
		s.activity(model.SevInfo, "session reset")
		s.publishAccount()
		s.publishDigits()
	case "switch_account":
		if cmd.account != model.AccountDemo && cmd.account != model.AccountReal {
			return
		}
		s.ledger.SetActive(cmd.account)
		s.activity(model.SevInfo, fmt.Sprintf("switched to %s account", cmd.account))
		s.publishAccount()
	case "set_stake":
		if cmd.stake <= 0 {
			return
		}
		s.stake = cmd.stake
		s.activity(model.SevInfo, fmt.Sprintf("stake set to %.2f", cmd.stake))
	}
}

func (s *Session) publishDigits() {
	snap := model.DigitsSnapshot{
		Last:     s.short.Front(),
		Window:   s.short.Snapshot(),
		Percents: s.long.Counts(),
	}
	s.out.Publish(model.Update{Kind: model.UpdateDigits, Digits: &snap})
}

func (s *Session) publishAccount() {
	acct := s.ledger.Active()
	stats := s.ledger.Stats()
	s.out.Publish(model.Update{Kind: model.UpdateAccount, Account: &acct, Stats: &stats})
}

func (s *Session) publishStatus(status string) {
	s.out.Publish(model.Update{Kind: model.UpdateStatus, Status: status})
}

func (s *Session) activity(sev model.Severity, msg string) {
	log.Printf("[bot] %s", msg)
	a := model.Activity{Time: time.Now().UTC(), Severity: sev, Message: msg}
	s.out.Publish(model.Update{Kind: model.UpdateActivity, Activity: &a})
}

// kindOfLogin classifies a loginid. Virtual flags win when present;
// otherwise Deriv demo loginids start with "VRT".
func kindOfLogin(loginID string, virtual bool) model.AccountKind {
	if virtual || strings.HasPrefix(loginID, "VRT") {
		return model.AccountDemo
	}
	return model.AccountReal
}
