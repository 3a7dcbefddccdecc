package bot

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"derivbot/config"
	"derivbot/internal/bus"
	"derivbot/internal/deriv"
	"derivbot/internal/digits"
	"derivbot/internal/execution"
	"derivbot/internal/model"
	"derivbot/internal/risk"
	"derivbot/internal/strategy"
)

type stubPredictor struct {
	sig  model.Signal
	conf float64
}

func (p stubPredictor) Name() string    { return "stub" }
func (p stubPredictor) Weight() float64 { return 1 }
func (p stubPredictor) Predict(*digits.History) model.Prediction {
	return model.Prediction{Signal: p.sig, Confidence: p.conf}
}

type fixture struct {
	session *Session
	api     *deriv.Client
	ledger  *risk.Ledger
	updates <-chan model.Update
	cancel  context.CancelFunc
}

func newFixture(t *testing.T, pred stubPredictor, winRate float64) *fixture {
	return newFixtureURL(t, pred, winRate, "ws://unused")
}

func newFixtureURL(t *testing.T, pred stubPredictor, winRate float64, url string) *fixture {
	t.Helper()

	cfg := &config.Config{
		Symbol:              "R_100",
		ContractType:        "DIGITMATCH",
		StakeAmount:         1,
		PayoutRatio:         0.95,
		RiskPerTrade:        0.02,
		MaxDailyLoss:        0.1,
		ConfidenceThreshold: 0.8,
		SimMode:             true,
	}

	set := strategy.NewSet()
	set.Register(pred)

	ledger := risk.NewLedger()
	ledger.ApplyBalance(model.AccountDemo, "VRTC100", 100, "USD")

	out := bus.New(256)
	updates := out.Subscribe()

	api := deriv.NewClient(url, deriv.Handlers{})
	subs := deriv.NewRegistry(api)
	sim := execution.NewSimulator(winRate, cfg.PayoutRatio, nil)

	s := New(cfg, api, subs, set, ledger, sim, nil, nil, out)
	api.SetHandlers(s.Handlers())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	return &fixture{session: s, api: api, ledger: ledger, updates: updates, cancel: cancel}
}

// waitFor drains updates until one of the given kind arrives.
func (f *fixture) waitFor(t *testing.T, kind model.UpdateKind) model.Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-f.updates:
			if u.Kind == kind {
				return u
			}
		case <-deadline:
			t.Fatalf("no %s update arrived", kind)
		}
	}
}

func tick(quote string) deriv.TickResult {
	return deriv.TickResult{Symbol: "R_100", Quote: json.Number(quote), Epoch: time.Now().Unix()}
}

func TestSession_TickProducesDigitsAndPrediction(t *testing.T) {
	f := newFixture(t, stubPredictor{sig: model.SignalNeutral, conf: 0}, 1)
	defer f.cancel()

	f.session.Handlers().OnTick(tick("1.2343"))

	du := f.waitFor(t, model.UpdateDigits)
	if du.Digits.Last != 3 {
		t.Errorf("Last = %d, want 3 (trailing digit of 1.2343)", du.Digits.Last)
	}
	if len(du.Digits.Window) != 1 || du.Digits.Window[0] != 3 {
		t.Errorf("Window = %v, want [3]", du.Digits.Window)
	}

	pu := f.waitFor(t, model.UpdatePrediction)
	if pu.Prediction.Signal != model.SignalNeutral {
		t.Errorf("Signal = %s, want NEUTRAL", pu.Prediction.Signal)
	}
}

func TestSession_WinningTradeFlowsThroughLedger(t *testing.T) {
	f := newFixture(t, stubPredictor{sig: model.SignalCall, conf: 95}, 1)
	defer f.cancel()

	f.session.Start()
	f.waitFor(t, model.UpdateStatus)

	f.session.Handlers().OnTick(tick("1.2343"))

	tu := f.waitFor(t, model.UpdateTrade)
	if tu.Trade.Outcome != model.OutcomeWin || tu.Trade.Profit != 0.95 {
		t.Errorf("trade = %+v, want win of 0.95", tu.Trade)
	}
	if tu.Trade.Signal != model.SignalCall || tu.Trade.Stake != 1 {
		t.Errorf("trade = %+v, want CALL stake 1", tu.Trade)
	}

	au := f.waitFor(t, model.UpdateAccount)
	if au.Stats.TotalTrades != 1 || au.Stats.Streak != 1 {
		t.Errorf("stats = %+v, want one winning trade", au.Stats)
	}
	if math.Abs(au.Account.Balance-100.95) > 1e-9 {
		t.Errorf("balance = %v, want 100.95", au.Account.Balance)
	}
}

func TestSession_NoTradeWhileStopped(t *testing.T) {
	f := newFixture(t, stubPredictor{sig: model.SignalCall, conf: 95}, 1)
	defer f.cancel()

	f.session.Handlers().OnTick(tick("1.2343"))
	f.waitFor(t, model.UpdatePrediction)

	// Drain briefly; a trade update would be a gate failure.
	select {
	case u := <-f.updates:
		if u.Kind == model.UpdateTrade {
			t.Fatal("trade executed while bot stopped")
		}
	case <-time.After(100 * time.Millisecond):
	}
	if got := f.ledger.Stats().TotalTrades; got != 0 {
		t.Errorf("TotalTrades = %d, want 0", got)
	}
}

func TestSession_LowConfidenceBlocksTrade(t *testing.T) {
	f := newFixture(t, stubPredictor{sig: model.SignalCall, conf: 50}, 1)
	defer f.cancel()

	f.session.Start()
	f.session.Handlers().OnTick(tick("1.2343"))
	f.waitFor(t, model.UpdatePrediction)

	time.Sleep(100 * time.Millisecond)
	if got := f.ledger.Stats().TotalTrades; got != 0 {
		t.Errorf("TotalTrades = %d, want 0 at confidence 50 vs threshold 80", got)
	}
}

func TestSession_RiskRejectionRaisesWarning(t *testing.T) {
	f := newFixture(t, stubPredictor{sig: model.SignalCall, conf: 95}, 1)
	defer f.cancel()

	rejected := make(chan string, 1)
	f.session.Hooks.OnRiskReject = func(reason string) { rejected <- reason }

	f.session.Start()
	f.session.SetStake(5) // 5 > 100 * 0.02
	f.session.Handlers().OnTick(tick("1.2343"))

	select {
	case reason := <-rejected:
		if reason == "" {
			t.Error("empty rejection reason")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("risk gate never rejected the oversized stake")
	}
	if got := f.ledger.Stats().TotalTrades; got != 0 {
		t.Errorf("TotalTrades = %d, want 0", got)
	}
}

func TestSession_HistoryBackfillSeedsWindows(t *testing.T) {
	f := newFixture(t, stubPredictor{sig: model.SignalNeutral, conf: 0}, 1)
	defer f.cancel()

	h := deriv.HistoryResult{
		Prices: []json.Number{"1.2341", "1.2342", "1.2343"},
		Times:  []int64{1, 2, 3},
	}
	f.session.Handlers().OnHistory(h)

	du := f.waitFor(t, model.UpdateDigits)
	// Newest price last in the backfill ends up at the front.
	want := []int{3, 2, 1}
	if len(du.Digits.Window) != 3 {
		t.Fatalf("Window = %v, want 3 digits", du.Digits.Window)
	}
	for i, d := range want {
		if du.Digits.Window[i] != d {
			t.Errorf("Window[%d] = %d, want %d", i, du.Digits.Window[i], d)
		}
	}
}

func TestSession_MalformedQuoteIsSkipped(t *testing.T) {
	f := newFixture(t, stubPredictor{sig: model.SignalCall, conf: 95}, 1)
	defer f.cancel()

	f.session.Start()
	f.session.Handlers().OnTick(tick("bogus."))

	time.Sleep(100 * time.Millisecond)
	if got := f.ledger.Stats().TotalTrades; got != 0 {
		t.Errorf("TotalTrades = %d after malformed quote, want 0", got)
	}
}

func TestSession_SwitchAccountResetsStats(t *testing.T) {
	f := newFixture(t, stubPredictor{sig: model.SignalCall, conf: 95}, 1)
	defer f.cancel()

	f.session.Start()
	f.session.Handlers().OnTick(tick("1.2343"))
	f.waitFor(t, model.UpdateTrade)

	f.session.SwitchAccount(model.AccountReal)
	au := f.waitFor(t, model.UpdateAccount)
	for au.Account.Kind != model.AccountReal {
		au = f.waitFor(t, model.UpdateAccount)
	}
	if au.Stats.TotalTrades != 0 {
		t.Errorf("stats after switch = %+v, want zeroed", au.Stats)
	}
}

// TestSession_BalancePushRoutesByLogin drives a balance push through a
// real socket so the whole route is covered: client demux, registered
// balance consumer, event loop, ledger, account update.
func TestSession_BalancePushRoutesByLogin(t *testing.T) {
	push := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		for msg := range push {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()
	defer close(push)

	f := newFixtureURL(t, stubPredictor{sig: model.SignalNeutral, conf: 0}, 1,
		"ws"+strings.TrimPrefix(srv.URL, "http"))
	defer f.cancel()
	defer f.api.Close()

	if err := f.api.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	f.session.Handlers().OnAccountList([]deriv.AccountEntry{
		{LoginID: "VRTC100", Currency: "USD", IsVirtual: 1},
		{LoginID: "CR200", Currency: "USD", IsVirtual: 0},
	})
	push <- `{"msg_type":"balance","balance":{"loginid":"VRTC100","balance":7777,"currency":"USD"}}`

	au := f.waitFor(t, model.UpdateAccount)
	if au.Account.Balance != 7777 || au.Account.Kind != model.AccountDemo {
		t.Errorf("account = %+v, want demo balance 7777", au.Account)
	}
}

// waitQueueDepth polls the client's offline queue until it reaches want.
func waitQueueDepth(t *testing.T, api *deriv.Client, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if api.QueueDepth() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("QueueDepth = %d, want %d", api.QueueDepth(), want)
}

func TestSession_ProposalErrorUnblocksTrading(t *testing.T) {
	cfg := &config.Config{
		Symbol:              "R_100",
		ContractType:        "DIGITMATCH",
		StakeAmount:         1,
		PayoutRatio:         0.95,
		RiskPerTrade:        0.02,
		MaxDailyLoss:        0.1,
		ConfidenceThreshold: 0.8,
	}

	set := strategy.NewSet()
	set.Register(stubPredictor{sig: model.SignalCall, conf: 95})

	ledger := risk.NewLedger()
	ledger.ApplyBalance(model.AccountDemo, "VRTC100", 100, "USD")

	out := bus.New(256)
	api := deriv.NewClient("ws://unused", deriv.Handlers{})
	subs := deriv.NewRegistry(api)
	live := execution.NewLive(api, cfg.Symbol, cfg.ContractType, "USD")

	s := New(cfg, api, subs, set, ledger, execution.NewSimulator(1, cfg.PayoutRatio, nil), live, nil, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Start()
	h := s.Handlers()

	// Disconnected client queues every outbound request, so the queue
	// depth counts proposals issued.
	h.OnTick(tick("1.2343"))
	waitQueueDepth(t, api, 1)

	h.OnError(deriv.APIError{Code: "ContractBuyValidationError", Message: "stake below minimum"})

	h.OnTick(tick("1.2344"))
	waitQueueDepth(t, api, 2)
}
