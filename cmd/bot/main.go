package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"derivbot/config"
	"derivbot/internal/bot"
	"derivbot/internal/bus"
	"derivbot/internal/deriv"
	"derivbot/internal/execution"
	"derivbot/internal/gateway"
	"derivbot/internal/metrics"
	"derivbot/internal/model"
	"derivbot/internal/notification"
	"derivbot/internal/risk"
	"derivbot/internal/strategy"
	redisstore "derivbot/internal/store/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[bot] starting...")

	cfg := config.Load()
	if cfg.SimMode {
		log.Println("[bot] *** SIM MODE: trades settle locally, no buy requests ***")
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Trade journal (SQLite) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[bot] journal init failed: %v", err)
	}
	journal.OnWriteDuration = func(d time.Duration) { prom.JournalWriteDur.Observe(d.Seconds()) }
	defer journal.Close()

	// ---- Redis snapshot writer (optional) ----
	var redisWriter *redisstore.Writer
	if cfg.RedisAddr != "" {
		redisWriter, err = redisstore.New(redisstore.WriterConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[bot] WARNING: redis init failed: %v (continuing without redis)", err)
		} else {
			redisWriter.OnWriteDuration = func(d time.Duration) { prom.RedisWriteDur.Observe(d.Seconds()) }
		}
	}

	var healthRedis *goredis.Client
	if redisWriter != nil {
		healthRedis = redisWriter.Client()
	}
	health.StartLivenessChecker(ctx, healthRedis, journal.DB(), 10*time.Second)

	// ---- Update fan-out ----
	fanout := bus.New(256)
	fanout.OnDrop = func(idx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(idx)).Inc()
	}

	go func() {
		sample := time.NewTicker(15 * time.Second)
		defer sample.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sample.C:
				for i, st := range fanout.ChannelStats() {
					prom.FanoutQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(st.Len))
				}
			}
		}
	}()

	hubCh := fanout.Subscribe()
	var redisCh <-chan model.Update
	if redisWriter != nil {
		redisCh = fanout.Subscribe()
	}

	// ---- UI gateway ----
	hub := gateway.NewHub()
	go hub.Run(ctx, hubCh)
	if redisWriter != nil {
		go redisWriter.Run(ctx, redisCh)
	}

	// ---- Operator alerts (optional channels) ----
	var alertBackends []notification.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		alertBackends = append(alertBackends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[bot] telegram alerts enabled")
	}
	if cfg.AlertWebhookURL != "" {
		alertBackends = append(alertBackends, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
		log.Println("[bot] webhook alerts enabled")
	}
	if len(alertBackends) > 0 {
		relay := notification.NewRelay(alertBackends...)
		go relay.Run(ctx, fanout.Subscribe())
	}

	// ---- Strategies ----
	set := strategy.NewSet()
	if cfg.EnableML {
		set.Register(strategy.NewModel())
	}
	if cfg.EnablePattern {
		set.Register(strategy.NewPattern())
	}
	if cfg.EnableTrend {
		set.Register(strategy.NewTrend())
	}
	log.Printf("[bot] strategies enabled: %v", set.Names())

	// ---- Core session ----
	ledger := risk.NewLedger()
	sim := execution.NewSimulator(0.6, cfg.PayoutRatio, nil)

	api := deriv.NewClient(deriv.Endpoint(cfg.AppID), deriv.Handlers{})
	subs := deriv.NewRegistry(api)

	var live *execution.Live
	if !cfg.SimMode {
		live = execution.NewLive(api, cfg.Symbol, cfg.ContractType, "USD")
	}

	session := bot.New(cfg, api, subs, set, ledger, sim, live, journal, fanout)
	session.Hooks = bot.Hooks{
		OnTick: func() {
			prom.TicksTotal.Inc()
			health.SetLastTickTime(time.Now())
		},
		OnTrade: func(rec model.TradeRecord) {
			prom.TradesTotal.WithLabelValues(string(rec.Outcome)).Inc()
			prom.Balance.WithLabelValues(string(rec.Account)).Set(ledger.Active().Balance)
		},
		OnRiskReject: func(reason string) {
			prom.RiskRejections.WithLabelValues(reason).Inc()
		},
		OnConfidence: func(c float64) {
			prom.Confidence.Set(c)
		},
	}
	go session.Run(ctx)

	// ---- Wire WS client to the session, with health on top ----
	handlers := session.Handlers()
	baseOpen, baseClose := handlers.OnOpen, handlers.OnClose
	handlers.OnOpen = func() {
		health.SetWSConnected(true)
		baseOpen()
	}
	handlers.OnClose = func() {
		health.SetWSConnected(false)
		baseClose()
	}
	api.SetHandlers(handlers)
	api.OnReconnect = func() { prom.WSReconnects.Inc() }
	api.OnQueueDepth = func(n int) { prom.QueuedMessages.Set(float64(n)) }

	// ---- UI commands ----
	hub.OnCommand = func(cmd gateway.Command) {
		switch cmd.Type {
		case "start":
			session.Start()
		case "stop":
			session.Stop()
		case "reset":
			session.Reset()
		case "switch_account":
			session.SwitchAccount(model.AccountKind(cmd.Account))
		case "set_stake":
			session.SetStake(cmd.Stake)
		default:
			log.Printf("[bot] unknown command %q", cmd.Type)
		}
		health.SetBotRunning(session.Running())
	}

	// ---- Gateway HTTP server ----
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	gwSrv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}
	go func() {
		log.Printf("[gateway] listening on %s", cfg.GatewayAddr)
		if err := gwSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[gateway] server error: %v", err)
		}
	}()

	// ---- Connect to Deriv ----
	if err := api.Connect(ctx); err != nil {
		log.Fatalf("[bot] deriv connect failed: %v", err)
	}

	log.Printf("[bot] ready: symbol=%s contract=%s stake=%.2f strategies=%v",
		cfg.Symbol, cfg.ContractType, cfg.StakeAmount, set.Names())

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[bot] shutdown signal received, cleaning up...")
	subs.ForgetAll(deriv.KindTicks, deriv.KindBalance, deriv.KindProposal)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	gwSrv.Shutdown(shutdownCtx)

	api.Close()
	fanout.Close()
	if redisWriter != nil {
		redisWriter.Close()
	}

	log.Println("[bot] shutdown complete.")
}
