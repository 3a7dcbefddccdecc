// Package notification pushes bot events to external channels (Telegram,
// generic webhooks) so an operator can follow trades without the dashboard.
package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"derivbot/internal/model"
)

// AlertLevel classifies an outgoing alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one message bound for an external channel.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier delivers alerts to one backend.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log. Used when no external
// channel is configured, so the relay path stays exercised.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Relay consumes the bot's update stream and forwards the operator-relevant
// subset as alerts: settled trades, warning/error activity, and status
// transitions. Prediction and digit updates are too chatty to forward.
type Relay struct {
	notifiers []Notifier
	timeout   time.Duration
}

// NewRelay fans alerts out to every given backend.
func NewRelay(notifiers ...Notifier) *Relay {
	return &Relay{notifiers: notifiers, timeout: 10 * time.Second}
}

// Run consumes updates until ctx is cancelled or the channel closes.
// Delivery failures are logged, never propagated; a flaky webhook must not
// stall the stream.
func (r *Relay) Run(ctx context.Context, updates <-chan model.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			alert, send := r.translate(u)
			if !send {
				continue
			}
			r.deliver(ctx, alert)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, alert Alert) {
	sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	for _, n := range r.notifiers {
		if err := n.Send(sendCtx, alert); err != nil {
			log.Printf("[notify] delivery failed: %v", err)
		}
	}
}

// translate maps an update to an alert, or reports false for kinds that
// should not leave the dashboard.
func (r *Relay) translate(u model.Update) (Alert, bool) {
	switch u.Kind {
	case model.UpdateTrade:
		if u.Trade == nil {
			return Alert{}, false
		}
		t := u.Trade
		level := AlertInfo
		verb := "won"
		if t.Outcome == model.OutcomeLoss {
			level = AlertWarning
			verb = "lost"
		}
		return Alert{
			Level: level,
			Title: fmt.Sprintf("Trade #%d %s", t.Seq, verb),
			Message: fmt.Sprintf("%s %s stake %.2f → profit %+.2f (%s account)",
				t.Type, t.Signal, t.Stake, t.Profit, t.Account),
		}, true
	case model.UpdateActivity:
		if u.Activity == nil {
			return Alert{}, false
		}
		switch u.Activity.Severity {
		case model.SevWarning:
			return Alert{Level: AlertWarning, Title: "Bot warning", Message: u.Activity.Message}, true
		case model.SevError:
			return Alert{Level: AlertCritical, Title: "Bot error", Message: u.Activity.Message}, true
		}
		return Alert{}, false
	case model.UpdateStatus:
		return Alert{Level: AlertInfo, Title: "Bot status", Message: u.Status}, true
	}
	return Alert{}, false
}
