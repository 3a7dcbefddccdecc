package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"derivbot/internal/model"
)

type captureNotifier struct {
	alerts []Alert
}

func (c *captureNotifier) Send(_ context.Context, a Alert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

func TestRelay_ForwardsTradesAndWarnings(t *testing.T) {
	sink := &captureNotifier{}
	relay := NewRelay(sink)

	updates := make(chan model.Update, 8)
	updates <- model.Update{Kind: model.UpdateTrade, Trade: &model.TradeRecord{
		Seq: 1, Type: "DIGITMATCH", Signal: model.SignalCall,
		Stake: 2, Outcome: model.OutcomeLoss, Profit: -2, Account: model.AccountDemo,
	}}
	updates <- model.Update{Kind: model.UpdateActivity, Activity: &model.Activity{
		Severity: model.SevWarning, Message: "risk limit hit",
	}}
	updates <- model.Update{Kind: model.UpdatePrediction, Prediction: &model.Prediction{}}
	updates <- model.Update{Kind: model.UpdateActivity, Activity: &model.Activity{
		Severity: model.SevInfo, Message: "tick stream resumed",
	}}
	close(updates)

	relay.Run(context.Background(), updates)

	if len(sink.alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %+v", len(sink.alerts), sink.alerts)
	}
	if sink.alerts[0].Level != AlertWarning || !strings.Contains(sink.alerts[0].Title, "lost") {
		t.Errorf("unexpected trade alert: %+v", sink.alerts[0])
	}
	if sink.alerts[1].Level != AlertWarning || sink.alerts[1].Message != "risk limit hit" {
		t.Errorf("unexpected activity alert: %+v", sink.alerts[1])
	}
}

func TestRelay_ErrorActivityIsCritical(t *testing.T) {
	sink := &captureNotifier{}
	relay := NewRelay(sink)

	a, send := relay.translate(model.Update{Kind: model.UpdateActivity, Activity: &model.Activity{
		Severity: model.SevError, Message: "connection lost for good",
	}})
	if !send || a.Level != AlertCritical {
		t.Fatalf("expected critical alert, got send=%v alert=%+v", send, a)
	}
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "Bot status", Message: "running"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["level"] != "INFO" || got["title"] != "Bot status" || got["message"] != "running" {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestWebhookNotifier_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "t", Message: "m"}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestTelegramNotifier_EscapesMarkdown(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat")
	n.baseURL = srv.URL
	n.client = srv.Client()

	err := n.Send(context.Background(), Alert{Level: AlertCritical, Title: "P&L alert", Message: "down 10.5!"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	text, _ := body["text"].(string)
	if !strings.Contains(text, `P&L alert`) || !strings.Contains(text, `10\.5\!`) {
		t.Errorf("markdown not escaped as expected: %q", text)
	}
	if body["chat_id"] != "chat" {
		t.Errorf("chat_id = %v", body["chat_id"])
	}
}

func TestRelay_DeliveryTimeoutDoesNotBlock(t *testing.T) {
	relay := NewRelay(NewLogNotifier())
	relay.timeout = 10 * time.Millisecond

	updates := make(chan model.Update, 1)
	updates <- model.Update{Kind: model.UpdateStatus, Status: "stopped"}
	close(updates)

	done := make(chan struct{})
	go func() {
		relay.Run(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not drain")
	}
}
