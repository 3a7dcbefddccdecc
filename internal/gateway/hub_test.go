package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"derivbot/internal/model"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

// readFrames splits a coalesced WS message into individual JSON frames.
func readFrames(t *testing.T, conn *websocket.Conn) []model.Update {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out []model.Update
	for _, line := range strings.Split(string(msg), "\n") {
		var u model.Update
		if err := json.Unmarshal([]byte(line), &u); err != nil {
			t.Fatalf("frame %q: %v", line, err)
		}
		out = append(out, u)
	}
	return out
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	h := NewHub()
	conn, done := dialHub(t, h)
	defer done()
	waitForClients(t, h, 1)

	h.broadcast(model.Update{Kind: model.UpdateStatus, Status: "running"})

	frames := readFrames(t, conn)
	if len(frames) == 0 || frames[0].Kind != model.UpdateStatus || frames[0].Status != "running" {
		t.Errorf("frames = %+v, want status running", frames)
	}
}

func TestHub_NewClientGetsSnapshot(t *testing.T) {
	h := NewHub()

	// Publish before any client connects; the cache must replay it.
	h.broadcast(model.Update{Kind: model.UpdateStatus, Status: "stopped"})

	conn, done := dialHub(t, h)
	defer done()
	waitForClients(t, h, 1)

	frames := readFrames(t, conn)
	found := false
	for _, u := range frames {
		if u.Kind == model.UpdateStatus && u.Status == "stopped" {
			found = true
		}
	}
	if !found {
		t.Errorf("snapshot frames = %+v, want cached status", frames)
	}
}

func TestHub_CommandRouting(t *testing.T) {
	h := NewHub()
	got := make(chan Command, 1)
	h.OnCommand = func(c Command) { got <- c }

	conn, done := dialHub(t, h)
	defer done()
	waitForClients(t, h, 1)

	if err := conn.WriteJSON(Command{Type: "switch_account", Account: "real"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cmd := <-got:
		if cmd.Type != "switch_account" || cmd.Account != "real" {
			t.Errorf("cmd = %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command never routed")
	}
}

func TestHub_RemoveClientOnDisconnect(t *testing.T) {
	h := NewHub()
	conn, done := dialHub(t, h)
	waitForClients(t, h, 1)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d after disconnect, want 0", h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	done()
}
