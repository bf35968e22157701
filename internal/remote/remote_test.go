package remote

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"calc42/internal/core"
	"calc42/internal/session"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, *websocket.Conn) {
	t.Helper()
	sh := session.New(core.NewMachine(false))
	srv := NewServer(sh, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return srv, ts, conn
}

func TestKeyDownOverWebsocketDrivesTheSharedCore(t *testing.T) {
	srv, _, conn := newTestServer(t)

	if err := conn.WriteJSON(Request{Call: "keydown", Key: 6}); err != nil { // "5"
		t.Fatalf("write: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Call != "keydown" || resp.Error != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if err := conn.WriteJSON(Request{Call: "keydown", Key: 12}); err != nil { // ENTER
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}

	if err := conn.WriteJSON(Request{Call: "copy"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Text != "5" {
		t.Fatalf("Copy result = %q, want %q", resp.Text, "5")
	}

	if srv.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", srv.ClientCount())
	}
}

func TestUnknownCallReturnsError(t *testing.T) {
	_, _, conn := newTestServer(t)

	if err := conn.WriteJSON(Request{Call: "frobnicate"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected an error for an unknown call")
	}
}

func TestPasteOverWebsocket(t *testing.T) {
	srv, _, conn := newTestServer(t)

	if err := conn.WriteJSON(Request{Call: "paste", Text: "42"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if srv.sh.M.Stack.X().Re.Float64() != 42 {
		t.Fatalf("X = %v, want 42", srv.sh.M.Stack.X().Re.Float64())
	}
}
