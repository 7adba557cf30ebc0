package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"mesaclient/internal/httpx"
	"mesaclient/internal/realtime"
	"mesaclient/internal/session"
)

func testAPI(t *testing.T, handler http.Handler) *httpx.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return httpx.NewClient(srv.URL, session.Static{BearerToken: "t", User: "me"}, time.Second)
}

// connectedSession wires a table session into the connected state without a
// live socket; Emit failures are logged, not surfaced, which is all these
// contract tests need.
func connectedSession(t *testing.T) *Session {
	t.Helper()
	s := NewTableSession(testAPI(t, chi.NewRouter()), realtime.Config{Session: session.Static{User: "me"}}, 4)
	s.info = &Info{ID: "chat-1"}
	s.status = StatusConnected
	s.ch = realtime.NewChannel(realtime.Config{Session: session.Static{User: "me"}})
	return s
}

func TestSendMessageContract(t *testing.T) {
	tests := []struct {
		name string
		prep func(*Session)
		text string
		want bool
	}{
		{"connected with text", func(*Session) {}, "hola", true},
		{"blank text", func(*Session) {}, "   \t", false},
		{"not connected", func(s *Session) { s.status = StatusConnecting }, "hola", false},
		{"metadata not loaded", func(s *Session) { s.info = nil }, "hola", false},
		{"conversation closed", func(s *Session) { s.closed = true }, "hola", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := connectedSession(t)
			tt.prep(s)
			if got := s.SendMessage(tt.text); got != tt.want {
				t.Errorf("SendMessage(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSendMessageDoubleSubmitDropped(t *testing.T) {
	s := connectedSession(t)
	now := time.Unix(5000, 0)
	s.now = func() time.Time { return now }

	if !s.SendMessage("hola") {
		t.Fatal("first send refused")
	}
	if s.SendMessage("hola") {
		t.Error("double submit of the same text accepted")
	}
	now = now.Add(time.Second)
	if !s.SendMessage("hola") {
		t.Error("deliberate repeat after the window refused")
	}
}

func TestSendMessageOptimisticAppend(t *testing.T) {
	s := connectedSession(t)
	if !s.SendMessage("una paella por favor") {
		t.Fatal("send refused")
	}
	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want optimistic 1", len(msgs))
	}
	if msgs[0].SenderID != "me" || msgs[0].Read {
		t.Errorf("optimistic message = %+v, want own unread", msgs[0])
	}
}

func TestOwnEchoReconcilesOptimisticEntry(t *testing.T) {
	s := connectedSession(t)
	if !s.SendMessage("hola") {
		t.Fatal("send refused")
	}

	echo, _ := json.Marshal(Message{ID: "srv-9", ChatID: "chat-1", SenderID: "me", Text: "hola"})
	s.handleIncoming(echo)

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d after echo, want 1 (reconciled, not duplicated)", len(msgs))
	}
	if msgs[0].ID != "srv-9" {
		t.Errorf("message id = %q, want server id", msgs[0].ID)
	}
	if msgs[0].Read {
		t.Error("own echo marked the message read")
	}
}

func TestIncomingFromOtherAppends(t *testing.T) {
	s := connectedSession(t)
	raw, _ := json.Marshal(Message{ID: "m1", ChatID: "chat-1", SenderID: "mozo-3", Text: "ahora mismo"})
	s.handleIncoming(raw)

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].SenderID != "mozo-3" {
		t.Fatalf("messages = %+v, want the waiter's message", msgs)
	}
}

func TestReadReceiptRules(t *testing.T) {
	t.Run("receipt from someone else marks own messages", func(t *testing.T) {
		s := connectedSession(t)
		s.SendMessage("hola")
		receipt, _ := json.Marshal(map[string]string{"reader_id": "mozo-3"})
		s.handleMessagesRead(receipt)
		if msgs := s.Messages(); !msgs[0].Read {
			t.Error("own message not marked read by counterparty receipt")
		}
	})

	t.Run("own receipt echo is ignored", func(t *testing.T) {
		s := connectedSession(t)
		s.SendMessage("hola")
		receipt, _ := json.Marshal(map[string]string{"reader_id": "me"})
		s.handleMessagesRead(receipt)
		if msgs := s.Messages(); msgs[0].Read {
			t.Error("own receipt echo marked own message read")
		}
	})

	t.Run("anonymous receipt is ignored", func(t *testing.T) {
		s := connectedSession(t)
		s.SendMessage("hola")
		s.handleMessagesRead(json.RawMessage(`{}`))
		if msgs := s.Messages(); msgs[0].Read {
			t.Error("empty reader receipt marked own message read")
		}
	})
}

func TestChatClosedCachedClientSide(t *testing.T) {
	s := connectedSession(t)
	s.kind = KindDelivery

	s.handleClosed(nil)

	if !s.Closed() {
		t.Fatal("Closed() = false after chat_closed event")
	}
	// No round trip needed: the rejection is immediate and local.
	if s.SendMessage("¿sigue abierto?") {
		t.Error("SendMessage accepted after closure")
	}
}

func TestOpenRejectedWhileAlreadyOpen(t *testing.T) {
	s := connectedSession(t)
	first := s.ch

	if err := s.Open(context.Background()); err == nil {
		t.Fatal("Open() on a connected session succeeded")
	}
	if s.ch != first {
		t.Error("second Open replaced the live channel")
	}
	if s.Status() != StatusConnected {
		t.Errorf("Status() = %q after rejected Open, want connected", s.Status())
	}
}

func TestOpenBootstrapsDeliveryChat(t *testing.T) {
	var readCalls int
	var mu sync.Mutex

	r := chi.NewRouter()
	r.Get("/delivery-chat/delivery/9", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, Info{ID: "dc-9", Closed: false})
	})
	r.Get("/delivery-chat/dc-9/messages", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": []Message{
			{ID: "m1", ChatID: "dc-9", SenderID: "rider-1", Text: "en camino"},
		}})
	})
	r.Put("/delivery-chat/dc-9/read", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		readCalls++
		mu.Unlock()
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	joins := make(chan realtime.Event, 4)
	upgrader := websocket.Upgrader{}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		for {
			var ev realtime.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			joins <- ev
		}
	}))
	t.Cleanup(ws.Close)

	api := testAPI(t, r)
	socketCfg := realtime.Config{
		URL:     "ws" + strings.TrimPrefix(ws.URL, "http"),
		Session: session.Static{BearerToken: "t", User: "me"},
	}
	s := NewDeliverySession(api, socketCfg, 9)
	defer s.Close()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Status() != StatusConnected {
		t.Errorf("Status() = %q, want connected", s.Status())
	}
	if msgs := s.Messages(); len(msgs) != 1 || msgs[0].Text != "en camino" {
		t.Errorf("history = %+v", msgs)
	}

	select {
	case ev := <-joins:
		if ev.Event != realtime.JoinDeliveryChat {
			t.Errorf("first socket frame = %q, want join_delivery_chat", ev.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no join frame")
	}

	mu.Lock()
	defer mu.Unlock()
	if readCalls != 1 {
		t.Errorf("read endpoint called %d times on open, want 1", readCalls)
	}
}
