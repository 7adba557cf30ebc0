package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mesaclient/internal/httpx"
	"mesaclient/internal/realtime"
)

const sendDebounce = 300 * time.Millisecond

// Session is one live conversation: bootstrap history over REST, then a
// dedicated socket for the rest of the screen's life.
type Session struct {
	api       *httpx.Client
	kind      Kind
	socketCfg realtime.Config
	targetID  int64

	mu           sync.Mutex
	ch           *realtime.Channel
	status       Status
	info         *Info
	messages     []Message
	closed       bool
	lastSendText string
	lastSendAt   time.Time
	now          func() time.Time

	// OnMessage fires for every appended message; OnStatus on lifecycle
	// transitions. Both optional, both called without the lock held.
	OnMessage func(Message)
	OnStatus  func(Status)
}

// NewTableSession prepares a conversation for the occupied table.
func NewTableSession(api *httpx.Client, socketCfg realtime.Config, tableID int64) *Session {
	return &Session{
		api:       api,
		kind:      KindTable,
		socketCfg: socketCfg,
		targetID:  tableID,
		status:    StatusDisconnected,
		now:       time.Now,
	}
}

// NewDeliverySession prepares a conversation for an active delivery.
func NewDeliverySession(api *httpx.Client, socketCfg realtime.Config, deliveryID int64) *Session {
	return &Session{
		api:       api,
		kind:      KindDelivery,
		socketCfg: socketCfg,
		targetID:  deliveryID,
		status:    StatusDisconnected,
		now:       time.Now,
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Info() *Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return nil
	}
	info := *s.info
	return &info
}

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Open bootstraps metadata and history, then connects the socket and marks
// the conversation read. A session already connecting or connected rejects a
// second Open; Close it first.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("chat: session already open")
	}
	s.mu.Unlock()
	s.setStatus(StatusConnecting)

	info, err := s.fetchInfo(ctx)
	if err != nil {
		s.setStatus(StatusDisconnected)
		return err
	}

	var history messagesResponse
	if err := s.api.GetJSON(ctx, s.messagesPath(info.ID), &history); err != nil {
		s.setStatus(StatusDisconnected)
		return err
	}

	ch := s.buildChannel(info.ID)

	s.mu.Lock()
	s.info = &info
	s.messages = history.Data
	s.closed = info.Closed
	s.ch = ch
	s.mu.Unlock()

	if err := ch.Connect(ctx); err != nil {
		s.setStatus(StatusDisconnected)
		return err
	}
	s.setStatus(StatusConnected)

	if err := s.MarkAsRead(ctx); err != nil {
		log.Printf("[chat] mark-as-read on open: %v", err)
	}
	return nil
}

// SendMessage queues text for the counterparty. False — never a throw — when
// the socket is down, metadata has not loaded, the text is blank, or the
// conversation closed: all routine UI conditions.
func (s *Session) SendMessage(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	if s.status != StatusConnected || s.info == nil || s.closed {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	if text == s.lastSendText && now.Sub(s.lastSendAt) < sendDebounce {
		s.mu.Unlock()
		log.Printf("[chat] duplicate send dropped")
		return false
	}
	s.lastSendText = text
	s.lastSendAt = now

	chatID := s.info.ID
	msg := Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  s.api.Session().UserID(),
		Text:      text,
		Read:      false,
		CreatedAt: now,
	}
	s.messages = append(s.messages, msg)
	ch := s.ch
	s.mu.Unlock()

	s.notifyMessage(msg)

	switch s.kind {
	case KindTable:
		if err := ch.Emit(realtime.EventSendMessage, map[string]string{"chat_id": chatID, "text": text}); err != nil {
			log.Printf("[chat] table send: %v", err)
		}
	case KindDelivery:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			payload := map[string]string{"text": text}
			if err := s.api.PostJSON(ctx, "/delivery-chat/"+chatID+"/messages", payload, nil); err != nil {
				log.Printf("[chat] delivery send: %v", err)
			}
		}()
	}
	return true
}

// MarkAsRead tells the counterparty everything up to now was seen. Safe to
// call repeatedly: on open, on screen focus, and after incoming messages.
func (s *Session) MarkAsRead(ctx context.Context) error {
	s.mu.Lock()
	if s.info == nil {
		s.mu.Unlock()
		return nil
	}
	chatID := s.info.ID
	self := s.api.Session().UserID()
	for i := range s.messages {
		if s.messages[i].SenderID != self {
			s.messages[i].Read = true
		}
	}
	ch := s.ch
	s.mu.Unlock()

	switch s.kind {
	case KindTable:
		if ch == nil {
			return nil
		}
		return ch.Emit(realtime.EventMarkAsRead, map[string]string{"chat_id": chatID})
	case KindDelivery:
		return s.api.PutJSON(ctx, "/delivery-chat/"+chatID+"/read", nil, nil)
	}
	return nil
}

// UnreadCount reads the server-side unread counter. Delivery chats only.
func (s *Session) UnreadCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	info := s.info
	s.mu.Unlock()
	if s.kind != KindDelivery {
		return 0, fmt.Errorf("chat: unread count is delivery-only")
	}
	if info == nil {
		return 0, fmt.Errorf("chat: not loaded")
	}
	var res struct {
		Count int `json:"count"`
	}
	if err := s.api.GetJSON(ctx, "/delivery-chat/"+info.ID+"/unread-count", &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Close tears the socket down; the conversation history stays readable.
func (s *Session) Close() {
	s.mu.Lock()
	ch := s.ch
	s.ch = nil
	s.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
	s.setStatus(StatusDisconnected)
}

func (s *Session) fetchInfo(ctx context.Context) (Info, error) {
	var info Info
	var path string
	switch s.kind {
	case KindTable:
		path = fmt.Sprintf("/chat/table/%d", s.targetID)
	case KindDelivery:
		path = fmt.Sprintf("/delivery-chat/delivery/%d", s.targetID)
	}
	err := s.api.GetJSON(ctx, path, &info)
	return info, err
}

func (s *Session) messagesPath(chatID string) string {
	if s.kind == KindDelivery {
		return "/delivery-chat/" + chatID + "/messages"
	}
	return "/chat/" + chatID + "/messages"
}

func (s *Session) buildChannel(chatID string) *realtime.Channel {
	cfg := s.socketCfg
	cfg.Room = chatID
	switch s.kind {
	case KindTable:
		cfg.JoinEvent = realtime.JoinTableChat
	case KindDelivery:
		cfg.JoinEvent = realtime.JoinDeliveryChat
		cfg.LeaveEvent = realtime.LeaveDeliveryChat
	}
	ch := realtime.NewChannel(cfg)

	switch s.kind {
	case KindTable:
		ch.On(realtime.EventNewMessage, s.handleIncoming)
		ch.On(realtime.EventMessagesRead, s.handleMessagesRead)
	case KindDelivery:
		ch.On(realtime.EventNewDeliveryMessage, s.handleIncoming)
		ch.On(realtime.EventDeliveryMessageSent, s.handleOwnEcho)
		ch.On(realtime.EventDeliveryMessagesRead, s.handleMessagesRead)
		ch.On(realtime.EventDeliveryChatClosed, s.handleClosed)
	}
	return ch
}

func (s *Session) handleIncoming(payload json.RawMessage) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[chat] bad message payload: %v", err)
		return
	}

	self := s.api.Session().UserID()
	if msg.SenderID == self {
		// Own echo: reconcile the optimistic entry, never mark-as-read from
		// it — a sender must not read their own messages off their echo.
		s.handleOwnEcho(payload)
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notifyMessage(msg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.MarkAsRead(ctx); err != nil {
		log.Printf("[chat] mark-as-read on incoming: %v", err)
	}
}

// handleOwnEcho swaps the server's id and timestamp into the optimistic
// entry for the same text, or appends when no optimistic entry matches
// (another device sent it).
func (s *Session) handleOwnEcho(payload json.RawMessage) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	self := s.api.Session().UserID()
	if msg.SenderID != self {
		return
	}

	s.mu.Lock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.SenderID == self && m.Text == msg.Text && !m.Read {
			s.messages[i].ID = msg.ID
			s.messages[i].CreatedAt = msg.CreatedAt
			s.mu.Unlock()
			return
		}
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notifyMessage(msg)
}

// handleMessagesRead applies a read receipt only when the reader is someone
// else; a reader naming self is our own receipt echoed back.
func (s *Session) handleMessagesRead(payload json.RawMessage) {
	var receipt struct {
		ReaderID string `json:"reader_id"`
	}
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return
	}
	self := s.api.Session().UserID()
	if receipt.ReaderID == "" || receipt.ReaderID == self {
		return
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].SenderID == self {
			s.messages[i].Read = true
		}
	}
	s.mu.Unlock()
}

// handleClosed caches the terminal state client-side: every further send is
// rejected without a round trip to verify closure.
func (s *Session) handleClosed(json.RawMessage) {
	s.mu.Lock()
	s.closed = true
	if s.info != nil {
		s.info.Closed = true
	}
	s.mu.Unlock()
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	cb := s.OnStatus
	s.mu.Unlock()
	if changed && cb != nil {
		cb(st)
	}
}

func (s *Session) notifyMessage(msg Message) {
	s.mu.Lock()
	cb := s.OnMessage
	s.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}
