// Package chat manages one live conversation per open chat screen. Table
// chat and delivery chat share the machinery but use disjoint event
// namespaces and never share a connection.
package chat

import (
	"context"
	"time"

	"mesaclient/internal/httpx"
)

type Kind string

const (
	KindTable    Kind = "table"
	KindDelivery Kind = "delivery"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	SenderRole string    `json:"sender_role,omitempty"`
	Text       string    `json:"text"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

type Info struct {
	ID         string `json:"id"`
	TableID    *int64 `json:"table_id,omitempty"`
	DeliveryID *int64 `json:"delivery_id,omitempty"`
	Closed     bool   `json:"closed"`
}

type messagesResponse struct {
	Data []Message `json:"data"`
}

type chatsResponse struct {
	Data []Info `json:"data"`
}

// MyDeliveryChats lists the user's delivery conversations for the inbox
// screen.
func MyDeliveryChats(ctx context.Context, api *httpx.Client) ([]Info, error) {
	var res chatsResponse
	if err := api.GetJSON(ctx, "/delivery-chat/my-chats", &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ActiveWaiterChat returns the table conversation with a waiter currently
// attending, if any. A nil Info means nobody is assigned yet.
func ActiveWaiterChat(ctx context.Context, api *httpx.Client) (*Info, error) {
	var info Info
	err := api.GetJSON(ctx, "/chat/waiter/active", &info)
	if err != nil {
		var se *httpx.StatusError
		if httpx.AsStatusError(err, &se) && se.Status == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &info, nil
}
