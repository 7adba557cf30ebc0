package realtime

import "encoding/json"

// Wire event names pushed by the backend, grouped by room.
const (
	JoinClientUpdates            = "join:client-updates"
	LeaveClientUpdates           = "leave:client-updates"
	EventClientStateUpdate       = "client:state-update"
	EventClientTableAssigned     = "client:table-assigned"
	EventClientDeliveryConfirmed = "client:delivery-confirmed"
	EventClientBillRequested     = "client:bill-requested"

	JoinTableChat     = "join_table_chat"
	EventNewMessage   = "new_message"
	EventUserJoined   = "user_joined"
	EventMessagesRead = "messages_read"
	EventSendMessage  = "send_message"
	EventMarkAsRead   = "mark_as_read"

	JoinDeliveryChat          = "join_delivery_chat"
	LeaveDeliveryChat         = "leave_delivery_chat"
	EventNewDeliveryMessage   = "new_delivery_message"
	EventDeliveryMessageSent  = "delivery_message_sent"
	EventDeliveryMessagesRead = "delivery_messages_read"
	EventDeliveryChatClosed   = "delivery_chat_closed"
	EventJoinedDeliveryRoom   = "joined_delivery_room"
	EventUserJoinedDelivery   = "user_joined_delivery"

	JoinTableRoom              = "join_table_room"
	JoinUserRoom               = "join_user_room"
	EventOrderItemsDelivered   = "order_items_delivered"
	EventDeliveryUpdated       = "delivery_updated"
	EventDeliveryStatusChanged = "delivery_status_changed"
	EventJoinedTableRoom       = "joined_table_room"
)

// NewClientUpdates subscribes to the per-user state room. Every push wakes
// onUpdate with no payload interpretation; the owner re-fetches over REST.
func NewClientUpdates(cfg Config, userID string, onUpdate func()) *Channel {
	cfg.JoinEvent = JoinClientUpdates
	cfg.LeaveEvent = LeaveClientUpdates
	cfg.Room = userID
	ch := NewChannel(cfg)
	wake := func(json.RawMessage) { onUpdate() }
	ch.On(EventClientStateUpdate, wake)
	ch.On(EventClientTableAssigned, wake)
	ch.On(EventClientDeliveryConfirmed, wake)
	ch.On(EventClientBillRequested, wake)
	return ch
}

// NewTableDelivery subscribes to the table room for order-delivery pushes.
func NewTableDelivery(cfg Config, tableID string, onUpdate func()) *Channel {
	cfg.JoinEvent = JoinTableRoom
	cfg.Room = tableID
	ch := NewChannel(cfg)
	wake := func(json.RawMessage) { onUpdate() }
	ch.On(EventOrderItemsDelivered, wake)
	ch.On(EventDeliveryUpdated, wake)
	ch.On(EventDeliveryStatusChanged, wake)
	return ch
}

// NewUserDelivery subscribes to the per-user room for delivery-status pushes.
// A delivery customer has no table room; this is their path for the same
// update events.
func NewUserDelivery(cfg Config, userID string, onUpdate func()) *Channel {
	cfg.JoinEvent = JoinUserRoom
	cfg.Room = userID
	ch := NewChannel(cfg)
	wake := func(json.RawMessage) { onUpdate() }
	ch.On(EventDeliveryUpdated, wake)
	ch.On(EventDeliveryStatusChanged, wake)
	return ch
}
