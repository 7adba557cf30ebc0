package cart

import (
	"context"
	"fmt"
	"time"
)

// Order statuses are server-owned; the client only reads them. The nested
// per-item status is the finer grain that decides which actions are legal
// (modify a rejected item, append the next batch).
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type OrderItemStatus string

const (
	ItemPending   OrderItemStatus = "pending"
	ItemAccepted  OrderItemStatus = "accepted"
	ItemRejected  OrderItemStatus = "rejected"
	ItemPreparing OrderItemStatus = "preparing"
	ItemReady     OrderItemStatus = "ready"
	ItemDelivered OrderItemStatus = "delivered"
)

type OrderItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       float64         `json:"price"`
	Quantity    int             `json:"quantity"`
	Category    Category        `json:"category"`
	Status      OrderItemStatus `json:"status"`
	PrepMinutes int             `json:"prep_minutes,omitempty"`
}

type Order struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	TableID   *int64      `json:"table_id,omitempty"`
	Address   string      `json:"address,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type myOrdersResponse struct {
	Data []Order `json:"data"`
}

type createOrderResponse struct {
	Success bool  `json:"success"`
	Data    Order `json:"data"`
}

// RefreshOrders re-fetches the user's orders and reconciles. Any order still
// pending staff triage locks the cart: its items are mirrored read-only and
// the local cart is force-cleared, because the server-held batch is the
// durable record and must win over anything typed since.
func (r *Reconciler) RefreshOrders(ctx context.Context) error {
	var res myOrdersResponse
	if err := r.api.GetJSON(ctx, "/orders/my-orders", &res); err != nil {
		return err
	}

	var pending []OrderItem
	hasPending := false
	for _, o := range res.Data {
		if o.Status == OrderPending {
			hasPending = true
			pending = append(pending, o.Items...)
		}
	}

	r.mu.Lock()
	r.orders = res.Data
	r.hasPending = hasPending
	r.pendingItems = pending
	if hasPending {
		r.items = nil
	}
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, len(r.orders))
	copy(out, r.orders)
	return out
}

// SubmitOrder marks the cart as spoken for: clear locally, then re-fetch so
// the freshly created pending order takes over as the mirror. It does not
// create the order itself — creation has dine-in and delivery call sites
// with different payloads, but this transition is universal.
func (r *Reconciler) SubmitOrder(ctx context.Context) error {
	r.ClearCart()
	return r.RefreshOrders(ctx)
}

// CreateDineInOrder posts a dine-in order. Unlike the rest of the package it
// is allowed to fail loudly so the calling screen can alert with the
// server's message.
func (r *Reconciler) CreateDineInOrder(ctx context.Context, tableID int64, items []Item) (Order, error) {
	if len(items) == 0 {
		return Order{}, fmt.Errorf("cart: nothing to order")
	}
	payload := map[string]any{
		"type":     "dine_in",
		"table_id": tableID,
		"items":    orderLines(items),
	}
	var res createOrderResponse
	if err := r.api.PostJSON(ctx, "/orders", payload, &res); err != nil {
		return Order{}, err
	}
	return res.Data, nil
}

func (r *Reconciler) CreateDeliveryOrder(ctx context.Context, address string, items []Item) (Order, error) {
	if len(items) == 0 {
		return Order{}, fmt.Errorf("cart: nothing to order")
	}
	if address == "" {
		return Order{}, fmt.Errorf("cart: missing delivery address")
	}
	payload := map[string]any{
		"type":    "delivery",
		"address": address,
		"items":   orderLines(items),
	}
	var res createOrderResponse
	if err := r.api.PostJSON(ctx, "/orders", payload, &res); err != nil {
		return Order{}, err
	}
	return res.Data, nil
}

// AppendBatch sends a tanda: an extra wave of items onto an order that staff
// already accepted. Orders still pending cannot take one.
func (r *Reconciler) AppendBatch(ctx context.Context, orderID string, items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("cart: empty batch")
	}

	r.mu.Lock()
	for _, o := range r.orders {
		if o.ID == orderID && o.Status == OrderPending {
			r.mu.Unlock()
			return fmt.Errorf("cart: order %s is still pending approval", orderID)
		}
	}
	r.mu.Unlock()

	payload := map[string]any{"items": orderLines(items)}
	return r.api.PostJSON(ctx, "/orders/"+orderID+"/batches", payload, nil)
}

func orderLines(items []Item) []map[string]any {
	lines := make([]map[string]any, 0, len(items))
	for _, it := range items {
		lines = append(lines, map[string]any{
			"item_id":  it.ID,
			"quantity": it.Quantity,
		})
	}
	return lines
}
