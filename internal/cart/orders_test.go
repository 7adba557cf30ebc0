package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"mesaclient/internal/httpx"
	"mesaclient/internal/session"
)

type fakeOrders struct {
	mu      sync.Mutex
	orders  []Order
	fails   bool
	created []map[string]any
	batches []map[string]any
}

func (f *fakeOrders) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/orders/my-orders", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.fails {
			httpx.WriteError(w, http.StatusInternalServerError, "orders unavailable")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": f.orders})
	})
	r.Post("/orders", func(w http.ResponseWriter, req *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(req.Body).Decode(&payload)
		f.mu.Lock()
		f.created = append(f.created, payload)
		f.mu.Unlock()
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    Order{ID: "o-new", Status: OrderPending},
		})
	})
	r.Post("/orders/{id}/batches", func(w http.ResponseWriter, req *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(req.Body).Decode(&payload)
		f.mu.Lock()
		f.batches = append(f.batches, payload)
		f.mu.Unlock()
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	return r
}

func newReconciler(t *testing.T, f *fakeOrders) *Reconciler {
	t.Helper()
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)
	api := httpx.NewClient(srv.URL, session.Static{BearerToken: "t", User: "u1"}, time.Second)
	return New(api, 0)
}

func TestRefreshOrdersPendingWinsOverLocalCart(t *testing.T) {
	f := &fakeOrders{orders: []Order{
		{ID: "o1", Status: OrderPending, Items: []OrderItem{
			{ID: "i1", Name: "Paella", Quantity: 2, Status: ItemPending},
			{ID: "i2", Name: "Agua", Quantity: 1, Status: ItemPending},
		}},
	}}
	r := newReconciler(t, f)
	r.AddItem(plato("p9", "Local unsent", 10))

	if err := r.RefreshOrders(context.Background()); err != nil {
		t.Fatalf("RefreshOrders() error = %v", err)
	}
	if !r.HasPendingOrder() {
		t.Fatal("HasPendingOrder() = false, want true")
	}
	if got := len(r.Items()); got != 0 {
		t.Errorf("local cart has %d items after pending reconcile, want 0", got)
	}
	if got := len(r.PendingItems()); got != 2 {
		t.Errorf("pending mirror has %d items, want 2", got)
	}
}

func TestRefreshOrdersNoPendingUnlocks(t *testing.T) {
	f := &fakeOrders{orders: []Order{
		{ID: "o1", Status: OrderConfirmed, Items: []OrderItem{{ID: "i1", Name: "Paella", Quantity: 1, Status: ItemAccepted}}},
	}}
	r := newReconciler(t, f)
	r.AddItem(plato("p1", "Nueva ronda", 10))

	if err := r.RefreshOrders(context.Background()); err != nil {
		t.Fatalf("RefreshOrders() error = %v", err)
	}
	if r.HasPendingOrder() {
		t.Error("HasPendingOrder() = true for a confirmed order")
	}
	if got := len(r.Items()); got != 1 {
		t.Errorf("local cart has %d items, want 1 (no pending, nothing cleared)", got)
	}
	if got := len(r.PendingItems()); got != 0 {
		t.Errorf("pending mirror has %d items, want 0", got)
	}
}

func TestAddItemBlockedWhilePending(t *testing.T) {
	f := &fakeOrders{orders: []Order{{ID: "o1", Status: OrderPending}}}
	r := newReconciler(t, f)
	if err := r.RefreshOrders(context.Background()); err != nil {
		t.Fatalf("RefreshOrders() error = %v", err)
	}

	r.AddItem(plato("p1", "Paella", 20))
	if got := len(r.Items()); got != 0 {
		t.Errorf("AddItem while pending added %d items, want silent no-op", got)
	}
}

func TestSubmitOrderClearsAndRefetches(t *testing.T) {
	f := &fakeOrders{orders: []Order{{ID: "o1", Status: OrderPending, Items: []OrderItem{{ID: "i1", Name: "Paella", Quantity: 1}}}}}
	r := newReconciler(t, f)
	r.AddItem(plato("p1", "Paella", 20))

	if err := r.SubmitOrder(context.Background()); err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if got := len(r.Items()); got != 0 {
		t.Errorf("cart has %d items after submit, want 0", got)
	}
	if !r.HasPendingOrder() {
		t.Error("HasPendingOrder() = false, want true after refetch")
	}
}

func TestCreateOrderPayloadShapes(t *testing.T) {
	f := &fakeOrders{}
	r := newReconciler(t, f)
	items := []Item{plato("p1", "Paella", 20)}

	if _, err := r.CreateDineInOrder(context.Background(), 7, items); err != nil {
		t.Fatalf("CreateDineInOrder() error = %v", err)
	}
	if _, err := r.CreateDeliveryOrder(context.Background(), "Calle Mayor 1", items); err != nil {
		t.Fatalf("CreateDeliveryOrder() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) != 2 {
		t.Fatalf("created %d orders, want 2", len(f.created))
	}
	if f.created[0]["type"] != "dine_in" || f.created[0]["table_id"] != float64(7) {
		t.Errorf("dine-in payload = %v", f.created[0])
	}
	if f.created[1]["type"] != "delivery" || f.created[1]["address"] != "Calle Mayor 1" {
		t.Errorf("delivery payload = %v", f.created[1])
	}
}

func TestCreateOrderValidation(t *testing.T) {
	r := New(nil, 0)
	if _, err := r.CreateDineInOrder(context.Background(), 7, nil); err == nil {
		t.Error("CreateDineInOrder(empty) error = nil")
	}
	if _, err := r.CreateDeliveryOrder(context.Background(), "", []Item{plato("p1", "x", 1)}); err == nil {
		t.Error("CreateDeliveryOrder(no address) error = nil")
	}
}

func TestAppendBatchRejectsPendingOrder(t *testing.T) {
	f := &fakeOrders{orders: []Order{{ID: "o1", Status: OrderPending}}}
	r := newReconciler(t, f)
	if err := r.RefreshOrders(context.Background()); err != nil {
		t.Fatalf("RefreshOrders() error = %v", err)
	}

	err := r.AppendBatch(context.Background(), "o1", []Item{plato("p1", "Paella", 20)})
	if err == nil {
		t.Fatal("AppendBatch() on a pending order must fail")
	}
	if len(f.batches) != 0 {
		t.Errorf("batch reached the server despite pending order")
	}
}

func TestAppendBatchOnAcceptedOrder(t *testing.T) {
	f := &fakeOrders{orders: []Order{{ID: "o1", Status: OrderConfirmed}}}
	r := newReconciler(t, f)
	if err := r.RefreshOrders(context.Background()); err != nil {
		t.Fatalf("RefreshOrders() error = %v", err)
	}

	if err := r.AppendBatch(context.Background(), "o1", []Item{plato("p1", "Paella", 20)}); err != nil {
		t.Fatalf("AppendBatch() error = %v", err)
	}
	if len(f.batches) != 1 {
		t.Errorf("batches = %d, want 1", len(f.batches))
	}
}
