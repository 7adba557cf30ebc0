// Package cart holds the local unsent cart and reconciles it against
// server-held orders. A pending order on the server always wins over any
// local cart: the user never accumulates two competing batches.
package cart

import (
	"log"
	"sync"
	"time"

	"mesaclient/internal/httpx"
)

type Category string

const (
	CategoryPlato  Category = "plato"
	CategoryBebida Category = "bebida"
)

type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Quantity    int      `json:"quantity"`
	PrepMinutes int      `json:"prep_minutes"`
	Category    Category `json:"category"`
	ImageURL    string   `json:"image_url,omitempty"`
}

type Reconciler struct {
	api *httpx.Client

	// Double-tap guard on the public mutation entry points; UI layers are
	// not trusted to debounce.
	debounce time.Duration
	now      func() time.Time

	mu           sync.Mutex
	items        []Item
	orders       []Order
	pendingItems []OrderItem
	hasPending   bool
	lastAddID    string
	lastAddAt    time.Time
}

func New(api *httpx.Client, debounce time.Duration) *Reconciler {
	return &Reconciler{api: api, debounce: debounce, now: time.Now}
}

// AddItem inserts the item or bumps its quantity. While an order is pending
// staff triage the cart is locked and the add is a logged no-op, not an
// error: new food has to go in as a batch on the existing order instead.
func (r *Reconciler) AddItem(item Item) {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasPending {
		log.Printf("[cart] add %q blocked, an order is pending approval", item.Name)
		return
	}

	now := r.now()
	if r.debounce > 0 && item.ID == r.lastAddID && now.Sub(r.lastAddAt) < r.debounce {
		log.Printf("[cart] duplicate add %q dropped", item.Name)
		return
	}
	r.lastAddID = item.ID
	r.lastAddAt = now

	for i := range r.items {
		if r.items[i].ID == item.ID {
			r.items[i].Quantity += item.Quantity
			return
		}
	}
	r.items = append(r.items, item)
}

// UpdateQuantity sets the quantity for an item; zero or less removes it.
func (r *Reconciler) UpdateQuantity(id string, qty int) {
	if qty <= 0 {
		r.RemoveItem(id)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].Quantity = qty
			return
		}
	}
}

func (r *Reconciler) RemoveItem(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return
		}
	}
}

func (r *Reconciler) ClearCart() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}

func (r *Reconciler) Items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Reconciler) HasPendingOrder() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasPending
}

// PendingItems is the read-only mirror of the server-held pending order.
func (r *Reconciler) PendingItems() []OrderItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OrderItem, len(r.pendingItems))
	copy(out, r.pendingItems)
	return out
}

// Count is the sum of quantities across the cart.
func (r *Reconciler) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, it := range r.items {
		total += it.Quantity
	}
	return total
}

// Amount is the cart total in euros.
func (r *Reconciler) Amount() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0.0
	for _, it := range r.items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// PrepMinutes estimates preparation time. Platos and bebidas come out of
// parallel kitchen stations, so each category is estimated on its own — a
// single dish takes its own prep time, several take the slowest one plus a
// linear queuing penalty of one minute per dish — and the overall estimate
// is the slower pipeline, not the sum.
func (r *Reconciler) PrepMinutes() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	platos := pipelineMinutes(r.items, CategoryPlato)
	bebidas := pipelineMinutes(r.items, CategoryBebida)
	if platos > bebidas {
		return platos
	}
	return bebidas
}

func pipelineMinutes(items []Item, cat Category) int {
	count := 0
	max := 0
	for _, it := range items {
		if it.Category != cat {
			continue
		}
		count += it.Quantity
		if it.PrepMinutes > max {
			max = it.PrepMinutes
		}
	}
	switch {
	case count == 0:
		return 0
	case count == 1:
		return max
	default:
		return max + count
	}
}
