// Package clientstate derives the user's ordering-flow state from the
// authoritative /tables/my-status endpoint. The projection is replaced
// wholesale on every refresh; partial patches are never applied.
package clientstate

import (
	"context"
	"log"
	"sync"

	"mesaclient/internal/httpx"
)

type State string

const (
	StateLoading        State = "loading"
	StateNotInQueue     State = "not_in_queue"
	StateInQueue        State = "in_queue"
	StateAssigned       State = "assigned"
	StateSeated         State = "seated"
	StateDisplaced      State = "displaced"
	StateConfirmPending State = "confirm_pending"
	StateError          State = "error"
)

type DeliveryConfirmation string

const (
	DeliveryPending       DeliveryConfirmation = "pending"
	DeliveryConfirmed     DeliveryConfirmation = "confirmed"
	DeliveryBillRequested DeliveryConfirmation = "bill_requested"
)

type Table struct {
	ID     int64  `json:"id"`
	Number int    `json:"number"`
	Zone   string `json:"zone,omitempty"`
}

// Data is the read-only projection screens render. At most one of
// WaitingPosition, AssignedTable and OccupiedTable is populated, determined
// solely by State. DeliveryConfirmation only means anything while seated.
type Data struct {
	State                State
	WaitingPosition      *int
	WaitingID            *int64
	AssignedTable        *Table
	OccupiedTable        *Table
	DeliveryConfirmation DeliveryConfirmation
}

type statusResponse struct {
	Status        string `json:"status"`
	Table         *Table `json:"table,omitempty"`
	TableStatus   string `json:"table_status,omitempty"`
	Position      *int   `json:"position,omitempty"`
	WaitingListID *int64 `json:"waitingListId,omitempty"`
}

type activationResponse struct {
	Success   bool `json:"success"`
	Activated bool `json:"activated"`
}

type Machine struct {
	api *httpx.Client

	mu         sync.Mutex
	refreshing bool
	gen        uint64
	data       Data
}

func New(api *httpx.Client) *Machine {
	return &Machine{api: api, data: Data{State: StateLoading}}
}

// Data returns a snapshot of the current projection.
func (m *Machine) Data() Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Refresh re-derives the projection from the server. A refresh requested
// while one is in flight is dropped, not queued: socket bursts must not
// thunder-herd the status endpoint. Droppers do not retry; the next push or
// a pull-to-refresh covers them.
func (m *Machine) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.refreshing {
		m.mu.Unlock()
		return nil
	}
	m.refreshing = true
	gen := m.gen
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.refreshing = false
		m.mu.Unlock()
	}()

	st, err := m.fetchStatus(ctx)
	if err != nil {
		m.applyError(gen)
		return err
	}

	// A reservation falling due can move the user straight to assigned, so
	// check it for everyone not already at a table. Checking for seated or
	// confirm-pending users is wasted work and races the delivery
	// confirmation flow.
	if st.Status != "seated" && st.Status != "confirm_pending" {
		activated, actErr := m.checkAndActivateReservation(ctx)
		switch {
		case actErr != nil:
			// Best effort: keep the first status response.
			log.Printf("[clientstate] reservation check failed, keeping first status: %v", actErr)
		case activated:
			st, err = m.fetchStatus(ctx)
			if err != nil {
				// Activation went through but the re-fetch did not; the
				// projection would be stale, so fail closed.
				m.applyError(gen)
				return err
			}
		}
	}

	m.apply(gen, st)
	return nil
}

// Invalidate is the wake-signal entry point socket handlers call. Errors are
// swallowed: the fail-closed error state is already applied, and handlers
// have no one to report to.
func (m *Machine) Invalidate() {
	if err := m.Refresh(context.Background()); err != nil {
		log.Printf("[clientstate] refresh on invalidate: %v", err)
	}
}

// Close invalidates the mount generation so responses that land afterwards
// cannot write into a dead projection.
func (m *Machine) Close() {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()
}

func (m *Machine) fetchStatus(ctx context.Context) (statusResponse, error) {
	var st statusResponse
	err := m.api.GetJSON(ctx, "/tables/my-status", &st)
	return st, err
}

func (m *Machine) checkAndActivateReservation(ctx context.Context) (bool, error) {
	var res activationResponse
	if err := m.api.PostJSON(ctx, "/reservations/check-and-activate", nil, &res); err != nil {
		return false, err
	}
	return res.Activated, nil
}

// apply swaps in a fresh projection. Ancillary fields start cleared so stale
// waiting-list data can never bleed into an assigned or seated render.
func (m *Machine) apply(gen uint64, st statusResponse) {
	next := Data{}

	switch st.Status {
	case "in_queue":
		next.State = StateInQueue
		next.WaitingPosition = st.Position
		next.WaitingID = st.WaitingListID
	case "assigned":
		next.State = StateAssigned
		next.AssignedTable = st.Table
	case "confirm_pending":
		next.State = StateConfirmPending
		next.AssignedTable = st.Table
	case "seated":
		next.State = StateSeated
		next.OccupiedTable = st.Table
		next.DeliveryConfirmation = deliveryConfirmationFrom(st.TableStatus)
	case "displaced":
		next.State = StateDisplaced
	case "not_in_queue":
		next.State = StateNotInQueue
	default:
		// Unknown server status: the conservative reading.
		next.State = StateNotInQueue
	}

	m.mu.Lock()
	if m.gen == gen {
		m.data = next
	}
	m.mu.Unlock()
}

func (m *Machine) applyError(gen uint64) {
	m.mu.Lock()
	if m.gen == gen {
		m.data = Data{State: StateError}
	}
	m.mu.Unlock()
}

func deliveryConfirmationFrom(tableStatus string) DeliveryConfirmation {
	switch tableStatus {
	case "confirmed":
		return DeliveryConfirmed
	case "bill_requested":
		return DeliveryBillRequested
	default:
		return DeliveryPending
	}
}
