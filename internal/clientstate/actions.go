package clientstate

import (
	"context"
	"fmt"
)

// Queue and arrival actions. Each one mutates on the server, then re-derives
// the projection; the server stays the single source of truth.

func (m *Machine) JoinQueue(ctx context.Context, partySize int) error {
	if partySize <= 0 {
		return fmt.Errorf("clientstate: invalid party size %d", partySize)
	}
	payload := map[string]int{"party_size": partySize}
	if err := m.api.PostJSON(ctx, "/waiting-list", payload, nil); err != nil {
		return err
	}
	return m.Refresh(ctx)
}

func (m *Machine) LeaveQueue(ctx context.Context) error {
	m.mu.Lock()
	waitingID := m.data.WaitingID
	m.mu.Unlock()
	if waitingID == nil {
		return fmt.Errorf("clientstate: not in the waiting list")
	}
	if err := m.api.Delete(ctx, fmt.Sprintf("/waiting-list/%d", *waitingID)); err != nil {
		return err
	}
	return m.Refresh(ctx)
}

// ConfirmArrival reports the QR-scan arrival code for an assigned table,
// moving the user to seated once the server accepts it.
func (m *Machine) ConfirmArrival(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("clientstate: empty arrival code")
	}
	payload := map[string]string{"code": code}
	if err := m.api.PostJSON(ctx, "/tables/confirm-arrival", payload, nil); err != nil {
		return err
	}
	return m.Refresh(ctx)
}
