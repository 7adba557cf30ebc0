// Package discount persists the one client-local durable record: a
// write-once discount awarded on a first minigame win, consumed later in a
// payment flow. Eligibility lives here, not at call sites.
package discount

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"

	"mesaclient/internal/session"
)

// One fixed storage key per installed app instance.
const storageKey = "mesaclient_discount.json"

type Record struct {
	Amount      float64 `json:"amount"`
	Received    bool    `json:"received"`
	ProfileCode string  `json:"profile_code,omitempty"`
}

type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, storageKey)}
}

type AwardOption func(*Record)

// WithProfileCode attaches the promotional profile code some call sites
// carry.
func WithProfileCode(code string) AwardOption {
	return func(r *Record) { r.ProfileCode = code }
}

// Load returns the stored record; a missing file is a zero record, not an
// error.
func (s *Store) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// AwardIfFirstWin upgrades received false → true exactly once. Repeat calls
// return awarded=false and leave the stored amount untouched until Clear.
// Anonymous sessions are never eligible.
func (s *Store) AwardIfFirstWin(sess session.Session, amount float64, opts ...AwardOption) (bool, error) {
	if sess == nil || sess.Anonymous() {
		log.Printf("[discount] award skipped for anonymous user")
		return false, nil
	}
	if amount <= 0 {
		return false, errors.New("discount: non-positive amount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return false, err
	}
	if current.Received {
		return false, nil
	}

	rec := Record{Amount: amount, Received: true}
	for _, opt := range opts {
		opt(&rec)
	}
	if err := s.save(rec); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes the record after the discount is consumed in a payment flow.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) load() (Record, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, nil
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt record is treated as absent rather than wedging the
		// award flow forever.
		log.Printf("[discount] corrupt record, resetting: %v", err)
		return Record{}, nil
	}
	return rec, nil
}

func (s *Store) save(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
