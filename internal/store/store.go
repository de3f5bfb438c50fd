package store

import (
	"sync"
	"time"
)

// Session is everything learned so far about one reference token. Fields are
// filled in as reconciliation discovers them; a zero value means "unknown".
type Session struct {
	OrderID       string
	PaymentLinkID string
	CreatedAt     time.Time
}

// Store associates reference tokens with sessions. Put replaces the whole
// record; Merge only fills fields that are still empty — in particular a
// known order id is never replaced by a different one, first discovery wins.
// The store applies no expiry; callers enforce their own trust windows.
type Store interface {
	Put(ref string, s Session) error
	Merge(ref string, s Session) error
	Get(ref string) (Session, bool, error)
}

// Memory is the default process-local store. Contents are lost on restart,
// which the verification cascade compensates for by falling back to order
// search.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Session)}
}

func (m *Memory) Put(ref string, s Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.sessions[ref] = s
	m.mu.Unlock()
	return nil
}

func (m *Memory) Merge(ref string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[ref]
	if !ok {
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now().UTC()
		}
		m.sessions[ref] = s
		return nil
	}
	if cur.OrderID == "" {
		cur.OrderID = s.OrderID
	}
	if cur.PaymentLinkID == "" {
		cur.PaymentLinkID = s.PaymentLinkID
	}
	m.sessions[ref] = cur
	return nil
}

func (m *Memory) Get(ref string) (Session, bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[ref]
	m.mu.Unlock()
	return s, ok, nil
}
