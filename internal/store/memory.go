package store

import (
	"sync"
	"time"
)

// PendingIntent is the follow-up a session is waiting on.
type PendingIntent struct {
	Type      string
	UpdatedAt time.Time
}

// MemoryStore keeps per-session conversation state and refund records in process memory.
type MemoryStore struct {
	mu sync.RWMutex
	// Pending follow-up per session
	pendingBySession map[string]PendingIntent
	// orderID -> refund status
	refunds map[string]string
	// zero means pending state never expires
	pendingTTL time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

func NewMemoryStore(pendingTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		pendingBySession: make(map[string]PendingIntent),
		refunds:          make(map[string]string),
		pendingTTL:       pendingTTL,
		now:              time.Now,
	}
}

// SetPendingIntent stores the pending follow-up for a session.
func (m *MemoryStore) SetPendingIntent(sessionID, typ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepExpired(now)
	m.pendingBySession[sessionID] = PendingIntent{Type: typ, UpdatedAt: now}
}

// sweepExpired drops expired follow-ups at most once per TTL window, so
// abandoned session ids cannot accumulate. Callers hold the write lock.
func (m *MemoryStore) sweepExpired(now time.Time) {
	if m.pendingTTL <= 0 || now.Sub(m.lastSweep) < m.pendingTTL {
		return
	}
	m.lastSweep = now
	for sid, p := range m.pendingBySession {
		if now.Sub(p.UpdatedAt) > m.pendingTTL {
			delete(m.pendingBySession, sid)
		}
	}
}

// GetPendingIntent returns the pending follow-up if one is set and not expired.
func (m *MemoryStore) GetPendingIntent(sessionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pendingBySession[sessionID]
	if !ok {
		return "", false
	}
	if m.pendingTTL > 0 && m.now().Sub(p.UpdatedAt) > m.pendingTTL {
		delete(m.pendingBySession, sessionID)
		return "", false
	}
	return p.Type, true
}

// ClearPendingIntent removes any pending follow-up for the session.
func (m *MemoryStore) ClearPendingIntent(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingBySession, sessionID)
}

// pendingCount counts sessions that currently hold a follow-up, expired or not.
func (m *MemoryStore) pendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pendingBySession)
}

// Refund helpers

func (m *MemoryStore) SetRefundStatus(orderID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[orderID] = status
}

func (m *MemoryStore) RefundStatus(orderID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.refunds[orderID]
	return s, ok
}
