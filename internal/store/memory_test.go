package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPendingIntent_PerSession(t *testing.T) {
	m := NewMemoryStore(0)
	_, ok := m.GetPendingIntent("a")
	require.False(t, ok)

	m.SetPendingIntent("a", "awaiting_order_id")
	m.SetPendingIntent("b", "awaiting_refund_order_id")

	typ, ok := m.GetPendingIntent("a")
	require.True(t, ok)
	require.Equal(t, "awaiting_order_id", typ)
	typ, _ = m.GetPendingIntent("b")
	require.Equal(t, "awaiting_refund_order_id", typ)
	require.Equal(t, 2, m.pendingCount())

	m.ClearPendingIntent("a")
	_, ok = m.GetPendingIntent("a")
	require.False(t, ok)
	require.Equal(t, 1, m.pendingCount())
}

func TestPendingIntent_TTL(t *testing.T) {
	m := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	m.SetPendingIntent("a", "awaiting_order_id")

	now = now.Add(30 * time.Second)
	_, ok := m.GetPendingIntent("a")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = m.GetPendingIntent("a")
	require.False(t, ok)
	require.Equal(t, 0, m.pendingCount())
}

func TestPendingIntent_NoTTLNeverExpires(t *testing.T) {
	m := NewMemoryStore(0)
	now := time.Now()
	m.now = func() time.Time { return now }
	m.SetPendingIntent("a", "x")
	now = now.Add(365 * 24 * time.Hour)
	_, ok := m.GetPendingIntent("a")
	require.True(t, ok)
}

func TestRefunds(t *testing.T) {
	m := NewMemoryStore(0)
	m.SetRefundStatus("456", "Initiated")
	s, ok := m.RefundStatus("456")
	require.True(t, ok)
	require.Equal(t, "Initiated", s)

	m.SetRefundStatus("456", "Completed")
	s, _ = m.RefundStatus("456")
	require.Equal(t, "Completed", s)

	_, ok = m.RefundStatus("999")
	require.False(t, ok)
}

func TestPendingIntent_ExpiredSessionsSweptOnWrite(t *testing.T) {
	m := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	for i := 0; i < 1000; i++ {
		m.SetPendingIntent(fmt.Sprintf("abandoned-%d", i), "awaiting_order_id")
	}
	require.Equal(t, 1000, m.pendingCount())

	now = now.Add(time.Hour)
	m.SetPendingIntent("fresh", "awaiting_refund_order_id")
	require.Equal(t, 1, m.pendingCount())
	typ, ok := m.GetPendingIntent("fresh")
	require.True(t, ok)
	require.Equal(t, "awaiting_refund_order_id", typ)
}

func TestPendingIntent_NoTTLKeepsEverySession(t *testing.T) {
	m := NewMemoryStore(0)
	now := time.Now()
	m.now = func() time.Time { return now }
	m.SetPendingIntent("a", "x")
	now = now.Add(24 * time.Hour)
	m.SetPendingIntent("b", "x")
	require.Equal(t, 2, m.pendingCount())
}

func TestMemoryStore_ConcurrentSessions(t *testing.T) {
	m := NewMemoryStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := string(rune('a' + i%26))
			m.SetPendingIntent(sid, "awaiting_order_id")
			m.GetPendingIntent(sid)
			m.SetRefundStatus(sid, "Initiated")
		}(i)
	}
	wg.Wait()
	require.Equal(t, 26, m.pendingCount())
}

func TestSampleOrderBook(t *testing.T) {
	b := SampleOrderBook()
	o, ok := b.Order("123")
	require.True(t, ok)
	require.Equal(t, "Shipped", o.Status)
	require.Equal(t, "2024-01-15", o.ETA())
	require.Equal(t, "TRACK123456", *o.TrackingNumber)

	o, ok = b.Order("456")
	require.True(t, ok)
	require.Nil(t, o.TrackingNumber)

	o, ok = b.Order("789")
	require.True(t, ok)
	require.Equal(t, "2024-01-10", o.ETA())

	_, ok = b.Order("999")
	require.False(t, ok)
}
