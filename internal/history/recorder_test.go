package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"shopdesk-backend/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memorySink struct {
	mu      sync.Mutex
	records []store.ChatRecord
	err     error
	block   chan struct{}
}

func (s *memorySink) SaveChat(ctx context.Context, rec store.ChatRecord) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestAsyncRecorder_DrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	r := NewAsyncRecorder(sink, 8, nil)
	for i := 0; i < 5; i++ {
		r.Record(store.ChatRecord{SessionID: "s", UserMessage: "m", BotResponse: "r"})
	}
	require.NoError(t, r.Close())
	require.Equal(t, 5, sink.count())

	// closed recorders ignore new records and Close is idempotent
	r.Record(store.ChatRecord{SessionID: "late"})
	require.NoError(t, r.Close())
	require.Equal(t, 5, sink.count())
}

func TestAsyncRecorder_FullQueueDoesNotBlock(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	r := NewAsyncRecorder(sink, 1, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			r.Record(store.ChatRecord{SessionID: "s"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(sink.block)
	require.NoError(t, r.Close())
	// one in flight plus one buffered at most
	require.LessOrEqual(t, sink.count(), 2)
	require.GreaterOrEqual(t, sink.count(), 1)
}

func TestAsyncRecorder_SinkErrorsAreSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	r := NewAsyncRecorder(sink, 4, nil)
	r.Record(store.ChatRecord{SessionID: "s"})
	require.NoError(t, r.Close())
	require.Equal(t, 1, sink.count())
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(store.ChatRecord{})
	require.NoError(t, r.Close())
}
