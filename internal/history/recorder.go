// Package history records answered chat exchanges without slowing down replies.
package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"shopdesk-backend/internal/store"
)

// Sink persists one exchange. *store.DatabaseStore implements it.
type Sink interface {
	SaveChat(ctx context.Context, rec store.ChatRecord) error
}

// Recorder accepts exchanges for storage. Record must not block.
type Recorder interface {
	Record(rec store.ChatRecord)
	Close() error
}

// Nop drops every record. Used when history is disabled.
type Nop struct{}

func (Nop) Record(store.ChatRecord) {}
func (Nop) Close() error            { return nil }

const defaultWriteTimeout = 5 * time.Second

// AsyncRecorder queues records and writes them from a single worker goroutine.
// A full queue drops the record.
type AsyncRecorder struct {
	sink         Sink
	logger       *zap.Logger
	queue        chan store.ChatRecord
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsyncRecorder(sink Sink, buffer int, logger *zap.Logger) *AsyncRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	r := &AsyncRecorder{
		sink:         sink,
		logger:       logger,
		queue:        make(chan store.ChatRecord, buffer),
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *AsyncRecorder) Record(rec store.ChatRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("history queue full, dropping record", zap.String("session", rec.SessionID))
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		if err := r.sink.SaveChat(ctx, rec); err != nil {
			r.logger.Error("failed to record chat history", zap.String("session", rec.SessionID), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting records, drains the queue and waits for the worker.
func (r *AsyncRecorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
	return nil
}
