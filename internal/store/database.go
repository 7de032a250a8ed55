package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"shopdesk-backend/internal/db"
	"shopdesk-backend/internal/faq"
)

// DatabaseStore persists FAQs and chat history in Postgres or SQLite.
type DatabaseStore struct {
	db     *db.DB
	logger *zap.Logger
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB, logger *zap.Logger) *DatabaseStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseStore{db: database, logger: logger}
}

// ChatRecord is one answered message.
type ChatRecord struct {
	SessionID   string
	UserMessage string
	BotResponse string
	Timestamp   time.Time
}

// SeedFAQs inserts entries whose id is not stored yet and reports how many were added.
func (ds *DatabaseStore) SeedFAQs(ctx context.Context, entries []faq.Entry) (int, error) {
	query := `
		INSERT INTO faqs (id, question, keywords, response)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	added := 0
	for _, e := range entries {
		res, err := ds.db.ExecContext(ctx, query, e.ID, e.Question, faq.EncodeKeywords(e.Keywords), e.Response)
		if err != nil {
			return added, fmt.Errorf("failed to seed faq %d: %w", e.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			added++
		}
	}
	return added, nil
}

// ListFAQs returns every stored FAQ ordered by id. Unparseable keyword lists load as empty.
func (ds *DatabaseStore) ListFAQs(ctx context.Context) ([]faq.Entry, error) {
	rows, err := ds.db.QueryContext(ctx, `SELECT id, question, keywords, response FROM faqs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query faqs: %w", err)
	}
	defer rows.Close()

	var out []faq.Entry
	for rows.Next() {
		var (
			e   faq.Entry
			raw string
		)
		if err := rows.Scan(&e.ID, &e.Question, &raw, &e.Response); err != nil {
			return nil, fmt.Errorf("failed to scan faq row: %w", err)
		}
		e.Keywords = faq.ParseKeywords(raw)
		if e.Keywords == nil && raw != "[]" {
			ds.logger.Debug("faq keywords unparseable, using empty set", zap.Int("faq_id", e.ID))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate faq rows: %w", err)
	}
	return out, nil
}

// SaveChat appends one chat exchange to the history table.
func (ds *DatabaseStore) SaveChat(ctx context.Context, rec ChatRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	query := `
		INSERT INTO chat_history (session_id, user_message, bot_response, timestamp)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := ds.db.ExecContext(ctx, query, rec.SessionID, rec.UserMessage, rec.BotResponse, rec.Timestamp.UTC()); err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

// ListChats returns the latest exchanges of a session, oldest first.
func (ds *DatabaseStore) ListChats(ctx context.Context, sessionID string, limit int) ([]ChatRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT session_id, user_message, bot_response, timestamp
		FROM chat_history
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := ds.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var out []ChatRecord
	for rows.Next() {
		var r ChatRecord
		if err := rows.Scan(&r.SessionID, &r.UserMessage, &r.BotResponse, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat history row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat history rows: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}
