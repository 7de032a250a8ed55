package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"shopdesk-backend/internal/assistant"
	"shopdesk-backend/internal/catalog"
	"shopdesk-backend/internal/chat"
	"shopdesk-backend/internal/config"
	"shopdesk-backend/internal/db"
	"shopdesk-backend/internal/faq"
	"shopdesk-backend/internal/history"
	"shopdesk-backend/internal/intent"
	"shopdesk-backend/internal/nlp"
	"shopdesk-backend/internal/store"
	"shopdesk-backend/internal/types"
)

const (
	errorMessage      = "An error occurred"
	errorApology      = "I encountered an error. Please try again."
	defaultHistoryLen = 50
)

type Server struct {
	router        *chi.Mux
	cfg           config.Config
	logger        *zap.Logger
	store         *store.MemoryStore
	orders        *store.OrderBook
	database      *db.DB
	databaseStore *store.DatabaseStore
	recorder      history.Recorder
	gemini        *assistant.GeminiProvider
	dispatcher    *chat.Dispatcher
	now           func() time.Time
}

// NewServer wires storage, matchers and adapters from cfg. The caller owns Close.
func NewServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		store:  store.NewMemoryStore(cfg.SessionTTL),
		orders: store.SampleOrderBook(),
		now:    time.Now,
	}
	fail := func(err error) (*Server, error) {
		_ = s.Close()
		return nil, err
	}

	seed, err := store.NewFileFAQSource(cfg.FAQFile).Read()
	if err != nil {
		return fail(fmt.Errorf("failed to read faq file: %w", err))
	}
	entries := seed

	s.database, err = openDatabase(cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize database: %w", err))
	}
	if s.database != nil {
		if err := s.database.RunMigrations(); err != nil {
			return fail(fmt.Errorf("failed to run migrations: %w", err))
		}
		logger.Info("database migrations completed", zap.String("dialect", string(s.database.Dialect)))

		s.databaseStore = store.NewDatabaseStore(s.database, logger)
		added, err := s.databaseStore.SeedFAQs(ctx, seed)
		if err != nil {
			return fail(err)
		}
		entries, err = s.databaseStore.ListFAQs(ctx)
		if err != nil {
			return fail(err)
		}
		logger.Info("faqs loaded", zap.Int("seeded", added), zap.Int("total", len(entries)))
	} else {
		logger.Warn("no database configured, using the faq file only and skipping chat history",
			zap.String("faq_file", cfg.FAQFile), zap.Int("total", len(entries)))
	}

	norm := nlp.New(nlp.Strategy(cfg.Normalizer), nlp.WithStopwordsFile(cfg.StopwordsFile), nlp.WithLogger(logger))

	rules := intent.DefaultRules()
	if cfg.IntentRulesFile != "" {
		rules, err = intent.LoadRules(cfg.IntentRulesFile)
		if err != nil {
			return fail(fmt.Errorf("failed to load intent rules: %w", err))
		}
	}

	asst, err := s.newAssistant(ctx)
	if err != nil {
		return fail(err)
	}

	s.recorder = history.Nop{}
	if cfg.HistoryEnabled && s.databaseStore != nil {
		s.recorder = history.NewAsyncRecorder(s.databaseStore, cfg.HistoryBuffer, logger)
	}

	s.dispatcher = chat.NewDispatcher(chat.Deps{
		Dialogue:   chat.NewDialogue(s.store, s.orders),
		FAQ:        faq.NewMatcher(norm, entries),
		Classifier: intent.NewClassifier(rules),
		Assistant:  asst,
		Catalog: catalog.New(catalog.Options{
			BaseURL:      cfg.CatalogBaseURL,
			Timeout:      cfg.CatalogTimeout,
			ClientID:     cfg.CatalogClientID,
			ClientSecret: cfg.CatalogClientSecret,
			TokenURL:     cfg.CatalogTokenURL,
		}, logger),
		Recorder: s.recorder,
	}, logger)

	s.middleware()
	s.routes()
	return s, nil
}

// openDatabase prefers Postgres when DB_URL is set and falls back to SQLite.
// It returns nil when neither is configured.
func openDatabase(cfg config.Config, logger *zap.Logger) (*db.DB, error) {
	switch {
	case cfg.DatabaseURL != "":
		return db.NewPostgres(cfg.DatabaseURL, logger)
	case cfg.DatabasePath != "":
		return db.NewSQLite(cfg.DatabasePath, logger)
	}
	return nil, nil
}

func (s *Server) newAssistant(ctx context.Context) (*assistant.Client, error) {
	key := s.cfg.AssistantKey()
	if key == "" {
		s.logger.Warn("assistant credential is not set; general questions get a fixed reply",
			zap.String("provider", s.cfg.AssistantProvider))
		return assistant.New(nil, s.cfg.AssistantTimeout, s.logger), nil
	}
	switch s.cfg.AssistantProvider {
	case "", "openai":
		p := assistant.NewOpenAI(key,
			assistant.WithOpenAIModel(s.cfg.OpenAIModel),
			assistant.WithOpenAIBaseURL(s.cfg.OpenAIBaseURL))
		return assistant.New(p, s.cfg.AssistantTimeout, s.logger), nil
	case "gemini":
		g, err := assistant.NewGemini(ctx, key, s.cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		s.gemini = g
		return assistant.New(g, s.cfg.AssistantTimeout, s.logger), nil
	}
	return nil, fmt.Errorf("unknown assistant provider %q", s.cfg.AssistantProvider)
}

func (s *Server) middleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(s.recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", SessionHeader},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/chat", s.handleChat)
	s.router.Get("/order_status", s.handleOrderStatus)
	s.router.Get("/history", s.handleHistory)
	if s.cfg.StaticDir != "" {
		s.router.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
}

func (s *Server) Router() http.Handler { return s.router }

// Dispatcher exposes the chat pipeline for callers that skip HTTP.
func (s *Server) Dispatcher() *chat.Dispatcher { return s.dispatcher }

// Close drains pending history writes and releases the database and provider clients.
func (s *Server) Close() error {
	var errs []error
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}
	if s.gemini != nil {
		errs = append(errs, s.gemini.Close())
	}
	if s.database != nil {
		errs = append(errs, s.database.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.database != nil {
		if err := s.database.HealthCheck(); err != nil {
			s.logger.Error("database health check failed", zap.Error(err))
			s.writeJSON(w, http.StatusServiceUnavailable, types.HealthResponse{Status: "unhealthy", Timestamp: s.now()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, types.HealthResponse{Status: "healthy", Timestamp: s.now()})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := s.getOrCreateSessionID(w, r, req.SessionID)

	reply, err := s.dispatcher.Reply(r.Context(), sid, req.Message)
	if errors.Is(err, chat.ErrEmptyMessage) {
		s.writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "Message is required", Response: chat.EmptyMessagePrompt})
		return
	}
	if err != nil {
		s.logger.Error("chat reply failed", zap.String("session", sid), zap.Error(err))
		s.writeInternalError(w)
		return
	}
	s.writeJSON(w, http.StatusOK, types.ChatResponse{
		Response:  reply.Text,
		Timestamp: reply.Timestamp,
		SessionID: sid,
		Source:    string(reply.Source),
		Intent:    string(reply.Intent),
	})
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("order_id"))
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "Order ID is required")
		return
	}
	order, ok := s.orders.Order(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, types.ErrorResponse{
			Error:   "Order not found",
			Message: "No order found with ID: " + id,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.databaseStore == nil {
		s.writeError(w, http.StatusNotFound, "chat history is not enabled")
		return
	}
	sid := getSessionID(r)
	if sid == "" {
		s.writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	limit := defaultHistoryLen
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := s.databaseStore.ListChats(r.Context(), sid, limit)
	if err != nil {
		s.logger.Error("failed to list chat history", zap.String("session", sid), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errorMessage)
		return
	}
	out := types.HistoryResponse{SessionID: sid, Entries: make([]types.HistoryEntry, 0, len(recs))}
	for _, rec := range recs {
		out.Entries = append(out.Entries, types.HistoryEntry{
			UserMessage: rec.UserMessage,
			BotResponse: rec.BotResponse,
			Timestamp:   rec.Timestamp,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func (s *Server) writeInternalError(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: errorMessage, Response: errorApology})
}

// getOrCreateSessionID prefers the id sent in the body, then cookie, header and query.
// A new id is minted when none is present. The id is always echoed back.
func (s *Server) getOrCreateSessionID(w http.ResponseWriter, r *http.Request, fromBody string) string {
	sid := strings.TrimSpace(fromBody)
	if sid == "" {
		sid = getSessionID(r)
	}
	if sid == "" {
		sid = newSessionID()
		s.logger.Debug("creating new session", zap.String("session", sid), zap.String("path", r.URL.Path))
	}
	if c, err := GetSessionCookie(r); err != nil || c != sid {
		SetSessionCookie(w, r, sid)
	}
	w.Header().Set(SessionHeader, sid)
	return sid
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("panic while serving request",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.ByteString("stack", debug.Stack()))
			s.writeInternalError(w)
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
