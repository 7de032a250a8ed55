package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shopdesk-backend/internal/assistant"
	"shopdesk-backend/internal/catalog"
	"shopdesk-backend/internal/faq"
	"shopdesk-backend/internal/intent"
	"shopdesk-backend/internal/nlp"
	"shopdesk-backend/internal/store"
)

type fakeAssistant struct {
	result assistant.Result
	calls  int
}

func (f *fakeAssistant) Reply(ctx context.Context, message string) assistant.Result {
	f.calls++
	return f.result
}

type fakeCatalog struct {
	get      catalog.ProductResult
	list     catalog.ListResult
	getIDs   []int
	listArgs []int
}

func (f *fakeCatalog) List(ctx context.Context, limit int) catalog.ListResult {
	f.listArgs = append(f.listArgs, limit)
	return f.list
}

func (f *fakeCatalog) Get(ctx context.Context, id int) catalog.ProductResult {
	f.getIDs = append(f.getIDs, id)
	return f.get
}

type captureRecorder struct {
	mu      sync.Mutex
	records []store.ChatRecord
}

func (r *captureRecorder) Record(rec store.ChatRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *captureRecorder) Close() error { return nil }

type harness struct {
	d         *Dispatcher
	dialogue  *Dialogue
	states    *store.MemoryStore
	assistant *fakeAssistant
	catalog   *fakeCatalog
	recorder  *captureRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	states := store.NewMemoryStore(0)
	dialogue := NewDialogue(states, store.SampleOrderBook())
	matcher := faq.NewMatcher(nlp.New(nlp.StrategyLinguistic), []faq.Entry{{
		ID:       1,
		Question: "What are your shipping options?",
		Keywords: []string{"shipping", "delivery time"},
		Response: "We ship in 5-7 business days.",
	}})
	h := &harness{
		dialogue:  dialogue,
		states:    states,
		assistant: &fakeAssistant{result: assistant.Result{Outcome: assistant.Success, Text: "Here is a joke."}},
		catalog: &fakeCatalog{
			get: catalog.ProductResult{Outcome: catalog.Success, Product: catalog.Product{ID: 3, Title: "Cotton Jacket", Price: 55.5, Category: "men's clothing"}},
			list: catalog.ListResult{Outcome: catalog.Success, Products: []catalog.Product{
				{ID: 1, Title: "Backpack", Price: 109.95},
				{ID: 2, Title: "T-Shirt", Price: 22.3},
			}},
		},
		recorder: &captureRecorder{},
	}
	h.d = NewDispatcher(Deps{
		Dialogue:   dialogue,
		FAQ:        matcher,
		Classifier: intent.NewClassifier(intent.DefaultRules()),
		Assistant:  h.assistant,
		Catalog:    h.catalog,
		Recorder:   h.recorder,
	}, nil)
	h.d.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return h
}

func (h *harness) say(t *testing.T, session, message string) Reply {
	t.Helper()
	r, err := h.d.Reply(context.Background(), session, message)
	require.NoError(t, err)
	return r
}

func TestReply_Greeting(t *testing.T) {
	h := newHarness(t)
	r := h.say(t, "s1", "hello")
	require.Equal(t, intent.Greeting, r.Intent)
	require.Equal(t, GreetingReply, r.Text)
	require.Equal(t, SourceIntent, r.Source)
	require.Equal(t, Idle, h.dialogue.State("s1"))
	require.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), r.Timestamp)
}

func TestReply_OrderStatusFlow(t *testing.T) {
	h := newHarness(t)
	r := h.say(t, "s1", "where is my order")
	require.Equal(t, intent.OrderStatus, r.Intent)
	require.Equal(t, AskOrderIDReply, r.Text)
	require.Equal(t, AwaitingOrderID, h.dialogue.State("s1"))

	r = h.say(t, "s1", "123")
	require.Equal(t, SourceSlot, r.Source)
	require.Contains(t, r.Text, "Shipped")
	require.Contains(t, r.Text, "TRACK123456")
	require.Contains(t, r.Text, "Product A, Product B")
	require.Equal(t, Idle, h.dialogue.State("s1"))
}

func TestReply_UnknownOrderRetries(t *testing.T) {
	h := newHarness(t)
	h.say(t, "s1", "track my order please")

	r := h.say(t, "s1", "999")
	require.Contains(t, r.Text, "couldn't find an order with ID 999")
	require.Equal(t, AwaitingOrderID, h.dialogue.State("s1"))

	r = h.say(t, "s1", "123")
	require.Contains(t, r.Text, "Shipped")
	require.Equal(t, Idle, h.dialogue.State("s1"))
}

func TestReply_RefundFlow(t *testing.T) {
	h := newHarness(t)
	r := h.say(t, "s1", "I want a refund")
	require.Equal(t, intent.Refund, r.Intent)
	require.Equal(t, AwaitingRefundOrderID, h.dialogue.State("s1"))

	r = h.say(t, "s1", "456")
	require.Contains(t, r.Text, "initiated")
	status, ok := h.states.RefundStatus("456")
	require.True(t, ok)
	require.Equal(t, RefundInitiated, status)
	require.Equal(t, Idle, h.dialogue.State("s1"))
}

func TestReply_UnknownRefundOrderEndsFlow(t *testing.T) {
	h := newHarness(t)
	h.say(t, "s1", "refund")

	r := h.say(t, "s1", "999")
	require.Contains(t, r.Text, "no refund was started")
	require.Equal(t, Idle, h.dialogue.State("s1"))
	_, ok := h.states.RefundStatus("999")
	require.False(t, ok)
}

func TestReply_ShortInputFallsThroughWhilePending(t *testing.T) {
	h := newHarness(t)
	h.say(t, "s1", "where is my order")

	// too short for an order id, classified as General which clears the follow-up
	r := h.say(t, "s1", "12")
	require.Equal(t, SourceAssistant, r.Source)
	require.Equal(t, Idle, h.dialogue.State("s1"))
}

func TestReply_FAQKeepsPendingState(t *testing.T) {
	h := newHarness(t)
	h.say(t, "s1", "where is my order")

	r := h.say(t, "s1", "what is your shipping cost")
	require.Equal(t, SourceFAQ, r.Source)
	require.Equal(t, "We ship in 5-7 business days.", r.Text)
	require.Empty(t, r.Intent)
	require.Equal(t, AwaitingOrderID, h.dialogue.State("s1"))
}

func TestReply_IntentOverwritesPendingState(t *testing.T) {
	h := newHarness(t)
	h.say(t, "s1", "where is my order")
	h.say(t, "s1", "actually I want a refund")
	require.Equal(t, AwaitingRefundOrderID, h.dialogue.State("s1"))
	h.say(t, "s1", "hi again")
	require.Equal(t, Idle, h.dialogue.State("s1"))
}

func TestReply_SessionsAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.say(t, "alice", "where is my order")
	h.say(t, "bob", "refund")

	require.Equal(t, AwaitingOrderID, h.dialogue.State("alice"))
	require.Equal(t, AwaitingRefundOrderID, h.dialogue.State("bob"))

	r := h.say(t, "bob", "123")
	require.Contains(t, r.Text, "initiated")
	require.Equal(t, AwaitingOrderID, h.dialogue.State("alice"))
}

func TestReply_EmptyMessage(t *testing.T) {
	h := newHarness(t)
	h.say(t, "s1", "where is my order")

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := h.d.Reply(context.Background(), "s1", msg)
		require.ErrorIs(t, err, ErrEmptyMessage)
	}
	require.Equal(t, AwaitingOrderID, h.dialogue.State("s1"))
	require.Len(t, h.recorder.records, 1)
}

func TestReply_Assistant(t *testing.T) {
	cases := []struct {
		name   string
		result assistant.Result
		want   string
	}{
		{"success", assistant.Result{Outcome: assistant.Success, Text: "Why did the parcel cross the road?"}, "Why did the parcel cross the road?"},
		{"not configured", assistant.Result{Outcome: assistant.NotConfigured}, AssistantNotConfiguredReply},
		{"timeout", assistant.Result{Outcome: assistant.Timeout}, AssistantTimeoutReply},
		{"transport", assistant.Result{Outcome: assistant.TransportError}, AssistantFailureReply},
		{"service", assistant.Result{Outcome: assistant.ServiceError}, AssistantFailureReply},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.assistant.result = tc.result
			r := h.say(t, "s1", "tell me a joke")
			require.Equal(t, tc.want, r.Text)
			require.Equal(t, SourceAssistant, r.Source)
			require.Equal(t, intent.General, r.Intent)
			require.Equal(t, 1, h.assistant.calls)
		})
	}
}

func TestReply_Commands(t *testing.T) {
	h := newHarness(t)
	h.say(t, "s1", "where is my order")

	r := h.say(t, "s1", "product 3")
	require.Equal(t, SourceCommand, r.Source)
	require.Equal(t, "Cotton Jacket (ID 3) costs $55.50. Category: men's clothing.", r.Text)
	require.Equal(t, []int{3}, h.catalog.getIDs)
	// commands do not consume the pending follow-up
	require.Equal(t, AwaitingOrderID, h.dialogue.State("s1"))

	r = h.say(t, "s1", "Products 50")
	require.Equal(t, SourceCommand, r.Source)
	require.Equal(t, "Here are some of our products:\n- #1 Backpack: $109.95\n- #2 T-Shirt: $22.30", r.Text)

	h.say(t, "s1", "products 0")
	require.Equal(t, []int{catalog.MaxListLimit, 1}, h.catalog.listArgs)
}

func TestReply_ProductIntent(t *testing.T) {
	h := newHarness(t)

	r := h.say(t, "s1", "show me your products")
	require.Equal(t, SourceCatalog, r.Source)
	require.Equal(t, intent.Product, r.Intent)
	require.Equal(t, []int{defaultListSize}, h.catalog.listArgs)

	r = h.say(t, "s1", "what is the price of product 3?")
	require.Equal(t, SourceCatalog, r.Source)
	require.Equal(t, []int{3}, h.catalog.getIDs)

	r = h.say(t, "s1", "do you sell gift cards")
	require.Equal(t, SourceIntent, r.Source)
	require.Equal(t, ProductPromptReply, r.Text)
	require.Len(t, h.catalog.getIDs, 1)
	require.Len(t, h.catalog.listArgs, 1)
}

func TestReply_ProductIntentNeedsMarkedID(t *testing.T) {
	h := newHarness(t)

	r := h.say(t, "s1", "I bought 3 items, what's the price?")
	require.Equal(t, intent.Product, r.Intent)
	require.Equal(t, ProductPromptReply, r.Text)
	require.Empty(t, h.catalog.getIDs)

	for _, msg := range []string{"price of #3", "is item id 3 in stock", "product no. 3 price", "price for product #3"} {
		h.say(t, "s1", msg)
	}
	require.Equal(t, []int{3, 3, 3, 3}, h.catalog.getIDs)
}

func TestReply_CatalogFailures(t *testing.T) {
	h := newHarness(t)

	h.catalog.get = catalog.ProductResult{Outcome: catalog.NotFound}
	require.Equal(t, "I couldn't find a product with ID 77.", h.say(t, "s1", "product 77").Text)

	for _, o := range []catalog.Outcome{catalog.Timeout, catalog.TransportError, catalog.Unavailable} {
		h.catalog.get = catalog.ProductResult{Outcome: o}
		h.catalog.list = catalog.ListResult{Outcome: o}
		require.Equal(t, CatalogUnavailableReply, h.say(t, "s1", "product 1").Text)
		require.Equal(t, CatalogUnavailableReply, h.say(t, "s1", "products 3").Text)
	}

	h.catalog.list = catalog.ListResult{Outcome: catalog.Success}
	require.Equal(t, EmptyCatalogReply, h.say(t, "s1", "products 3").Text)
}

func TestReply_RecordsHistory(t *testing.T) {
	h := newHarness(t)
	h.say(t, "", "hello")

	require.Len(t, h.recorder.records, 1)
	rec := h.recorder.records[0]
	require.Equal(t, DefaultSession, rec.SessionID)
	require.Equal(t, "hello", rec.UserMessage)
	require.Equal(t, GreetingReply, rec.BotResponse)
}

func TestIsSlotValue(t *testing.T) {
	for _, s := range []string{"123", "0001", "987654321"} {
		require.True(t, IsSlotValue(s), s)
	}
	for _, s := range []string{"", "12", "12a", "１２３", "-123", "12 3"} {
		require.False(t, IsSlotValue(s), s)
	}
}

func TestOrderStatusReply(t *testing.T) {
	book := store.SampleOrderBook()

	o, _ := book.Order("456")
	require.Equal(t, "Order 456 is Processing. Estimated delivery: 2024-01-20. Items: Product C.", orderStatusReply(o))

	o, _ = book.Order("789")
	require.Equal(t, "Order 789 is Delivered. Tracking number: TRACK789012. Delivered on 2024-01-10. Items: Product D.", orderStatusReply(o))
}
