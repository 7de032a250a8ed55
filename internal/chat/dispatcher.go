// Package chat turns one customer message into one reply.
//
// A message is tried against, in order: shorthand catalog commands, the pending
// follow-up of its session, the FAQ matcher, and finally intent rules. Adapter
// failures are mapped to fixed replies here and never surface as errors.
package chat

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopdesk-backend/internal/assistant"
	"shopdesk-backend/internal/catalog"
	"shopdesk-backend/internal/faq"
	"shopdesk-backend/internal/history"
	"shopdesk-backend/internal/intent"
	"shopdesk-backend/internal/nlp"
	"shopdesk-backend/internal/store"
)

// ErrEmptyMessage is returned for blank input. No state is touched.
var ErrEmptyMessage = errors.New("chat: message is required")

// DefaultSession is used when a caller does not name a session.
const DefaultSession = "default"

// Source names the branch that produced a reply.
type Source string

const (
	SourceCommand   Source = "command"
	SourceSlot      Source = "slot"
	SourceFAQ       Source = "faq"
	SourceIntent    Source = "intent"
	SourceCatalog   Source = "catalog"
	SourceAssistant Source = "assistant"
)

type Reply struct {
	Text      string
	Source    Source
	Intent    intent.Intent // empty unless the message was classified
	Timestamp time.Time
}

type FAQMatcher interface {
	Match(message string) (faq.MatchResult, bool)
}

type IntentClassifier interface {
	Classify(message string) intent.Intent
}

type Assistant interface {
	Reply(ctx context.Context, message string) assistant.Result
}

type Catalog interface {
	List(ctx context.Context, limit int) catalog.ListResult
	Get(ctx context.Context, id int) catalog.ProductResult
}

// Deps are the collaborators of a Dispatcher. Recorder may be nil.
type Deps struct {
	Dialogue   *Dialogue
	FAQ        FAQMatcher
	Classifier IntentClassifier
	Assistant  Assistant
	Catalog    Catalog
	Recorder   history.Recorder
}

type Dispatcher struct {
	dialogue   *Dialogue
	faq        FAQMatcher
	classifier IntentClassifier
	assistant  Assistant
	catalog    Catalog
	recorder   history.Recorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewDispatcher(deps Deps, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := deps.Recorder
	if rec == nil {
		rec = history.Nop{}
	}
	return &Dispatcher{
		dialogue:   deps.Dialogue,
		faq:        deps.FAQ,
		classifier: deps.Classifier,
		assistant:  deps.Assistant,
		catalog:    deps.Catalog,
		recorder:   rec,
		logger:     logger,
		now:        time.Now,
	}
}

// Reply answers message for sessionID and queues the exchange for history.
func (d *Dispatcher) Reply(ctx context.Context, sessionID, message string) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{}, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = DefaultSession
	}

	r := d.reply(ctx, sessionID, message)
	r.Timestamp = d.now()
	d.logger.Debug("chat reply",
		zap.String("session", sessionID),
		zap.String("source", string(r.Source)),
		zap.String("intent", string(r.Intent)))

	d.recorder.Record(store.ChatRecord{
		SessionID:   sessionID,
		UserMessage: message,
		BotResponse: r.Text,
		Timestamp:   r.Timestamp,
	})
	return r, nil
}

func (d *Dispatcher) reply(ctx context.Context, sessionID, message string) Reply {
	if r, ok := d.command(ctx, message); ok {
		return r
	}
	if text, ok := d.dialogue.Fill(sessionID, message); ok {
		return Reply{Text: text, Source: SourceSlot}
	}
	if m, ok := d.faq.Match(message); ok {
		return Reply{Text: m.Entry.Response, Source: SourceFAQ}
	}

	in := d.classifier.Classify(message)
	d.dialogue.Apply(sessionID, in)
	switch in {
	case intent.Greeting:
		return Reply{Text: GreetingReply, Source: SourceIntent, Intent: in}
	case intent.OrderStatus:
		return Reply{Text: AskOrderIDReply, Source: SourceIntent, Intent: in}
	case intent.Refund:
		return Reply{Text: AskRefundOrderIDReply, Source: SourceIntent, Intent: in}
	case intent.Product:
		r := d.product(ctx, message)
		r.Intent = in
		return r
	}
	return Reply{Text: d.ask(ctx, message), Source: SourceAssistant, Intent: intent.General}
}

// command handles "product <id>" and "products <n>" regardless of session state.
func (d *Dispatcher) command(ctx context.Context, message string) (Reply, bool) {
	fields := strings.Fields(strings.ToLower(message))
	if len(fields) != 2 {
		return Reply{}, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return Reply{}, false
	}
	switch fields[0] {
	case "product":
		return Reply{Text: d.lookup(ctx, n), Source: SourceCommand}, true
	case "products":
		return Reply{Text: d.list(ctx, catalog.ClampLimit(n)), Source: SourceCommand}, true
	}
	return Reply{}, false
}

var listingWords = map[string]struct{}{
	"list": {}, "show": {}, "browse": {}, "all": {}, "catalog": {}, "catalogue": {}, "see": {},
}

// productRef finds an id written as "#3", "product 3", "item no. 3" or "id: 3".
// Bare numbers such as quantities are not product references.
var productRef = regexp.MustCompile(`(?i)(?:#|\b(?:product|item|id)\b(?:\s*(?:id|#|no\.?|number))?[\s:]*#?)\s*(\d+)\b`)

func (d *Dispatcher) product(ctx context.Context, message string) Reply {
	if m := productRef.FindStringSubmatch(message); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil && id > 0 {
			return Reply{Text: d.lookup(ctx, id), Source: SourceCatalog}
		}
	}
	for _, w := range strings.Fields(nlp.Clean(message)) {
		if _, ok := listingWords[w]; ok {
			return Reply{Text: d.list(ctx, defaultListSize), Source: SourceCatalog}
		}
	}
	return Reply{Text: ProductPromptReply, Source: SourceIntent}
}

func (d *Dispatcher) lookup(ctx context.Context, id int) string {
	res := d.catalog.Get(ctx, id)
	switch res.Outcome {
	case catalog.Success:
		return productReply(res.Product)
	case catalog.NotFound:
		return productNotFoundReply(id)
	}
	return CatalogUnavailableReply
}

func (d *Dispatcher) list(ctx context.Context, n int) string {
	res := d.catalog.List(ctx, n)
	if res.Outcome != catalog.Success {
		return CatalogUnavailableReply
	}
	return productListReply(res.Products)
}

func (d *Dispatcher) ask(ctx context.Context, message string) string {
	res := d.assistant.Reply(ctx, message)
	switch res.Outcome {
	case assistant.Success:
		return res.Text
	case assistant.NotConfigured:
		return AssistantNotConfiguredReply
	case assistant.Timeout:
		return AssistantTimeoutReply
	}
	return AssistantFailureReply
}
