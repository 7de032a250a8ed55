package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"shopdesk-backend/internal/nlp"
)

type Intent string

const (
	Greeting    Intent = "greeting"
	OrderStatus Intent = "order_status"
	Refund      Intent = "refund"
	Product     Intent = "product"
	General     Intent = "general"
)

// Order is the fixed evaluation order. The trigger sets overlap, so it must not change.
var Order = []Intent{Greeting, OrderStatus, Refund, Product, General}

// Rule pairs an intent with the phrases that trigger it. Only General matches
// without triggers; any other rule with an empty set is never selected.
type Rule struct {
	Intent   Intent
	Triggers []string
}

// DefaultRules returns the built-in trigger table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: Greeting, Triggers: []string{
			"hello", "hi", "hey", "hiya", "howdy", "greetings",
			"good morning", "good afternoon", "good evening",
		}},
		{Intent: OrderStatus, Triggers: []string{
			"order status", "track", "tracking", "where is my order", "wheres my order",
			"status of my order", "my order", "shipment", "delivery status", "has my order shipped",
		}},
		{Intent: Refund, Triggers: []string{
			"refund", "refunds", "return", "money back", "reimburse", "reimbursement", "chargeback",
		}},
		{Intent: Product, Triggers: []string{
			"product", "products", "item", "items", "price", "prices", "catalog", "catalogue",
			"buy", "stock", "available", "sell",
		}},
		{Intent: General},
	}
}

// Classifier assigns a message to the first rule whose triggers hit.
type Classifier struct {
	rules []compiledRule
}

type compiledRule struct {
	intent   Intent
	triggers [][]string
}

func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		cr := compiledRule{intent: r.Intent}
		for _, t := range r.Triggers {
			if words := strings.Fields(nlp.Clean(t)); len(words) > 0 {
				cr.triggers = append(cr.triggers, words)
			}
		}
		c.rules = append(c.rules, cr)
	}
	return c
}

// Classify returns the first matching intent, General when nothing matches.
func (c *Classifier) Classify(message string) Intent {
	words := strings.Fields(nlp.Clean(message))
	for _, r := range c.rules {
		if r.intent == General {
			return General
		}
		// a rule left without triggers never matches
		if containsAny(words, r.triggers) {
			return r.intent
		}
	}
	return General
}

// containsAny reports whether any phrase occurs as a contiguous run of whole words.
func containsAny(words []string, phrases [][]string) bool {
	for _, p := range phrases {
		if containsPhrase(words, p) {
			return true
		}
	}
	return false
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, w := range phrase {
			if words[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}

// RuleFile is the YAML shape accepted by LoadRules.
//
//	rules:
//	  greeting: [hello, hi]
//	  refund: [refund, money back]
type RuleFile struct {
	Rules map[string][]string `yaml:"rules"`
}

// LoadRules reads trigger overrides from a YAML file. Intents absent from the file keep
// their defaults and evaluation order is always Order.
func LoadRules(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(b)
}

func ParseRules(b []byte) ([]Rule, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return nil, fmt.Errorf("decode intent rules: %w", err)
	}
	known := make(map[Intent]bool, len(Order))
	for _, it := range Order {
		known[it] = true
	}
	for name := range rf.Rules {
		if !known[Intent(name)] {
			return nil, fmt.Errorf("unknown intent %q in rules", name)
		}
	}
	rules := DefaultRules()
	for i := range rules {
		if rules[i].Intent == General {
			// the catch-all stays empty so it always matches
			continue
		}
		if triggers, ok := rf.Rules[string(rules[i].Intent)]; ok {
			rules[i].Triggers = triggers
		}
	}
	return rules, nil
}
