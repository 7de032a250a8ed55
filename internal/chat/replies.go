package chat

import (
	"fmt"
	"strings"

	"shopdesk-backend/internal/catalog"
	"shopdesk-backend/internal/store"
)

const (
	GreetingReply = "Hello! How can I help you today? You can ask about your orders, refunds, " +
		"our products or store policies."
	AskOrderIDReply       = "I'd be happy to help you check your order status. Please provide your order ID."
	AskRefundOrderIDReply = "I can help you with a refund. Please provide the order ID of the purchase you'd like refunded."
	ProductPromptReply    = "I can help you find information about our products. Say \"products 5\" to browse " +
		"the catalog or \"product <id>\" to look one up."
	EmptyMessagePrompt = "Please type a message so I can help you."

	AssistantNotConfiguredReply = "The AI assistant is not configured. Please contact support for further help."
	AssistantFailureReply       = "I'm sorry, I'm having trouble answering right now. Please try again later."
	AssistantTimeoutReply       = "I'm sorry, that took too long to answer. Please try again in a moment."
	CatalogUnavailableReply     = "The product catalog is currently unavailable. Please try again later."
	EmptyCatalogReply           = "There are no products in the catalog right now."
)

// default listing size when a product question does not say how many
const defaultListSize = 5

func orderStatusReply(o store.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s is %s.", o.ID, o.Status)
	if o.TrackingNumber != nil {
		fmt.Fprintf(&b, " Tracking number: %s.", *o.TrackingNumber)
	}
	if eta := o.ETA(); eta != "" {
		if o.DeliveryDate != "" {
			fmt.Fprintf(&b, " Delivered on %s.", eta)
		} else {
			fmt.Fprintf(&b, " Estimated delivery: %s.", eta)
		}
	}
	if len(o.Items) > 0 {
		fmt.Fprintf(&b, " Items: %s.", strings.Join(o.Items, ", "))
	}
	return b.String()
}

func orderNotFoundReply(id string) string {
	return fmt.Sprintf("I couldn't find an order with ID %s. Please check the number and send it again.", id)
}

func refundNotFoundReply(id string) string {
	return fmt.Sprintf("I couldn't find an order with ID %s, so no refund was started. "+
		"Ask for a refund again if you'd like to retry.", id)
}

func refundStartedReply(id string) string {
	return fmt.Sprintf("A refund for order %s has been initiated. You'll receive a confirmation email shortly.", id)
}

func productNotFoundReply(id int) string {
	return fmt.Sprintf("I couldn't find a product with ID %d.", id)
}

func formatPrice(p float64) string {
	return fmt.Sprintf("$%.2f", p)
}

func productReply(p catalog.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (ID %d) costs %s.", p.Title, p.ID, formatPrice(p.Price))
	if p.Category != "" {
		fmt.Fprintf(&b, " Category: %s.", p.Category)
	}
	if p.Rating.Count > 0 {
		fmt.Fprintf(&b, " Rated %.1f/5 by %d customers.", p.Rating.Rate, p.Rating.Count)
	}
	return b.String()
}

func productListReply(products []catalog.Product) string {
	if len(products) == 0 {
		return EmptyCatalogReply
	}
	var b strings.Builder
	b.WriteString("Here are some of our products:")
	for _, p := range products {
		fmt.Fprintf(&b, "\n- #%d %s: %s", p.ID, p.Title, formatPrice(p.Price))
	}
	return b.String()
}
