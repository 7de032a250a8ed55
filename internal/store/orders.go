package store

// Order is read-only reference data used by order status and refund lookups.
type Order struct {
	ID                string   `json:"order_id"`
	Status            string   `json:"status"`
	TrackingNumber    *string  `json:"tracking_number"`
	EstimatedDelivery string   `json:"estimated_delivery,omitempty"`
	DeliveryDate      string   `json:"delivery_date,omitempty"`
	Items             []string `json:"items"`
}

// ETA is the delivery date once delivered, otherwise the estimated delivery date.
func (o Order) ETA() string {
	if o.DeliveryDate != "" {
		return o.DeliveryDate
	}
	return o.EstimatedDelivery
}

// OrderBook is a fixed in-memory set of orders.
type OrderBook struct {
	orders map[string]Order
}

func NewOrderBook(orders ...Order) *OrderBook {
	b := &OrderBook{orders: make(map[string]Order, len(orders))}
	for _, o := range orders {
		b.orders[o.ID] = o
	}
	return b
}

// SampleOrderBook holds the three demo orders served by the order status endpoint.
func SampleOrderBook() *OrderBook {
	track := func(s string) *string { return &s }
	return NewOrderBook(
		Order{ID: "123", Status: "Shipped", TrackingNumber: track("TRACK123456"), EstimatedDelivery: "2024-01-15", Items: []string{"Product A", "Product B"}},
		Order{ID: "456", Status: "Processing", EstimatedDelivery: "2024-01-20", Items: []string{"Product C"}},
		Order{ID: "789", Status: "Delivered", TrackingNumber: track("TRACK789012"), DeliveryDate: "2024-01-10", Items: []string{"Product D"}},
	)
}

func (b *OrderBook) Order(id string) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	o.Items = append([]string(nil), o.Items...)
	return o, true
}
