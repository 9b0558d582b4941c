package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one validated line of a cart snapshot
type CartLine struct {
	ProductID *int64 `json:"product_id,omitempty"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

// Subtotal returns unit price times quantity
func (l CartLine) Subtotal() int64 {
	return l.UnitPrice * l.Quantity
}

// CartSnapshot is the cart as submitted at intent creation time
type CartSnapshot []CartLine

// Total sums every line subtotal
func (c CartSnapshot) Total() int64 {
	var total int64
	for _, line := range c {
		total += line.Subtotal()
	}
	return total
}

// BillingSnapshot is the billing address as submitted at intent creation time
type BillingSnapshot struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
	ZipCode   string `json:"zip_code"`
	Phone     string `json:"phone"`
}

// PendingOrder is a payment intent recorded before its outcome is known
type PendingOrder struct {
	ID               uuid.UUID
	Provider         Provider
	TransactionID    string
	CartSnapshot     CartSnapshot
	BillingSnapshot  BillingSnapshot
	TotalCFA         int64
	AmountValue      decimal.NullDecimal // set only when the provider charges in another currency
	Currency         string
	PayerPhone       string
	Status           PendingStatus
	ProviderResponse json.RawMessage // JSONB
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Order is the permanent record of a completed purchase
type Order struct {
	ID                  uuid.UUID
	Email               string
	FirstName           string
	LastName            string
	Address             string
	City                string
	Country             string
	ZipCode             string
	Phone               string
	TotalCFA            int64
	Status              OrderStatus
	PaymentMethod       PaymentMethod
	PayPalOrderID       *string
	MTNTransactionID    *string
	OrangeTransactionID *string
	Items               []OrderItem
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TransactionID returns whichever provider transaction id is populated
func (o *Order) TransactionID() string {
	for _, id := range []*string{o.PayPalOrderID, o.MTNTransactionID, o.OrangeTransactionID} {
		if id != nil {
			return *id
		}
	}
	return ""
}

// OrderItem is a denormalized copy of a cart line. ProductID is a weak reference.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID *int64
	Name      string
	UnitPrice int64
	Quantity  int64
	CreatedAt time.Time
}

// NewOrderFromPending builds the ledger entry for a paid intent from its stored snapshots
func NewOrderFromPending(p *PendingOrder) *Order {
	b := p.BillingSnapshot
	order := &Order{
		Email:         b.Email,
		FirstName:     b.FirstName,
		LastName:      b.LastName,
		Address:       b.Address,
		City:          b.City,
		Country:       b.Country,
		ZipCode:       b.ZipCode,
		Phone:         b.Phone,
		TotalCFA:      p.TotalCFA,
		Status:        OrderStatusPaid,
		PaymentMethod: p.Provider.PaymentMethod(),
		Items:         make([]OrderItem, 0, len(p.CartSnapshot)),
	}

	txID := p.TransactionID
	switch p.Provider {
	case ProviderPayPal:
		order.PayPalOrderID = &txID
	case ProviderMTNMomo:
		order.MTNTransactionID = &txID
	case ProviderOrangeMoney:
		order.OrangeTransactionID = &txID
	}

	for _, line := range p.CartSnapshot {
		order.Items = append(order.Items, OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	return order
}

// IdempotencyKey records a client supplied Idempotency-Key for one route. A zero
// StatusCode means the first request is still being served.
type IdempotencyKey struct {
	Route        string
	Key          string
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
}

// Completed reports whether a response was stored for replay
func (k *IdempotencyKey) Completed() bool {
	return k.StatusCode != 0
}
