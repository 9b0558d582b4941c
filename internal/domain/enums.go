package domain

// Provider identifies a payment provider
type Provider string

const (
	ProviderPayPal      Provider = "paypal"
	ProviderMTNMomo     Provider = "mtn_momo"
	ProviderOrangeMoney Provider = "orange_money"
)

// IsValid checks if the provider is known
func (p Provider) IsValid() bool {
	switch p {
	case ProviderPayPal, ProviderMTNMomo, ProviderOrangeMoney:
		return true
	default:
		return false
	}
}

// RequiresCapture reports whether the provider uses the redirect + capture flow
func (p Provider) RequiresCapture() bool {
	return p == ProviderPayPal
}

// PaymentMethod returns the ledger payment method for orders paid through p
func (p Provider) PaymentMethod() PaymentMethod {
	switch p {
	case ProviderPayPal:
		return PaymentMethodPayPal
	case ProviderMTNMomo:
		return PaymentMethodMTNMomo
	case ProviderOrangeMoney:
		return PaymentMethodOrangeMoney
	default:
		return ""
	}
}

func (p Provider) String() string {
	return string(p)
}

// PaymentOutcome is the provider-independent status reported by a provider client.
// Provider vocabulary never leaves the provider package.
type PaymentOutcome string

const (
	OutcomePending    PaymentOutcome = "pending"
	OutcomeSuccessful PaymentOutcome = "successful"
	OutcomeFailed     PaymentOutcome = "failed"
	OutcomeCancelled  PaymentOutcome = "cancelled"
)

// PendingStatus represents the status of a payment intent
type PendingStatus string

const (
	PendingStatusPending    PendingStatus = "pending"
	PendingStatusCaptured   PendingStatus = "captured"
	PendingStatusSuccessful PendingStatus = "successful"
	PendingStatusFailed     PendingStatus = "failed"
	PendingStatusCancelled  PendingStatus = "cancelled"
	PendingStatusExpired    PendingStatus = "expired"
)

// IsValid checks if the pending status is valid
func (s PendingStatus) IsValid() bool {
	switch s {
	case PendingStatusPending,
		PendingStatusCaptured,
		PendingStatusSuccessful,
		PendingStatusFailed,
		PendingStatusCancelled,
		PendingStatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed
func (s PendingStatus) IsTerminal() bool {
	return s != PendingStatusPending
}

// IsPaid reports whether the intent ended with money collected
func (s PendingStatus) IsPaid() bool {
	return s == PendingStatusCaptured || s == PendingStatusSuccessful
}

// CanTransitionTo checks if a status transition is valid
func (s PendingStatus) CanTransitionTo(newStatus PendingStatus) bool {
	if s != PendingStatusPending {
		return false // Terminal states
	}
	return newStatus.IsValid() && newStatus != PendingStatusPending
}

func (s PendingStatus) String() string {
	return string(s)
}

// OrderStatus represents the status of a ledger order
type OrderStatus string

const (
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusRefunded OrderStatus = "refunded"
	OrderStatusFailed   OrderStatus = "failed"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusPending, OrderStatusRefunded, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// PaymentMethod is how an order was paid
type PaymentMethod string

const (
	PaymentMethodPayPal      PaymentMethod = "paypal"
	PaymentMethodBank        PaymentMethod = "bank"
	PaymentMethodCheque      PaymentMethod = "cheque"
	PaymentMethodMTNMomo     PaymentMethod = "mtn_momo"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodPayPal,
		PaymentMethodBank,
		PaymentMethodCheque,
		PaymentMethodMTNMomo,
		PaymentMethodOrangeMoney:
		return true
	default:
		return false
	}
}
