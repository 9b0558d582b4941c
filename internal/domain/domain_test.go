package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingStatus_CanTransitionTo(t *testing.T) {
	targets := []PendingStatus{
		PendingStatusCaptured,
		PendingStatusSuccessful,
		PendingStatusFailed,
		PendingStatusCancelled,
		PendingStatusExpired,
	}

	for _, to := range targets {
		assert.True(t, PendingStatusPending.CanTransitionTo(to), "pending -> %s", to)
	}
	assert.False(t, PendingStatusPending.CanTransitionTo(PendingStatusPending))
	assert.False(t, PendingStatusPending.CanTransitionTo(PendingStatus("bogus")))

	for _, from := range targets {
		assert.True(t, from.IsTerminal())
		for _, to := range append(targets, PendingStatusPending) {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestProvider_PaymentMethod(t *testing.T) {
	assert.Equal(t, PaymentMethodPayPal, ProviderPayPal.PaymentMethod())
	assert.Equal(t, PaymentMethodMTNMomo, ProviderMTNMomo.PaymentMethod())
	assert.Equal(t, PaymentMethodOrangeMoney, ProviderOrangeMoney.PaymentMethod())
	assert.True(t, ProviderPayPal.RequiresCapture())
	assert.False(t, ProviderMTNMomo.RequiresCapture())
	assert.False(t, Provider("stripe").IsValid())
}

func TestNewOrderFromPending(t *testing.T) {
	productID := int64(1)
	pending := &PendingOrder{
		Provider:      ProviderMTNMomo,
		TransactionID: "tx-1",
		CartSnapshot: CartSnapshot{
			{ProductID: &productID, Name: "Widget", UnitPrice: 1000, Quantity: 2},
			{Name: "Gadget", UnitPrice: 500, Quantity: 1},
		},
		BillingSnapshot: BillingSnapshot{Email: "a@b.cm", FirstName: "Awa", City: "Douala"},
		TotalCFA:        2500,
	}

	order := NewOrderFromPending(pending)

	require.Len(t, order.Items, 2)
	assert.Equal(t, OrderStatusPaid, order.Status)
	assert.Equal(t, PaymentMethodMTNMomo, order.PaymentMethod)
	assert.Equal(t, int64(2500), order.TotalCFA)
	assert.Equal(t, "a@b.cm", order.Email)
	assert.Equal(t, "Douala", order.City)
	require.NotNil(t, order.MTNTransactionID)
	assert.Equal(t, "tx-1", *order.MTNTransactionID)
	assert.Nil(t, order.PayPalOrderID)
	assert.Nil(t, order.OrangeTransactionID)
	assert.Equal(t, "tx-1", order.TransactionID())
	assert.Equal(t, &productID, order.Items[0].ProductID)
	assert.Nil(t, order.Items[1].ProductID)
	assert.Equal(t, int64(2500), pending.CartSnapshot.Total())
}
