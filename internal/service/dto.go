package service

import (
	"github.com/google/uuid"

	"github.com/jafarshop/checkoutapi/internal/domain"
)

// CreatePayPalOrderRequest is the storefront create-order payload. Cart and billing
// stay untyped until the validator has normalized them.
type CreatePayPalOrderRequest struct {
	Cart           any    `json:"cart" binding:"required"`
	Billing        any    `json:"billing"`
	ReturnURL      string `json:"returnUrl"`
	ReturnURLSnake string `json:"return_url"`
	CancelURL      string `json:"cancelUrl"`
	CancelURLSnake string `json:"cancel_url"`
}

func (r CreatePayPalOrderRequest) returnURL() string {
	if r.ReturnURL != "" {
		return r.ReturnURL
	}
	return r.ReturnURLSnake
}

func (r CreatePayPalOrderRequest) cancelURL() string {
	if r.CancelURL != "" {
		return r.CancelURL
	}
	return r.CancelURLSnake
}

type CapturePayPalOrderRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// MobilePaymentRequest is the request-payment payload shared by push providers
type MobilePaymentRequest struct {
	Cart        any    `json:"cart" binding:"required"`
	Billing     any    `json:"billing"`
	Amount      any    `json:"amount"`
	Currency    string `json:"currency"`
	PhoneNumber string `json:"phoneNumber"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
}

type CancelPaymentRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
}

type PayPalOrderResult struct {
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	ApproveURL string `json:"approveUrl"`
}

type CaptureResult struct {
	Success bool                 `json:"success"`
	OrderID *uuid.UUID           `json:"order_id"`
	Status  domain.PendingStatus `json:"status"`
	Detail  string               `json:"detail"`
}

type MobilePaymentResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
	PaymentURL    string `json:"paymentUrl,omitempty"`
}

// Storefront status vocabulary
const (
	APIStatusPending   = "pending"
	APIStatusSuccess   = "success"
	APIStatusFailed    = "failed"
	APIStatusCancelled = "cancelled"
)

type PaymentStatusResult struct {
	Status        string     `json:"status"`
	TransactionID string     `json:"transactionId"`
	Message       string     `json:"message"`
	OrderID       *uuid.UUID `json:"orderId,omitempty"`
}
