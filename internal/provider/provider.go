package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/config"
	"github.com/jafarshop/checkoutapi/internal/domain"
)

// PaymentProvider is implemented by every payment provider client.
// Provider specific vocabulary is translated before results leave this package.
type PaymentProvider interface {
	Name() domain.Provider
	Authenticate(ctx context.Context) (string, error)
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	// Capture is only supported by redirect providers
	Capture(ctx context.Context, transactionID string) (*StatusResult, error)
	PollStatus(ctx context.Context, transactionID string) (*StatusResult, error)
}

// InitiateRequest describes a provider side payment intent
type InitiateRequest struct {
	Amount            decimal.Decimal
	Currency          string
	PayerPhone        string
	ExternalReference string
	ReturnURL         string
	CancelURL         string
}

// InitiateResult is what a provider returned when it accepted a payment request
type InitiateResult struct {
	TransactionID  string
	Outcome        domain.PaymentOutcome
	ProviderStatus string
	ApproveURL     string // PayPal
	PaymentURL     string // Orange Money webpay
	Raw            json.RawMessage
}

// StatusResult is a normalized capture or poll result
type StatusResult struct {
	Outcome        domain.PaymentOutcome
	ProviderStatus string
	Raw            json.RawMessage
}

// NormalizeStatus maps a provider status string onto the shared outcome vocabulary.
// Unknown values stay pending.
func NormalizeStatus(raw string) domain.PaymentOutcome {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESSFUL", "SUCCESS", "COMPLETED":
		return domain.OutcomeSuccessful
	case "FAILED", "DECLINED":
		return domain.OutcomeFailed
	case "CANCELLED", "CANCELED", "VOIDED":
		return domain.OutcomeCancelled
	default:
		return domain.OutcomePending
	}
}

// Registry holds one client per configured provider
type Registry map[domain.Provider]PaymentProvider

// NewRegistry builds every provider client. Clients without credentials are still
// registered and fail with a configuration error when called.
func NewRegistry(cfg *config.Config, tokens TokenCache, logger *zap.Logger) Registry {
	return Registry{
		domain.ProviderPayPal:      NewPayPal(cfg.PayPal, tokens, logger),
		domain.ProviderMTNMomo:     NewMTNMomo(cfg.MTNMomo, tokens, logger),
		domain.ProviderOrangeMoney: NewOrangeMoney(cfg.OrangeMoney, tokens, logger),
	}
}

// Get returns the client for p
func (r Registry) Get(p domain.Provider) (PaymentProvider, error) {
	client, ok := r[p]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q", p)
	}
	return client, nil
}

func missingFields(fields map[string]string) []string {
	var missing []string
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
