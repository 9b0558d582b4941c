package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/config"
	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

const (
	payPalSandboxURL = "https://api-m.sandbox.paypal.com"
	payPalLiveURL    = "https://api-m.paypal.com"
	payPalTimeout    = 15 * time.Second
)

// PayPal implements the redirect + capture flow of the Orders v2 API
type PayPal struct {
	cfg       config.PayPalConfig
	baseURL   string
	transport *transport
	tokens    TokenCache
	logger    *zap.Logger
}

func NewPayPal(cfg config.PayPalConfig, tokens TokenCache, logger *zap.Logger) *PayPal {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = payPalSandboxURL
		if cfg.Mode == "live" {
			baseURL = payPalLiveURL
		}
	}
	if tokens == nil {
		tokens = NoopTokenCache{}
	}

	return &PayPal{
		cfg:       cfg,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		transport: newTransport(domain.ProviderPayPal, logger),
		tokens:    tokens,
		logger:    logger,
	}
}

func (p *PayPal) Name() domain.Provider {
	return domain.ProviderPayPal
}

func (p *PayPal) Authenticate(ctx context.Context) (string, error) {
	if missing := missingFields(map[string]string{
		"PAYPAL_CLIENT_ID":     p.cfg.ClientID,
		"PAYPAL_CLIENT_SECRET": p.cfg.ClientSecret,
	}); len(missing) > 0 {
		return "", &errors.ErrConfiguration{Provider: string(domain.ProviderPayPal), Missing: missing}
	}

	if token, ok := p.tokens.Get(ctx, domain.ProviderPayPal); ok {
		return token, nil
	}

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")
	header.Set("Authorization", basicAuth(p.cfg.ClientID, p.cfg.ClientSecret))

	form := url.Values{"grant_type": {"client_credentials"}}
	return p.transport.fetchToken(ctx, payPalTimeout, p.baseURL+"/v1/oauth2/token", []byte(form.Encode()), header, p.tokens)
}

type payPalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type payPalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	Amount      payPalAmount `json:"amount"`
}

type payPalApplicationContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type payPalOrderRequest struct {
	Intent             string                   `json:"intent"`
	PurchaseUnits      []payPalPurchaseUnit     `json:"purchase_units"`
	ApplicationContext payPalApplicationContext `json:"application_context"`
}

type payPalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (p *PayPal) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = p.cfg.Currency
	}

	payload := payPalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []payPalPurchaseUnit{{
			ReferenceID: req.ExternalReference,
			Amount:      payPalAmount{CurrencyCode: currency, Value: req.Amount.StringFixed(2)},
		}},
		ApplicationContext: payPalApplicationContext{
			ReturnURL: req.ReturnURL,
			CancelURL: req.CancelURL,
		},
	}

	resp, err := p.call(ctx, "create-order", http.MethodPost, p.baseURL+"/v2/checkout/orders", payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.transport.rejected("create-order", "", resp)
	}

	var order payPalOrder
	if err := json.Unmarshal(resp.Body, &order); err != nil || order.ID == "" {
		return nil, p.transport.unexpected("create-order", fmt.Errorf("invalid order response: %s", string(resp.Body)))
	}

	result := &InitiateResult{
		TransactionID:  order.ID,
		Outcome:        NormalizeStatus(order.Status),
		ProviderStatus: order.Status,
		Raw:            json.RawMessage(resp.Body),
	}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			result.ApproveURL = link.Href
			break
		}
	}

	p.logger.Info("PayPal order created",
		zap.String("order_id", order.ID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("currency", currency),
	)

	return result, nil
}

// Capture finalizes an approved order. A 4xx answer (for example an order the
// buyer never approved) is returned as a rejection and must not be retried blindly.
func (p *PayPal) Capture(ctx context.Context, transactionID string) (*StatusResult, error) {
	resp, err := p.call(ctx, "capture-order", http.MethodPost,
		fmt.Sprintf("%s/v2/checkout/orders/%s/capture", p.baseURL, url.PathEscape(transactionID)), struct{}{})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.transport.rejected("capture-order", transactionID, resp)
	}

	return p.statusResult("capture-order", resp)
}

func (p *PayPal) PollStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	resp, err := p.call(ctx, "get-order", http.MethodGet,
		fmt.Sprintf("%s/v2/checkout/orders/%s", p.baseURL, url.PathEscape(transactionID)), nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.transport.rejected("get-order", transactionID, resp)
	}

	return p.statusResult("get-order", resp)
}

func (p *PayPal) statusResult(op string, resp *response) (*StatusResult, error) {
	var order payPalOrder
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, p.transport.unexpected(op, fmt.Errorf("failed to unmarshal order: %w", err))
	}
	return &StatusResult{
		Outcome:        NormalizeStatus(order.Status),
		ProviderStatus: order.Status,
		Raw:            json.RawMessage(resp.Body),
	}, nil
}

func (p *PayPal) call(ctx context.Context, op, method, endpoint string, payload any) (*response, error) {
	return p.transport.withBearer(ctx, p.tokens, p.Authenticate, func(token string) (*response, error) {
		return p.transport.doJSON(ctx, op, payPalTimeout, method, endpoint, payload, p.authHeader(token))
	})
}

func (p *PayPal) authHeader(token string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Accept", "application/json")
	return header
}
