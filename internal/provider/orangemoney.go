package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/config"
	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

const (
	orangeBaseURL = "https://api.orange.com/orange-money-webpay"

	orangeTokenTimeout   = 10 * time.Second
	orangeRequestTimeout = 30 * time.Second
	orangeStatusTimeout  = 10 * time.Second
)

// OrangeMoney implements the webpay flow: the payer is redirected to payment_url
// and the outcome is polled.
type OrangeMoney struct {
	cfg       config.OrangeMoneyConfig
	baseURL   string
	transport *transport
	tokens    TokenCache
	logger    *zap.Logger
}

func NewOrangeMoney(cfg config.OrangeMoneyConfig, tokens TokenCache, logger *zap.Logger) *OrangeMoney {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = orangeBaseURL
	}
	if tokens == nil {
		tokens = NoopTokenCache{}
	}

	return &OrangeMoney{
		cfg:       cfg,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		transport: newTransport(domain.ProviderOrangeMoney, logger),
		tokens:    tokens,
		logger:    logger,
	}
}

func (o *OrangeMoney) Name() domain.Provider {
	return domain.ProviderOrangeMoney
}

func (o *OrangeMoney) Authenticate(ctx context.Context) (string, error) {
	if missing := missingFields(map[string]string{
		"ORANGE_MONEY_CLIENT_ID":     o.cfg.ClientID,
		"ORANGE_MONEY_CLIENT_SECRET": o.cfg.ClientSecret,
		"ORANGE_MONEY_MERCHANT_KEY":  o.cfg.MerchantKey,
	}); len(missing) > 0 {
		return "", &errors.ErrConfiguration{Provider: string(domain.ProviderOrangeMoney), Missing: missing}
	}

	if token, ok := o.tokens.Get(ctx, domain.ProviderOrangeMoney); ok {
		return token, nil
	}

	header := http.Header{}
	header.Set("Authorization", basicAuth(o.cfg.ClientID, o.cfg.ClientSecret))
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")

	form := url.Values{"grant_type": {"client_credentials"}}
	return o.transport.fetchToken(ctx, orangeTokenTimeout, o.baseURL+"/oauth/v2/token", []byte(form.Encode()), header, o.tokens)
}

type orangeWebPayment struct {
	MerchantKey string `json:"merchant_key"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifURL    string `json:"notif_url"`
	Lang        string `json:"lang"`
	Reference   string `json:"reference"`
}

type orangeWebPaymentResponse struct {
	Status     any    `json:"status"`
	Message    string `json:"message"`
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
	NotifToken string `json:"notif_token"`
}

type orangeStatus struct {
	Status   string `json:"status"`
	OrderID  string `json:"order_id"`
	Amount   any    `json:"amount"`
	Currency string `json:"currency"`
	PayToken string `json:"pay_token"`
	TxnID    string `json:"txnid"`
}

// NewOrangeTransactionID returns an order id in the ORANGE-XXXXXXXXXXXX format
func NewOrangeTransactionID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "ORANGE-" + strings.ToUpper(hex[:12])
}

func (o *OrangeMoney) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = o.cfg.Currency
	}
	transactionID := NewOrangeTransactionID()

	returnURL := o.cfg.ReturnURL
	if req.ReturnURL != "" {
		returnURL = req.ReturnURL
	}
	cancelURL := o.cfg.CancelURL
	if req.CancelURL != "" {
		cancelURL = req.CancelURL
	}

	payload := orangeWebPayment{
		MerchantKey: o.cfg.MerchantKey,
		Currency:    currency,
		OrderID:     transactionID,
		Amount:      req.Amount.String(),
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
		NotifURL:    o.cfg.NotifURL,
		Lang:        "fr",
		Reference:   fmt.Sprintf("Paiement de %s %s", req.Amount.String(), currency),
	}

	resp, err := o.transport.withBearer(ctx, o.tokens, o.Authenticate, func(token string) (*response, error) {
		return o.transport.doJSON(ctx, "webpayment", orangeRequestTimeout, http.MethodPost,
			o.baseURL+"/api/v1/webpayments", payload, o.authHeader(token))
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if resp.ok() {
			return nil, o.transport.unexpected("webpayment", fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		return nil, o.transport.rejected("webpayment", "", resp)
	}

	var created orangeWebPaymentResponse
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return nil, o.transport.unexpected("webpayment", fmt.Errorf("failed to unmarshal webpayment: %w", err))
	}

	o.logger.Info("Orange Money payment requested",
		zap.String("transaction_id", transactionID),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", currency),
	)

	return &InitiateResult{
		TransactionID:  transactionID,
		Outcome:        domain.OutcomePending,
		ProviderStatus: "PENDING",
		PaymentURL:     created.PaymentURL,
		Raw:            json.RawMessage(resp.Body),
	}, nil
}

func (o *OrangeMoney) Capture(ctx context.Context, transactionID string) (*StatusResult, error) {
	return nil, errors.ErrUnsupportedOperation
}

func (o *OrangeMoney) PollStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	statusURL := fmt.Sprintf("%s/api/v1/webpayments/%s/status", o.baseURL, url.PathEscape(transactionID))
	resp, err := o.transport.withBearer(ctx, o.tokens, o.Authenticate, func(token string) (*response, error) {
		return o.transport.doJSON(ctx, "payment-status", orangeStatusTimeout, http.MethodGet, statusURL, nil, o.authHeader(token))
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, o.transport.rejected("payment-status", transactionID, resp)
	}

	var status orangeStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, o.transport.unexpected("payment-status", fmt.Errorf("failed to unmarshal status: %w", err))
	}

	return &StatusResult{
		Outcome:        NormalizeStatus(status.Status),
		ProviderStatus: status.Status,
		Raw:            json.RawMessage(resp.Body),
	}, nil
}

func (o *OrangeMoney) authHeader(token string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Accept", "application/json")
	return header
}
