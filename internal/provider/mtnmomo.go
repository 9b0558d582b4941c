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
	mtnSandboxURL    = "https://sandbox.momodeveloper.mtn.com"
	mtnProductionURL = "https://momodeveloper.mtn.com"

	mtnTokenTimeout   = 10 * time.Second
	mtnRequestTimeout = 30 * time.Second
	mtnStatusTimeout  = 10 * time.Second
)

// MTNMomo implements the Collection request-to-pay flow. The payer approves on
// their handset, so the outcome is only known by polling.
type MTNMomo struct {
	cfg       config.MTNMomoConfig
	baseURL   string
	transport *transport
	tokens    TokenCache
	logger    *zap.Logger
}

func NewMTNMomo(cfg config.MTNMomoConfig, tokens TokenCache, logger *zap.Logger) *MTNMomo {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = mtnSandboxURL
		if strings.EqualFold(cfg.Environment, "production") {
			baseURL = mtnProductionURL
		}
	}
	if tokens == nil {
		tokens = NoopTokenCache{}
	}

	return &MTNMomo{
		cfg:       cfg,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		transport: newTransport(domain.ProviderMTNMomo, logger),
		tokens:    tokens,
		logger:    logger,
	}
}

func (m *MTNMomo) Name() domain.Provider {
	return domain.ProviderMTNMomo
}

func (m *MTNMomo) Authenticate(ctx context.Context) (string, error) {
	if missing := missingFields(map[string]string{
		"MTN_MOMO_SUBSCRIPTION_KEY": m.cfg.SubscriptionKey,
		"MTN_MOMO_API_USER":         m.cfg.APIUser,
		"MTN_MOMO_API_KEY":          m.cfg.APIKey,
	}); len(missing) > 0 {
		return "", &errors.ErrConfiguration{Provider: string(domain.ProviderMTNMomo), Missing: missing}
	}

	if token, ok := m.tokens.Get(ctx, domain.ProviderMTNMomo); ok {
		return token, nil
	}

	header := http.Header{}
	header.Set("Authorization", basicAuth(m.cfg.APIUser, m.cfg.APIKey))
	header.Set("Ocp-Apim-Subscription-Key", m.cfg.SubscriptionKey)

	return m.transport.fetchToken(ctx, mtnTokenTimeout, m.baseURL+"/collection/token/", nil, header, m.tokens)
}

type mtnParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type mtnRequestToPay struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	ExternalID   string   `json:"externalId"`
	Payer        mtnParty `json:"payer"`
	PayerMessage string   `json:"payerMessage"`
	PayeeNote    string   `json:"payeeNote"`
}

type mtnStatus struct {
	Status                 string `json:"status"`
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	FinancialTransactionID string `json:"financialTransactionId"`
	ExternalID             string `json:"externalId"`
	Reason                 any    `json:"reason"`
}

// Initiate sends a request-to-pay. The X-Reference-Id we generate is the
// transaction id; MTN answers 202 with an empty body.
func (m *MTNMomo) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = m.cfg.Currency
	}
	referenceID := uuid.New().String()
	externalID := req.ExternalReference
	if externalID == "" {
		externalID = referenceID
	}

	payload := mtnRequestToPay{
		Amount:       req.Amount.String(),
		Currency:     currency,
		ExternalID:   externalID,
		Payer:        mtnParty{PartyIDType: "MSISDN", PartyID: req.PayerPhone},
		PayerMessage: fmt.Sprintf("Paiement de %s %s", req.Amount.String(), currency),
		PayeeNote:    "Commande e-commerce",
	}

	resp, err := m.transport.withBearer(ctx, m.tokens, m.Authenticate, func(token string) (*response, error) {
		header := m.authHeader(token)
		header.Set("X-Reference-Id", referenceID)
		return m.transport.doJSON(ctx, "request-to-pay", mtnRequestTimeout, http.MethodPost,
			m.baseURL+"/collection/v1_0/requesttopay", payload, header)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusAccepted {
		if resp.ok() {
			return nil, m.transport.unexpected("request-to-pay", fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		return nil, m.transport.rejected("request-to-pay", "", resp)
	}

	raw, _ := json.Marshal(map[string]string{
		"referenceId": referenceID,
		"externalId":  externalID,
		"status":      "PENDING",
	})

	m.logger.Info("MTN MoMo payment requested",
		zap.String("transaction_id", referenceID),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", currency),
	)

	return &InitiateResult{
		TransactionID:  referenceID,
		Outcome:        domain.OutcomePending,
		ProviderStatus: "PENDING",
		Raw:            raw,
	}, nil
}

func (m *MTNMomo) Capture(ctx context.Context, transactionID string) (*StatusResult, error) {
	return nil, errors.ErrUnsupportedOperation
}

func (m *MTNMomo) PollStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	statusURL := fmt.Sprintf("%s/collection/v1_0/requesttopay/%s", m.baseURL, url.PathEscape(transactionID))
	resp, err := m.transport.withBearer(ctx, m.tokens, m.Authenticate, func(token string) (*response, error) {
		return m.transport.doJSON(ctx, "payment-status", mtnStatusTimeout, http.MethodGet, statusURL, nil, m.authHeader(token))
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, m.transport.rejected("payment-status", transactionID, resp)
	}

	var status mtnStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, m.transport.unexpected("payment-status", fmt.Errorf("failed to unmarshal status: %w", err))
	}

	return &StatusResult{
		Outcome:        NormalizeStatus(status.Status),
		ProviderStatus: status.Status,
		Raw:            json.RawMessage(resp.Body),
	}, nil
}

func (m *MTNMomo) authHeader(token string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("X-Target-Environment", m.cfg.TargetEnvironment)
	header.Set("Ocp-Apim-Subscription-Key", m.cfg.SubscriptionKey)
	return header
}
