package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
	apperrors "github.com/jafarshop/checkoutapi/pkg/errors"
)

// maxResponseBody bounds how much of a provider response is buffered
const maxResponseBody = 1 << 20

type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// message extracts a human readable reason from an error payload
func (r *response) message() string {
	var payload struct {
		Message          string `json:"message"`
		Description      string `json:"description"`
		ErrorDescription string `json:"error_description"`
		Name             string `json:"name"`
	}
	if err := json.Unmarshal(r.Body, &payload); err == nil {
		for _, m := range []string{payload.Message, payload.ErrorDescription, payload.Description, payload.Name} {
			if m != "" {
				return m
			}
		}
	}
	return http.StatusText(r.StatusCode)
}

var errServerStatus = errors.New("provider server error")

// transport executes provider calls behind a per provider circuit breaker.
// Transport failures and 5xx responses trip the breaker; client errors do not.
type transport struct {
	provider   domain.Provider
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	logger     *zap.Logger
}

func newTransport(p domain.Provider, logger *zap.Logger) *transport {
	settings := gobreaker.Settings{
		Name:        string(p),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Provider circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &transport{
		provider: p,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker[*response](settings),
		logger:  logger,
	}
}

// do sends one request with its own timeout. A nil error means the provider answered
// with a non-5xx status; callers inspect the status code.
func (t *transport) do(ctx context.Context, op string, timeout time.Duration, method, url string, body []byte, header http.Header) (*response, error) {
	resp, err := t.breaker.Execute(func() (*response, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		httpResp, err := t.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		resp := &response{StatusCode: httpResp.StatusCode, Body: data}
		if httpResp.StatusCode >= 500 {
			return resp, fmt.Errorf("%w: status %d", errServerStatus, httpResp.StatusCode)
		}
		return resp, nil
	})

	if err != nil {
		t.logger.Error("Provider call failed",
			zap.String("provider", string(t.provider)),
			zap.String("op", op),
			zap.Error(err),
		)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("circuit breaker open: %w", err)
		}
		return nil, &apperrors.ErrProviderUnavailable{Provider: string(t.provider), Op: op, Err: err}
	}

	return resp, nil
}

// doJSON marshals payload (if any) and sends it as application/json
func (t *transport) doJSON(ctx context.Context, op string, timeout time.Duration, method, url string, payload any, header http.Header) (*response, error) {
	if header == nil {
		header = http.Header{}
	}
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		header.Set("Content-Type", "application/json")
	}
	return t.do(ctx, op, timeout, method, url, body, header)
}

// withBearer runs send with a token from authenticate. A 401 means the token was revoked
// or expired before its advertised lifetime: it is evicted from tokens and send is
// retried once with a fresh one.
func (t *transport) withBearer(ctx context.Context, tokens TokenCache, authenticate func(context.Context) (string, error), send func(token string) (*response, error)) (*response, error) {
	token, err := authenticate(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := send(token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	t.logger.Warn("Provider refused access token, re-authenticating", zap.String("provider", string(t.provider)))
	tokens.Delete(ctx, t.provider)

	token, err = authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return send(token)
}

// rejected converts a non-2xx answer into the matching domain error
func (t *transport) rejected(op, transactionID string, resp *response) error {
	if resp.StatusCode == http.StatusNotFound && transactionID != "" {
		return &apperrors.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	return &apperrors.ErrProviderRejected{
		Provider:   string(t.provider),
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    resp.message(),
	}
}

// unexpected reports a response that could not be interpreted; the payment outcome is unknown
func (t *transport) unexpected(op string, err error) error {
	return &apperrors.ErrProviderUnavailable{Provider: string(t.provider), Op: op, Err: err}
}
