package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// fetchToken runs a client-credentials token request. Any non-2xx answer is treated
// as the provider being unavailable, since the caller can do nothing about it.
func (t *transport) fetchToken(ctx context.Context, timeout time.Duration, url string, body []byte, header http.Header, tokens TokenCache) (string, error) {
	resp, err := t.do(ctx, "authenticate", timeout, http.MethodPost, url, body, header)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", t.unexpected("authenticate", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, resp.message()))
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return "", t.unexpected("authenticate", fmt.Errorf("failed to unmarshal token: %w", err))
	}
	if token.AccessToken == "" {
		return "", t.unexpected("authenticate", fmt.Errorf("token endpoint returned no access_token"))
	}

	if token.ExpiresIn > 0 {
		tokens.Set(ctx, t.provider, token.AccessToken, time.Duration(token.ExpiresIn)*time.Second)
	}

	return token.AccessToken, nil
}

func basicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
