package gfycat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"vidhost/pkg/httputil"
)

// webTokenSource mints anonymous web tokens from the weblogin endpoint.
// Wrapped in oauth2.ReuseTokenSource it refreshes only once the current
// token has expired.
type webTokenSource struct {
	client *Client
}

// Token mints a fresh web token. oauth2.TokenSource gives no context, so
// the minting request runs under context.Background; cancellation of the
// calling request does not reach an in-flight refresh.
func (s *webTokenSource) Token() (*oauth2.Token, error) {
	payload, err := json.Marshal(map[string]string{"access_key": s.client.accessKey})
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		s.client.webloginURL+"/oauth/webtoken", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("obtain web token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("obtain web token: %w", err)
	}

	var data struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if data.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	// Expiry counts from the server's clock when it sends a Date header.
	issued := time.Now()
	if serverTime, err := http.ParseTime(resp.Header.Get("Date")); err == nil {
		issued = serverTime
	}

	return &oauth2.Token{
		AccessToken: data.AccessToken,
		TokenType:   data.TokenType,
		Expiry:      issued.Add(time.Duration(data.ExpiresIn) * time.Second),
	}, nil
}
