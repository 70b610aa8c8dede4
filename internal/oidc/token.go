package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TokenResponse is the token endpoint answer to an authorization_code grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// TokenClient trades authorization codes for tokens at the provider token endpoint.
type TokenClient struct {
	discovery   *Discovery
	httpClient  *http.Client
	credentials ClientCredentials
}

func NewTokenClient(discovery *Discovery, httpClient *http.Client, credentials ClientCredentials) *TokenClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &TokenClient{
		discovery:   discovery,
		httpClient:  httpClient,
		credentials: credentials,
	}
}

// Exchange redeems code. codeVerifier is only sent when it is not empty.
func (c *TokenClient) Exchange(ctx context.Context, code, codeVerifier string) (TokenResponse, error) {
	tokenEndpoint, err := c.discovery.GetString(ctx, KeyTokenEndpoint)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("getting token endpoint: %w", err)
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.credentials.ClientID)
	data.Set("client_secret", c.credentials.ClientSecret)
	data.Set("redirect_uri", c.credentials.RedirectURI)
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return TokenResponse{}, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, body)
	}

	var tokens TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return TokenResponse{}, fmt.Errorf("decoding response: %w", err)
	}

	if tokens.IDToken == "" {
		return TokenResponse{}, errors.New("no id_token in token response")
	}

	return tokens, nil
}
