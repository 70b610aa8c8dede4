package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/serviceerr"
)

// GoogleDiscoveryURL is the well-known metadata document of Google's identity platform.
const GoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

const maxDocumentSize = 1 << 20

// document keeps both the raw and the typed representation of the metadata.
type document struct {
	raw  map[string]any
	conf Configuration
}

// Discovery reads an identity provider metadata document. The document is
// cached until the TTL elapses or Invalidate is called.
type Discovery struct {
	url        string
	httpClient *http.Client
	cache      *cache.Cache
}

func NewDiscovery(documentURL string, httpClient *http.Client, ttl time.Duration) *Discovery {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Discovery{
		url:        documentURL,
		httpClient: httpClient,
		cache:      cache.New(ttl, 2*ttl),
	}
}

// Get returns the value of key from the metadata document.
func (d *Discovery) Get(ctx context.Context, key string) (any, error) {
	doc, err := d.document(ctx)
	if err != nil {
		return nil, err
	}

	value, ok := doc.raw[key]
	if !ok {
		return nil, errors.Join(serviceerr.ErrKeyNotFound, fmt.Errorf("key %q", key))
	}

	return value, nil
}

// GetString returns the value of key, which must be a non-empty string.
func (d *Discovery) GetString(ctx context.Context, key string) (string, error) {
	value, err := d.Get(ctx, key)
	if err != nil {
		return "", err
	}

	s, ok := value.(string)
	if !ok || s == "" {
		return "", errors.Join(serviceerr.ErrKeyNotFound, fmt.Errorf("key %q is not a string", key))
	}

	return s, nil
}

// Configuration returns the typed metadata document.
func (d *Discovery) Configuration(ctx context.Context) (Configuration, error) {
	doc, err := d.document(ctx)
	if err != nil {
		return Configuration{}, err
	}

	return doc.conf, nil
}

// Invalidate drops the cached document so the next call fetches it again.
func (d *Discovery) Invalidate() {
	d.cache.Delete(d.url)
}

func (d *Discovery) document(ctx context.Context) (document, error) {
	if cached, ok := d.cache.Get(d.url); ok {
		//nolint:forcetypeassert
		return cached.(document), nil
	}

	doc, err := d.fetch(ctx)
	if err != nil {
		return document{}, errors.Join(serviceerr.ErrFetchError, err)
	}

	d.cache.Set(d.url, doc, cache.DefaultExpiration)
	slogctx.Debug(ctx, "Fetched the discovery document", "url", d.url)

	return doc, nil
}

func (d *Discovery) fetch(ctx context.Context) (document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return document{}, fmt.Errorf("creating a new HTTP request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return document{}, fmt.Errorf("executing an http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return document{}, fmt.Errorf("discovery document request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return document{}, fmt.Errorf("reading response: %w", err)
	}

	var doc document
	if err := json.Unmarshal(body, &doc.raw); err != nil {
		return document{}, fmt.Errorf("decoding discovery document: %w", err)
	}
	if err := json.Unmarshal(body, &doc.conf); err != nil {
		return document{}, fmt.Errorf("decoding discovery document: %w", err)
	}

	return doc, nil
}
