package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

var (
	ErrMissingRedirectURI = errors.New("identity.redirectURI is required")
	ErrUnknownStateStore  = errors.New("unknown identity.stateStore")
	ErrMissingOpenIDScope = errors.New("identity.scopes must contain openid")
	ErrInvalidStateTTL    = errors.New("identity.stateTTL must be positive")
)

// Validate checks the settings the api-server cannot start without.
func (c *Identity) Validate() error {
	if c.RedirectURI == "" {
		return ErrMissingRedirectURI
	}

	u, err := url.Parse(c.RedirectURI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("identity.redirectURI %q is not an absolute URL", c.RedirectURI)
	}

	if err := c.ValidateStateStore(); err != nil {
		return err
	}

	if len(c.Scopes) > 0 && !slices.Contains(c.Scopes, "openid") {
		return ErrMissingOpenIDScope
	}

	return nil
}

// ValidateStateStore checks the AuthState settings shared by the api-server
// and the housekeeper.
func (c *Identity) ValidateStateStore() error {
	switch c.StateStore {
	case StateStorePostgres, StateStoreValkey:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStateStore, c.StateStore)
	}

	if c.StateTTL <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStateTTL, c.StateTTL)
	}

	return nil
}
