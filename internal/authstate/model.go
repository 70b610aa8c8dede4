package authstate

import "time"

// State represents one in-flight sign-in attempt. It pairs the CSRF
// protecting state with the nonce that must come back inside the ID token.
type State struct {
	ID           string    // Primary key
	State        string    // Random token echoed through the redirect
	Nonce        string    // Random token expected in the verified ID token
	CodeVerifier string    // PKCE verifier, empty unless PKCE is enabled
	CreatedAt    time.Time // Creation time, used to sweep abandoned attempts
}
