package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const MethodS256 = "S256"

// tokenBytes is the amount of randomness behind state and nonce values (256 bits).
const tokenBytes = 32

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

type Source struct{}

func (p Source) randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)

	return b
}

func (p Source) PKCE() PKCE {
	const n = 32

	verifierBuf := make([]byte, base64.RawURLEncoding.EncodedLen(n))
	base64.RawURLEncoding.Encode(verifierBuf, p.randBytes(n))

	challengeSHA := sha256.Sum256(verifierBuf)
	challengeBuf := make([]byte, base64.RawURLEncoding.EncodedLen(len(challengeSHA)))
	base64.RawURLEncoding.Encode(challengeBuf, challengeSHA[:])

	return PKCE{
		Verifier:  string(verifierBuf),
		Challenge: string(challengeBuf),
		Method:    MethodS256,
	}
}

// State returns a 64 character hex token echoed through the redirect.
func (p Source) State() string {
	return hex.EncodeToString(p.randBytes(tokenBytes))
}

// Nonce returns a 64 character hex token bound into the ID token.
func (p Source) Nonce() string {
	return hex.EncodeToString(p.randBytes(tokenBytes))
}
