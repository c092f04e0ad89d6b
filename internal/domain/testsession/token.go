// Package testsession contains the competency test session domain model.
package testsession

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// tokenBytes gives 160 bits of entropy, rendered as 40 hex characters.
const tokenBytes = 20

// Token is the opaque capability embedded in the emailed test link. It is
// the only credential an applicant needs; it must be unguessable.
type Token string

// NewToken generates a cryptographically random token.
func NewToken() (Token, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return Token(hex.EncodeToString(buf)), nil
}

// IsWellFormed checks the shape of an incoming token before hitting
// storage. Malformed tokens can be rejected without a lookup.
func (t Token) IsWellFormed() bool {
	if len(t) != tokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(string(t))
	return err == nil
}

// Normalized lowercases the token; links survive case-mangling mail clients.
func (t Token) Normalized() Token {
	return Token(strings.ToLower(strings.TrimSpace(string(t))))
}

// String implements fmt.Stringer. The value is redacted: tokens are
// credentials and must not leak into logs.
func (t Token) String() string {
	if len(t) < 8 {
		return "token(***)"
	}
	return fmt.Sprintf("token(%s***)", t[:4])
}
