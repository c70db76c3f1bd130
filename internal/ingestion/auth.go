package ingestion

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"stokenvault/internal/vault"
)

// Authenticator verifies command envelope signatures with per-caller HMAC
// keys. With no keys configured it passes everything through, which is the
// mode used by tests and local runs.
type Authenticator struct {
	keys map[string][]byte
}

func NewAuthenticator(keys map[string][]byte) *Authenticator {
	return &Authenticator{keys: keys}
}

// Enabled reports whether any caller keys are configured.
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0
}

// Verify checks cmd.Signature against the canonical signed bytes using the
// caller's key. Unknown callers are rejected when verification is enabled.
func (a *Authenticator) Verify(cmd *Command) error {
	if !a.Enabled() {
		return nil
	}

	key, ok := a.keys[cmd.Caller]
	if !ok {
		return fmt.Errorf("no signing key for caller %s", cmd.Caller)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(cmd.SignedBytes)
	want := mac.Sum(nil)

	got, err := hex.DecodeString(cmd.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if !hmac.Equal(got, want) {
		return fmt.Errorf("signature mismatch for caller %s", cmd.Caller)
	}
	return nil
}

// SignCommand produces the hex signature for a signing input. Producers and
// tests use it to build valid envelopes.
func SignCommand(key, signedBytes []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(signedBytes)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignerGate adapts the authenticated caller of the current command into the
// engines' address check. The dispatcher assumes a caller before invoking an
// engine and clears it after; engines then approve exactly that address.
//
// Invariant: only the single dispatcher goroutine touches the gate, so no
// locking is needed.
type SignerGate struct {
	caller string
	active bool
}

func NewSignerGate() *SignerGate { return &SignerGate{} }

func (g *SignerGate) Assume(caller string) {
	g.caller = caller
	g.active = true
}

func (g *SignerGate) Clear() {
	g.caller = ""
	g.active = false
}

// RequireAuth implements vault.Authorizer.
func (g *SignerGate) RequireAuth(addr string) error {
	if !g.active || addr != g.caller {
		return vault.CoreErrUnauthorized
	}
	return nil
}
