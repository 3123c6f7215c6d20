// Package csrf implements double-submit CSRF protection for cookie
// authenticated requests. The cookie carries the token together with an HMAC
// binding it to the caller's session; the client echoes the bare token in a
// header or form field.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

const (
	// CookieName holds token.signature.
	CookieName = "__Host-csrf.token"
	// SessionCookieName identifies the browser session the token is bound to.
	SessionCookieName = "sid"
	// HeaderName is the preferred submission channel.
	HeaderName = "X-CSRF-Token"
	// AltHeaderName is accepted for clients using the XSRF convention.
	AltHeaderName = "X-XSRF-Token"
	// FieldName is the form body / query parameter name.
	FieldName = "_csrf"

	tokenBytes = 32
)

// exemptPrefixes are never subject to CSRF validation.
var exemptPrefixes = [...]string{
	"/api/health",
	"/api/payments/webhook",
	"/api/webhooks/",
	"/api/public/",
}

var (
	// ErrTokenMissing means the cookie or submitted token is absent.
	ErrTokenMissing = errors.New("csrf token missing")
	// ErrTokenMismatch means the signature or the submitted token did not match.
	ErrTokenMismatch = errors.New("csrf token mismatch")
)

// Guard issues and validates token pairs.
type Guard struct {
	secret []byte
}

// NewGuard returns a Guard signing with secret.
func NewGuard(secret string) *Guard {
	return &Guard{secret: []byte(secret)}
}

// IsExempt reports whether path falls under a fixed exemption prefix.
func IsExempt(path string) bool {
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Applies reports whether a request must carry a valid token pair. Only
// cookie-carrying, state-changing requests to non-exempt paths do; a bearer
// header sent alongside cookies does not lift the check.
func Applies(method, path string, hasCookie bool) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	if IsExempt(path) {
		return false
	}
	return hasCookie
}

// Issue creates a fresh pair for sessionID. cookieValue goes into CookieName
// and submitToken is handed to the client to echo back.
func (g *Guard) Issue(sessionID string) (cookieValue, submitToken string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	submitToken = hex.EncodeToString(buf)
	return submitToken + "." + g.sign(sessionID, submitToken), submitToken, nil
}

// Validate checks the cookie signature for sessionID and that submitted
// equals the cookie's token. All comparisons are constant time.
func (g *Guard) Validate(sessionID, cookieValue, submitted string) error {
	if cookieValue == "" || submitted == "" {
		return ErrTokenMissing
	}
	token, sig, ok := strings.Cut(cookieValue, ".")
	if !ok || token == "" || sig == "" {
		return ErrTokenMismatch
	}

	sigOK := hmac.Equal([]byte(sig), []byte(g.sign(sessionID, token)))
	tokenOK := hmac.Equal([]byte(token), []byte(submitted))
	if !sigOK || !tokenOK {
		return ErrTokenMismatch
	}
	return nil
}

func (g *Guard) sign(sessionID, token string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(sessionID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
