// Package gate mounts the two-tier request authentication described by
// the Request Gate: bearer-only for every non-exempt path, bearer plus
// HMAC signature for everything under /api/. The exempt paths, which
// include the documentation endpoints, need no authentication at all.
package gate

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jwolfley/gamepulse/auth"
)

// exemptPrefixes never require authentication of any kind.
var exemptPrefixes = []string{"/auth/", "/", "/health", "/docs", "/redoc", "/openapi.json"}

// signedPrefixes require both a valid bearer token and a verified HMAC
// signature.
var signedPrefixes = []string{"/api/"}

const (
	bearerClientIDKey   = "bearer_client_id"
	verifiedClientIDKey = "verified_client_id"
)

// ClientIDFromContext returns the client_id the signature middleware
// verified for this request, if any.
func ClientIDFromContext(c echo.Context) string {
	v, _ := c.Get(verifiedClientIDKey).(string)
	return v
}

func isExempt(path string) bool {
	for _, p := range exemptPrefixes {
		if p == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func requiresSignature(path string) bool {
	for _, p := range signedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// BearerAuth requires a valid, non-expired bearer token on every
// non-exempt path. It never inspects the body or signature headers.
func BearerAuth(tokens *auth.Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if isExempt(path) {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := tokens.Verify(strings.TrimSpace(tokenStr))
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(bearerClientIDKey, claims.ClientID)
			return next(c)
		}
	}
}

// SignatureAuth verifies the HMAC signature headers on paths matching
// signedPrefixes, buffering the request body exactly once so both the
// signature check and the downstream handler can read it, per spec §4.4.
func SignatureAuth(signer *auth.Signer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if isExempt(path) || !requiresSignature(path) {
				return next(c)
			}

			body, err := io.ReadAll(req.Body)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "cannot read request body")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			clientID := req.Header.Get("X-Client-Id")
			timestamp := req.Header.Get("X-Timestamp")
			nonce := req.Header.Get("X-Nonce")
			signature := req.Header.Get("X-Signature")

			if bearerClientID, _ := c.Get(bearerClientIDKey).(string); bearerClientID != clientID {
				return echo.NewHTTPError(http.StatusUnauthorized, "client_id does not match bearer token")
			}

			verified, err := signer.VerifyRequest(req.Method, path, body, clientID, timestamp, nonce, signature)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrUnknownClient):
					return echo.NewHTTPError(http.StatusForbidden, "unknown client")
				case errors.Is(err, auth.ErrMissingHeaders),
					errors.Is(err, auth.ErrStaleTimestamp),
					errors.Is(err, auth.ErrReplayedNonce),
					errors.Is(err, auth.ErrBadSignature),
					errors.Is(err, auth.ErrMalformedHeader):
					return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
				default:
					return echo.NewHTTPError(http.StatusUnauthorized, "signature verification failed")
				}
			}

			c.Set(verifiedClientIDKey, verified)
			return next(c)
		}
	}
}
