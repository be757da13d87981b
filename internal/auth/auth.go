// Package auth provides the optional credential gate in front of the
// WebDAV surface: HTTP Basic as the primary scheme, with Bearer JWT
// accepted for programmatic clients when a signing secret is
// configured.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tabledav/tabledav/internal/logging"
	"github.com/tabledav/tabledav/internal/metrics"
)

// CheckFunc decides whether a username/password pair is valid.
type CheckFunc func(username, password string) bool

// Gate authenticates requests. A zero-value Gate is disabled and lets
// everything through.
type Gate struct {
	check     CheckFunc
	jwtSecret []byte
}

// Options configures a Gate.
type Options struct {
	// Check validates credentials. Takes precedence over
	// Username/Password when set.
	Check CheckFunc

	// Username and Password (or PasswordBcrypt) configure the single
	// static credential pair.
	Username       string
	Password       string
	PasswordBcrypt string

	// JWTSecret enables Bearer-token acceptance (HMAC-signed).
	JWTSecret string
}

// New builds a Gate. With neither Check nor Username configured the
// gate is disabled.
func New(opts Options) *Gate {
	g := &Gate{}
	if opts.JWTSecret != "" {
		g.jwtSecret = []byte(opts.JWTSecret)
	}

	switch {
	case opts.Check != nil:
		g.check = opts.Check
	case opts.Username != "" && opts.PasswordBcrypt != "":
		user, hash := opts.Username, []byte(opts.PasswordBcrypt)
		g.check = func(u, p string) bool {
			if subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 {
				return false
			}
			return bcrypt.CompareHashAndPassword(hash, []byte(p)) == nil
		}
	case opts.Username != "":
		user, pass := opts.Username, opts.Password
		g.check = func(u, p string) bool {
			userOK := subtle.ConstantTimeCompare([]byte(u), []byte(user)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(p), []byte(pass)) == 1
			return userOK && passOK
		}
	}
	return g
}

// Enabled reports whether the gate checks credentials at all.
func (g *Gate) Enabled() bool {
	return g.check != nil
}

// Middleware wraps next with the credential check. Requests for which
// bypass returns true (the browser static-serve path) pass through
// unauthenticated.
func (g *Gate) Middleware(next http.Handler, bypass func(*http.Request) bool) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bypass != nil && bypass(r) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")

		if g.jwtSecret != nil && strings.HasPrefix(authHeader, "Bearer ") {
			if err := g.validateBearer(strings.TrimPrefix(authHeader, "Bearer ")); err == nil {
				metrics.RecordAuthAttempt(true)
				next.ServeHTTP(w, r)
				return
			}
			metrics.RecordAuthAttempt(false)
			unauthorized(w)
			return
		}

		username, password, ok := decodeBasic(authHeader)
		if !ok || !g.check(username, password) {
			if ok {
				logging.Warn("basic auth failed", zap.String("username", username))
			}
			metrics.RecordAuthAttempt(false)
			unauthorized(w)
			return
		}

		metrics.RecordAuthAttempt(true)
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm=""`)
	http.Error(w, "authentication required", http.StatusUnauthorized)
}

// decodeBasic parses an Authorization: Basic header. The credential
// blob is standard base64, with URL-safe '-'/'_' tolerated; the decoded
// UTF-8 splits on the first ':'.
func decodeBasic(header string) (username, password string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	enc := strings.TrimSpace(header[len(prefix):])
	enc = strings.ReplaceAll(enc, "-", "+")
	enc = strings.ReplaceAll(enc, "_", "/")

	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(enc)
		if err != nil {
			return "", "", false
		}
	}

	username, password, found := strings.Cut(string(raw), ":")
	if !found {
		return "", "", false
	}
	return username, password, true
}

// validateBearer checks an HMAC-signed JWT.
func (g *Gate) validateBearer(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.jwtSecret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
