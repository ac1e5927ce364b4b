// Package identity resolves the calling player's wallet from a request.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// WalletHeader carries the wallet address when token verification is off.
const WalletHeader = "X-Wallet-Address"

// ErrUnauthorized is returned when no valid caller identity is present.
var ErrUnauthorized = errors.New("unauthorized")

// Caller is the verified identity of a request.
type Caller struct {
	Wallet string
	Name   string
}

type claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Resolver extracts a Caller from HTTP requests. With a secret it only
// accepts HS256 bearer tokens; without one it trusts WalletHeader.
type Resolver struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSecret enables bearer token verification.
func WithSecret(secret string) Option {
	return func(r *Resolver) {
		if secret != "" {
			r.secret = []byte(secret)
		}
	}
}

// WithIssuer requires tokens to carry the given iss claim.
func WithIssuer(iss string) Option {
	return func(r *Resolver) { r.issuer = iss }
}

// WithClock overrides the time used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Verifying reports whether bearer tokens are required.
func (r *Resolver) Verifying() bool { return len(r.secret) > 0 }

// FromRequest returns the caller of req.
func (r *Resolver) FromRequest(req *http.Request) (Caller, error) {
	if !r.Verifying() {
		wallet := strings.TrimSpace(req.Header.Get(WalletHeader))
		if wallet == "" {
			return Caller{}, fmt.Errorf("%w: missing %s header", ErrUnauthorized, WalletHeader)
		}
		return Caller{Wallet: wallet}, nil
	}

	auth := req.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Caller{}, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	return r.Verify(strings.TrimSpace(token))
}

// Verify checks an HS256 token and returns its subject as the wallet.
func (r *Resolver) Verify(token string) (Caller, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	}
	if r.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(r.issuer))
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, parserOpts...)
	if err != nil {
		return Caller{}, mapJWTError(err)
	}
	wallet := strings.TrimSpace(parsed.Subject)
	if wallet == "" {
		return Caller{}, fmt.Errorf("%w: token subject is empty", ErrUnauthorized)
	}
	return Caller{Wallet: wallet, Name: parsed.Name}, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: token expired", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: token signature is invalid", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: token alg is invalid", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: token issuer mismatch", ErrUnauthorized)
	default:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
}

// Sign issues an HS256 token for wallet. It is what a trusted identity
// provider hands to the browser; the simulator and tests use it too.
func Sign(secret string, c Caller, issuer string, expiresAt time.Time) (string, error) {
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: c.Wallet,
			Issuer:  issuer,
		},
		Name: c.Name,
	}
	if !expiresAt.IsZero() {
		cl.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString([]byte(secret))
}
