package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultLeeway = 30 * time.Second

var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrNoCompany is returned for valid tokens without a company claim.
	ErrNoCompany = errors.New("token has no companyId claim")
)

// Claims are the access-token claims issued by the Rolevate auth service.
type Claims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"companyId"`
	Role      string `json:"role,omitempty"`
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier returns a Verifier for secret. issuer is checked when set.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, leeway: defaultLeeway, now: time.Now}, nil
}

// Verify checks token and returns the caller's session.
func (v *Verifier) Verify(token string) (Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return Session{}, fmt.Errorf("verify token: %w", err)
	}
	if strings.TrimSpace(claims.CompanyID) == "" {
		return Session{}, ErrNoCompany
	}
	return Session{UserID: claims.Subject, CompanyID: claims.CompanyID, Role: claims.Role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
