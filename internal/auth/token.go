package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "fintrack"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = time.Hour
	defaultResetTTL   = time.Hour

	// ScopePasswordReset marks a token usable only to authorize a password change.
	ScopePasswordReset = "password_reset"
)

// Claims is the payload embedded in every signed bearer token. Roles is a
// snapshot taken at issuance time; it is not re-validated against live role
// assignments until the token is re-issued.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Scope string   `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256-signed bearer tokens. Issuance and
// verification are pure computations over claims and the shared secret; the
// service is safe for unlimited concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithAccessTTL configures the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures the lifetime of tokens minted by Refresh.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithResetTTL configures the lifetime of password-reset tokens.
func WithResetTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService with the given signing secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &TokenService{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		resetTTL:   defaultResetTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AccessTTL reports the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// Issue signs an access token for the given subject carrying the email and the
// role-name snapshot resolved at call time.
func (s *TokenService) Issue(userID, email string, roles []string) (string, time.Time, error) {
	return s.sign(userID, email, roles, "", s.accessTTL)
}

// IssueReset signs a subject-only token scoped to the password-reset ceremony.
// Validity is determined solely by signature and expiry: there is no
// server-side revocation list, so the token stays redeemable until it expires.
func (s *TokenService) IssueReset(userID string) (string, time.Time, error) {
	return s.sign(userID, "", nil, ScopePasswordReset, s.resetTTL)
}

func (s *TokenService) sign(userID, email string, roles []string, scope string, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("auth: userID is required")
	}
	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email: strings.TrimSpace(email),
		Roles: roles,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and required claims; it fails with
// ErrInvalidToken once the expiry has passed or the payload was tampered with.
func (s *TokenService) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := s.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyReset verifies a password-reset token, additionally requiring the
// reset scope so an ordinary access token cannot authorize a password change.
func (s *TokenService) VerifyReset(token string) (*Claims, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Scope != ScopePasswordReset {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh verifies the old token and mints a fresh one carrying the same
// subject, email and role snapshot with the fixed refresh TTL. The remaining
// lifetime of the new token is returned formatted as hh:mm:ss, floored at
// zero. Scoped tokens are not refreshable: a reset token must never be
// exchangeable for a bearer token. The inactivity policy is enforced by the
// gateway before the new token is minted.
func (s *TokenService) Refresh(oldToken string) (string, string, error) {
	claims, err := s.Verify(oldToken)
	if err != nil {
		return "", "", ErrUnauthorized
	}
	if claims.Scope != "" {
		return "", "", ErrUnauthorized
	}
	signed, expiresAt, err := s.sign(claims.Subject, claims.Email, claims.Roles, "", s.refreshTTL)
	if err != nil {
		return "", "", err
	}
	remaining := expiresAt.Sub(s.now().UTC())
	return signed, FormatRemaining(remaining), nil
}

func (s *TokenService) validateClaims(claims *Claims) error {
	if claims.Issuer != s.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := s.now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

// FormatRemaining renders a duration as hh:mm:ss, floored at zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
