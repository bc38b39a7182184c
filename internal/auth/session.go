package auth

import "time"

const defaultInactivityWindow = 30 * time.Minute

// SessionPolicy enforces an inactivity timeout independent of a token's own
// expiry. A signature-valid token can still be rejected here; the only ways to
// move issued-at forward are re-authenticating or refreshing.
type SessionPolicy struct {
	window time.Duration
	now    func() time.Time
}

// SessionOption configures SessionPolicy.
type SessionOption func(*SessionPolicy)

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(p *SessionPolicy) {
		if fn != nil {
			p.now = fn
		}
	}
}

// NewSessionPolicy constructs a policy with the given inactivity window.
func NewSessionPolicy(window time.Duration, opts ...SessionOption) *SessionPolicy {
	if window <= 0 {
		window = defaultInactivityWindow
	}
	p := &SessionPolicy{window: window, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Window reports the configured inactivity window.
func (p *SessionPolicy) Window() time.Duration { return p.window }

// CheckInactivity fails with ErrSessionExpired once more than the inactivity
// window has elapsed since the token's issued-at.
func (p *SessionPolicy) CheckInactivity(claims *Claims) error {
	if claims == nil || claims.IssuedAt == nil {
		return ErrInvalidToken
	}
	if p.now().UTC().Sub(claims.IssuedAt.Time) > p.window {
		return ErrSessionExpired
	}
	return nil
}
