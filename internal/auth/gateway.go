package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"fintrack.org/internal/ids"
)

// ResetMailer is the external mail collaborator. Delivery mechanics live in
// internal/mail; the gateway only needs a dispatch attempt it can fail on.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, name, resetLink string) error
}

// RequestContext carries the caller-side metadata recorded on login.
type RequestContext struct {
	IPAddress  string
	DeviceInfo string
}

const (
	unknownIP     = "Unknown IP"
	unknownDevice = "Unknown device"
)

// LoginResult is the successful outcome of a login.
type LoginResult struct {
	Token        string
	ExpiresAt    time.Time
	User         User
	ConnectionID string
}

// NewUser carries the registration payload. The password is plaintext here
// and is hashed before it reaches the directory.
type NewUser struct {
	FirstName     string
	MiddleName    string
	FirstSurname  string
	SecondSurname string
	Email         string
	Password      string
	PhoneNumber   string
	Birthdate     time.Time
}

// Gateway orchestrates credential verification, token issuance, session
// policy, the password-reset ceremony and the connection audit trail. It is
// the only component exposed to callers.
type Gateway struct {
	dir      Directory
	tokens   *TokenService
	sessions *SessionPolicy
	resolver *PermissionResolver
	mailer   ResetMailer
	appURL   string
	now      func() time.Time
}

// GatewayOption configures Gateway behavior.
type GatewayOption func(*Gateway)

// WithGatewayClock overrides the time source (useful for tests).
func WithGatewayClock(fn func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if fn != nil {
			g.now = fn
		}
	}
}

// NewGateway wires the auth core together. appURL is the public base URL used
// to build password-reset links.
func NewGateway(dir Directory, tokens *TokenService, sessions *SessionPolicy, mailer ResetMailer, appURL string, opts ...GatewayOption) (*Gateway, error) {
	if dir == nil {
		return nil, errors.New("auth: directory is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	if sessions == nil {
		return nil, errors.New("auth: session policy is required")
	}
	g := &Gateway{
		dir:      dir,
		tokens:   tokens,
		sessions: sessions,
		resolver: NewPermissionResolver(dir),
		mailer:   mailer,
		appURL:   strings.TrimRight(strings.TrimSpace(appURL), "/"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Directory exposes the backing directory for read-side handlers.
func (g *Gateway) Directory() Directory { return g.dir }

// Resolver exposes the live permission resolver for the guard pipeline.
func (g *Gateway) Resolver() *PermissionResolver { return g.resolver }

// Tokens exposes the token service for the guard pipeline.
func (g *Gateway) Tokens() *TokenService { return g.tokens }

// Sessions exposes the inactivity policy for the guard pipeline.
func (g *Gateway) Sessions() *SessionPolicy { return g.sessions }

// ValidateCredentials looks the user up by email and verifies the password.
// Both failure halves collapse into the same ErrUnauthorized so the response
// cannot disclose which one was wrong.
func (g *Gateway) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	user, err := g.dir.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if user.Status != UserStatusActive {
		return nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// Login validates credentials, snapshots the user's current role names into a
// fresh token and records exactly one connection-log row. Concurrent logins
// for the same user each mint an independent token and an independent row.
func (g *Gateway) Login(ctx context.Context, email, password string, reqCtx RequestContext) (*LoginResult, error) {
	user, err := g.ValidateCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	roles, err := g.dir.Roles().NamesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load roles: %v", ErrInternal, err)
	}

	token, expiresAt, err := g.tokens.Issue(user.ID, user.Email, roles)
	if err != nil {
		return nil, fmt.Errorf("%w: issue token: %v", ErrInternal, err)
	}

	entry := &ConnectionLogEntry{
		ID:         ids.New(),
		UserID:     user.ID,
		LoginTime:  g.now().UTC(),
		IPAddress:  orDefault(reqCtx.IPAddress, unknownIP),
		DeviceInfo: orDefault(reqCtx.DeviceInfo, unknownDevice),
	}
	if err := g.dir.Connections().Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: record connection: %v", ErrInternal, err)
	}

	return &LoginResult{
		Token:        token,
		ExpiresAt:    expiresAt,
		User:         user.Sanitized(),
		ConnectionID: entry.ID,
	}, nil
}

// Register creates a user with a hashed password and assigns the default role.
// It does not log the user in. A missing default role record is a deployment
// configuration error, not a caller mistake.
func (g *Gateway) Register(ctx context.Context, nu NewUser, roleName string) error {
	email := strings.TrimSpace(strings.ToLower(nu.Email))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(nu.Password) == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if roleName == "" {
		roleName = DefaultRoleName
	}

	if _, err := g.dir.Users().FindByEmail(ctx, email); err == nil {
		return fmt.Errorf("%w: email in use", ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	hash, err := HashPassword(nu.Password)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", ErrInternal, err)
	}

	user := &User{
		ID:            ids.New(),
		FirstName:     strings.TrimSpace(nu.FirstName),
		MiddleName:    strings.TrimSpace(nu.MiddleName),
		FirstSurname:  strings.TrimSpace(nu.FirstSurname),
		SecondSurname: strings.TrimSpace(nu.SecondSurname),
		Email:         email,
		PasswordHash:  hash,
		PhoneNumber:   strings.TrimSpace(nu.PhoneNumber),
		Birthdate:     nu.Birthdate,
		Status:        UserStatusActive,
	}
	if err := g.dir.Users().Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("%w: email in use", ErrAlreadyExists)
		}
		return fmt.Errorf("%w: create user: %v", ErrInternal, err)
	}

	role, err := g.dir.Roles().FindByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("%w: default role %q missing: %v", ErrInternal, roleName, err)
	}
	if err := g.dir.Roles().Assign(ctx, RoleAssignment{UserID: user.ID, RoleID: role.ID}); err != nil {
		return fmt.Errorf("%w: assign role: %v", ErrInternal, err)
	}
	return nil
}

// RefreshToken verifies the old token, applies the inactivity policy and mints
// a fresh claim set. Any verification failure collapses into ErrUnauthorized.
func (g *Gateway) RefreshToken(ctx context.Context, oldToken string) (string, string, error) {
	claims, err := g.tokens.Verify(oldToken)
	if err != nil {
		return "", "", ErrUnauthorized
	}
	if err := g.sessions.CheckInactivity(claims); err != nil {
		return "", "", ErrUnauthorized
	}
	token, remaining, err := g.tokens.Refresh(oldToken)
	if err != nil {
		return "", "", ErrUnauthorized
	}
	return token, remaining, nil
}

// SendResetLink issues a short-lived, subject-scoped reset token and dispatches
// it through the mail collaborator. A failed dispatch is reported, not retried.
func (g *Gateway) SendResetLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := g.dir.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: email not found", ErrNotFound)
		}
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	token, _, err := g.tokens.IssueReset(user.ID)
	if err != nil {
		return fmt.Errorf("%w: issue reset token: %v", ErrInternal, err)
	}
	resetLink := g.appURL + "/reset-password?token=" + url.QueryEscape(token)
	if g.mailer == nil {
		return fmt.Errorf("%w: mailer not configured", ErrInternal)
	}
	if err := g.mailer.SendPasswordReset(ctx, user.Email, user.FirstName, resetLink); err != nil {
		return fmt.Errorf("%w: send reset mail: %v", ErrInternal, err)
	}
	return nil
}

// ResetPassword redeems a reset token and persists the new password. The new
// password must differ from the current one; equality is detected by verifying
// the candidate against the stored hash.
func (g *Gateway) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := g.tokens.VerifyReset(resetToken)
	if err != nil {
		return ErrUnauthorized
	}
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	user, err := g.dir.Users().Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if VerifyPassword(user.PasswordHash, newPassword) == nil {
		return fmt.Errorf("%w: new password must differ from current", ErrInvalidInput)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", ErrInternal, err)
	}
	if err := g.dir.Users().UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("%w: update password: %v", ErrInternal, err)
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
