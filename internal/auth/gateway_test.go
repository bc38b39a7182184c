package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeMailer struct {
	calls []string // reset links, in dispatch order
	fail  bool
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, to, name, resetLink string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.calls = append(m.calls, resetLink)
	return nil
}

func newTestGateway(t *testing.T, dir Directory, mailer ResetMailer, opts ...GatewayOption) *Gateway {
	t.Helper()
	tokens, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	g, err := NewGateway(dir, tokens, NewSessionPolicy(30*time.Minute), mailer, "https://app.example.com/", opts...)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g
}

func registerUser(t *testing.T, g *Gateway, email, password string) *User {
	t.Helper()
	ctx := context.Background()
	err := g.Register(ctx, NewUser{
		FirstName:    "Ada",
		FirstSurname: "Lovelace",
		Email:        email,
		Password:     password,
	}, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	u, err := g.Directory().Users().FindByEmail(ctx, strings.ToLower(email))
	if err != nil {
		t.Fatalf("find registered user: %v", err)
	}
	return u
}

func TestLoginSuccess(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	ctx := context.Background()
	result, err := g.Login(ctx, "Ada@Example.com", "s3cret-pass", RequestContext{
		IPAddress:  "203.0.113.7",
		DeviceInfo: "test-agent/1.0",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("missing token")
	}
	if result.User.PasswordHash != "" {
		t.Fatal("password hash leaked in login result")
	}
	if len(result.User.Email) == 0 || result.User.Email != "ada@example.com" {
		t.Fatalf("user email = %q", result.User.Email)
	}

	claims, err := g.Tokens().Verify(result.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != DefaultRoleName {
		t.Fatalf("token roles = %v", claims.Roles)
	}

	entry, err := dir.Connections().Find(ctx, result.ConnectionID)
	if err != nil {
		t.Fatalf("connection entry: %v", err)
	}
	if entry.UserID != result.User.ID {
		t.Fatalf("entry user = %q", entry.UserID)
	}
	if entry.IPAddress != "203.0.113.7" || entry.DeviceInfo != "test-agent/1.0" {
		t.Fatalf("entry metadata = %q / %q", entry.IPAddress, entry.DeviceInfo)
	}
	if entry.LogoutTime != nil {
		t.Fatal("fresh entry must have no logout time")
	}
}

func TestLoginRecordsUnknownMetadataDefaults(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	result, err := g.Login(context.Background(), "ada@example.com", "s3cret-pass", RequestContext{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	entry, err := dir.Connections().Find(context.Background(), result.ConnectionID)
	if err != nil {
		t.Fatalf("connection entry: %v", err)
	}
	if entry.IPAddress != "Unknown IP" || entry.DeviceInfo != "Unknown device" {
		t.Fatalf("defaults = %q / %q", entry.IPAddress, entry.DeviceInfo)
	}
}

func TestLoginFailuresAreOpaque(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	ctx := context.Background()
	cases := []struct {
		name            string
		email, password string
	}{
		{"wrong password", "ada@example.com", "wrong"},
		{"unknown email", "nobody@example.com", "s3cret-pass"},
		{"empty password", "ada@example.com", ""},
		{"empty email", "", "s3cret-pass"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := g.Login(ctx, tc.email, tc.password, RequestContext{}); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})

	hash, _ := HashPassword("s3cret-pass")
	u := &User{Email: "frozen@example.com", PasswordHash: hash, Status: UserStatusInactive}
	if err := dir.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := g.Login(context.Background(), "frozen@example.com", "s3cret-pass", RequestContext{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestConcurrentLoginsAreIndependent(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	ctx := context.Background()
	first, err := g.Login(ctx, "ada@example.com", "s3cret-pass", RequestContext{})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := g.Login(ctx, "ada@example.com", "s3cret-pass", RequestContext{})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.ConnectionID == second.ConnectionID {
		t.Fatal("each login must record its own connection entry")
	}
	count, err := dir.Connections().Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("connection count = %d, want 2", count)
	}
}

func TestRegisterValidation(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})
	ctx := context.Background()

	cases := []struct {
		name    string
		nu      NewUser
		wantErr error
	}{
		{"missing email", NewUser{Password: "pw"}, ErrInvalidInput},
		{"malformed email", NewUser{Email: "not-an-email", Password: "pw"}, ErrInvalidInput},
		{"missing password", NewUser{Email: "a@b.c"}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := g.Register(ctx, tc.nu, ""); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	err := g.Register(context.Background(), NewUser{Email: "ADA@example.com", Password: "other"}, "")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestRegisterMissingDefaultRoleIsInternal(t *testing.T) {
	// Directory without seeded roles: registration must surface a server-side
	// failure, not a caller error.
	dir := NewMemoryDirectory()
	g := newTestGateway(t, dir, &fakeMailer{})

	err := g.Register(context.Background(), NewUser{Email: "a@b.c", Password: "pw"}, "")
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	count, err := dir.Connections().Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("registration must not record connections, got %d", count)
	}
}

func TestRefreshTokenAppliesInactivityPolicy(t *testing.T) {
	dir := seedDirectory(t)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued

	tokens, err := NewTokenService(testSecret,
		WithClock(func() time.Time { return clock }),
		WithAccessTTL(2*time.Hour))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	sessions := NewSessionPolicy(30*time.Minute,
		WithSessionClock(func() time.Time { return clock }))
	g, err := NewGateway(dir, tokens, sessions, &fakeMailer{}, "https://app.example.com")
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	ctx := context.Background()
	result, err := g.Login(ctx, "ada@example.com", "s3cret-pass", RequestContext{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Within the window the refresh succeeds and moves issued-at forward.
	clock = issued.Add(20 * time.Minute)
	fresh, remaining, err := g.RefreshToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if remaining != "01:00:00" {
		t.Fatalf("remaining = %q", remaining)
	}

	// Past the window the original token is dead even though its expiry holds,
	// while the refreshed token carries the newer issued-at and stays usable.
	clock = issued.Add(45 * time.Minute)
	if _, _, err := g.RefreshToken(ctx, result.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stale refresh err = %v, want ErrUnauthorized", err)
	}
	if _, _, err := g.RefreshToken(ctx, fresh); err != nil {
		t.Fatalf("refresh of refreshed token: %v", err)
	}
}

func TestSendResetLink(t *testing.T) {
	dir := seedDirectory(t)
	mailer := &fakeMailer{}
	g := newTestGateway(t, dir, mailer)
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	ctx := context.Background()
	if err := g.SendResetLink(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown email err = %v, want ErrNotFound", err)
	}
	if len(mailer.calls) != 0 {
		t.Fatalf("no mail must be dispatched for unknown email, got %d", len(mailer.calls))
	}

	if err := g.SendResetLink(ctx, "Ada@Example.com"); err != nil {
		t.Fatalf("SendResetLink: %v", err)
	}
	if len(mailer.calls) != 1 {
		t.Fatalf("dispatch count = %d, want 1", len(mailer.calls))
	}
	link := mailer.calls[0]
	if !strings.HasPrefix(link, "https://app.example.com/reset-password?token=") {
		t.Fatalf("link = %q", link)
	}
}

func TestSendResetLinkDispatchFailure(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{fail: true})
	registerUser(t, g, "ada@example.com", "s3cret-pass")

	if err := g.SendResetLink(context.Background(), "ada@example.com"); !errors.Is(err, ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
}

func TestResetPassword(t *testing.T) {
	dir := seedDirectory(t)
	g := newTestGateway(t, dir, &fakeMailer{})
	u := registerUser(t, g, "ada@example.com", "old-password")

	ctx := context.Background()
	token, _, err := g.Tokens().IssueReset(u.ID)
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}

	if err := g.ResetPassword(ctx, token, "old-password"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("same password err = %v, want ErrInvalidInput", err)
	}
	if err := g.ResetPassword(ctx, token, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty password err = %v, want ErrInvalidInput", err)
	}
	if err := g.ResetPassword(ctx, "garbage", "fresh-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad token err = %v, want ErrUnauthorized", err)
	}

	// An access token must never authorize a password change.
	access, _, err := g.Tokens().Issue(u.ID, u.Email, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := g.ResetPassword(ctx, access, "fresh-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("access token err = %v, want ErrUnauthorized", err)
	}

	if err := g.ResetPassword(ctx, token, "fresh-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := g.Login(ctx, "ada@example.com", "old-password", RequestContext{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := g.Login(ctx, "ada@example.com", "fresh-password", RequestContext{}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
