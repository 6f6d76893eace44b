package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Batpurev0828/qbtusul/internal/db"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *SQLUsers) {
	t.Helper()
	sqldb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	users := NewSQLUsers(sqldb)
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewService(users, "test-secret", opts...), users
}

func TestSignupAndLogin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	u, err := s.Signup(ctx, SignupInput{Name: "Ann", Email: "  Ann@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.Email != "ann@example.com" || u.Role != RoleUser || u.PasswordHash == "secret1" {
		t.Fatalf("user = %+v", u)
	}

	got, err := s.Login(ctx, "ANN@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("login id = %q, want %q", got.ID, u.ID)
	}

	for _, tc := range []struct{ email, pw string }{
		{"ann@example.com", "wrong-pw"},
		{"nobody@example.com", "secret1"},
		{"", ""},
	} {
		if _, err := s.Login(ctx, tc.email, tc.pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q): %v", tc.email, err)
		}
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	in := SignupInput{Name: "Ann", Email: "ann@example.com", Password: "secret1"}
	if _, err := s.Signup(ctx, in); err != nil {
		t.Fatal(err)
	}
	in.Email = "ANN@example.com"
	if _, err := s.Signup(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	s, _ := newTestService(t)
	cases := []struct {
		in   SignupInput
		want string
	}{
		{SignupInput{Name: "A", Email: "a@b.co", Password: "secret1"}, "name must be at least 2"},
		{SignupInput{Name: "Ann", Email: "not-an-email", Password: "secret1"}, "invalid email"},
		{SignupInput{Name: "Ann", Email: "a@b.co", Password: "123"}, "password must be at least 6"},
		{SignupInput{Name: "Ann", Email: "a@b.co", Password: strings.Repeat("x", 129)}, "password must be at most 128"},
	}
	for _, tc := range cases {
		_, err := s.Signup(context.Background(), tc.in)
		var verr *ValidationError
		if !errors.As(err, &verr) || !strings.Contains(verr.Error(), tc.want) {
			t.Errorf("Signup(%+v) = %v, want %q", tc.in, err, tc.want)
		}
	}
}

func TestTokenRoundTripAndExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := newTestService(t, WithClock(func() time.Time { return now }))

	tok, err := s.IssueToken(Identity{UserID: "u1", Role: RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.ParseToken(tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if id.UserID != "u1" || !id.IsAdmin() {
		t.Fatalf("identity = %+v", id)
	}

	now = now.Add(DefaultTokenTTL + time.Minute)
	if _, err := s.ParseToken(tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired token: %v", err)
	}

	other := NewService(nil, "other-secret")
	if _, err := other.ParseToken(tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign secret: %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	s, users := newTestService(t)
	ctx := context.Background()

	u, created, err := s.EnsureAdmin(ctx, "Root", "root@example.com", "rootpw1")
	if err != nil || !created || u.Role != RoleAdmin {
		t.Fatalf("first EnsureAdmin: %+v %v %v", u, created, err)
	}
	again, created, err := s.EnsureAdmin(ctx, "Root", "root@example.com", "rootpw2")
	if err != nil || created || again.ID != u.ID {
		t.Fatalf("second EnsureAdmin: %+v %v %v", again, created, err)
	}
	if _, err := s.Login(ctx, "root@example.com", "rootpw2"); err != nil {
		t.Fatalf("password not rotated: %v", err)
	}

	// promote an existing regular user
	plain, _ := s.Signup(ctx, SignupInput{Name: "Bea", Email: "bea@example.com", Password: "beapw12"})
	if _, _, err := s.EnsureAdmin(ctx, "", "bea@example.com", "beapw12"); err != nil {
		t.Fatal(err)
	}
	stored, _ := users.FindByID(ctx, plain.ID)
	if stored.Role != RoleAdmin {
		t.Fatalf("role = %q", stored.Role)
	}
}

func TestAuthenticateMiddleware(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	u, err := s.Signup(ctx, SignupInput{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	// a token claiming admin is corrected by the stored role
	forged, _ := s.IssueToken(Identity{UserID: u.ID, Role: RoleAdmin})
	ghost, _ := s.IssueToken(Identity{UserID: "deleted-user", Role: RoleAdmin})

	var seen Identity
	h := Authenticate(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
	}))

	cases := []struct {
		name  string
		setup func(*http.Request)
		want  Identity
	}{
		{"none", func(*http.Request) {}, Identity{}},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) }, Identity{UserID: u.ID, Role: RoleUser}},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: forged}) }, Identity{UserID: u.ID, Role: RoleUser}},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, Identity{}},
		{"unknown user", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghost) }, Identity{}},
	}
	for _, tc := range cases {
		seen = Identity{UserID: "stale"}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		tc.setup(req)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != tc.want {
			t.Errorf("%s: identity = %+v, want %+v", tc.name, seen, tc.want)
		}
	}
}

func TestRequireUser(t *testing.T) {
	h := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("anonymous: %d %s", rec.Code, rec.Body)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "u", Role: RoleUser}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("authenticated: %d", rec.Code)
	}
}

func TestCookieHelpers(t *testing.T) {
	s, _ := newTestService(t, WithSecureCookie(true))
	rec := httptest.NewRecorder()
	s.SetCookie(rec, "tok")
	c := rec.Result().Cookies()[0]
	if c.Name != CookieName || c.Value != "tok" || !c.HttpOnly || !c.Secure || c.MaxAge != int(DefaultTokenTTL/time.Second) {
		t.Fatalf("cookie = %+v", c)
	}
	rec = httptest.NewRecorder()
	s.ClearCookie(rec)
	if c := rec.Result().Cookies()[0]; c.MaxAge >= 0 {
		t.Fatalf("clear cookie = %+v", c)
	}
}
