// Package auth handles accounts, password checks and the session token
// that carries an Identity between requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
)

const defaultBcryptCost = 12

var ErrInvalidCredentials = apierr.New(apierr.Unauthorized, "invalid email or password")

// ValidationError lists every problem in a signup payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string     { return strings.Join(e.Problems, "; ") }
func (e *ValidationError) Kind() apierr.Kind { return apierr.Invalid }

type SignupInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type Service struct {
	users        UserStore
	secret       []byte
	ttl          time.Duration
	secureCookie bool
	cost         int
	now          func() time.Time
	log          *zap.Logger
	validate     *validator.Validate
}

type Option func(*Service)

func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithSecureCookie(on bool) Option { return func(s *Service) { s.secureCookie = on } }

func WithBcryptCost(cost int) Option { return func(s *Service) { s.cost = cost } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(users UserStore, secret string, opts ...Option) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	s := &Service{
		users:    users,
		secret:   []byte(secret),
		ttl:      DefaultTokenTTL,
		cost:     defaultBcryptCost,
		now:      time.Now,
		log:      zap.NewNop(),
		validate: v,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Signup creates a regular user.
func (s *Service) Signup(ctx context.Context, in SignupInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return User{}, signupProblems(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         RoleUser,
		PasswordHash: string(hash),
	})
	if err != nil {
		return User{}, err
	}
	s.log.Info("user signed up", zap.String("user_id", u.ID))
	return u, nil
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrUnauthorized
	}
	return s.users.FindByID(ctx, userID)
}

// EnsureAdmin creates the admin account, or promotes and re-keys an
// existing account with that email. created reports which happened.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (u User, created bool, err error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < 6 {
		return User{}, false, &ValidationError{Problems: []string{"admin email and a password of at least 6 characters are required"}}
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "Admin"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, false, fmt.Errorf("hash password: %w", err)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		existing.Role = RoleAdmin
		existing.PasswordHash = string(hash)
		if err := s.users.Update(ctx, existing); err != nil {
			return User{}, false, err
		}
		s.log.Info("admin promoted", zap.String("user_id", existing.ID))
		return existing, false, nil
	case errors.Is(err, ErrUserNotFound):
		u, err := s.users.Create(ctx, User{Name: name, Email: email, Role: RoleAdmin, PasswordHash: string(hash)})
		if err != nil {
			return User{}, false, err
		}
		s.log.Info("admin created", zap.String("user_id", u.ID))
		return u, true, nil
	default:
		return User{}, false, err
	}
}

// resolveRole returns the role currently stored for id. A user that no
// longer exists is anonymous; a lookup failure downgrades to RoleUser.
func (s *Service) resolveRole(ctx context.Context, id Identity) Identity {
	if s.users == nil {
		return id
	}
	u, err := s.users.FindByID(ctx, id.UserID)
	switch {
	case err == nil:
		return u.Identity()
	case errors.Is(err, ErrUserNotFound):
		return Identity{}
	default:
		s.log.Warn("role lookup failed", zap.String("user_id", id.UserID), zap.Error(err))
		return Identity{UserID: id.UserID, Role: RoleUser}
	}
}

func signupProblems(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		f := fe.Field()
		switch fe.Tag() {
		case "required":
			out.Problems = append(out.Problems, f+" is required")
		case "email":
			out.Problems = append(out.Problems, "invalid email address")
		case "min":
			out.Problems = append(out.Problems, fmt.Sprintf("%s must be at least %s characters", f, fe.Param()))
		case "max":
			out.Problems = append(out.Problems, fmt.Sprintf("%s must be at most %s characters", f, fe.Param()))
		default:
			out.Problems = append(out.Problems, fmt.Sprintf("%s failed %s", f, fe.Tag()))
		}
	}
	return out
}
