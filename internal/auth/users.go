package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/db"
)

var (
	ErrUserNotFound = apierr.New(apierr.NotFound, "user not found")
	ErrEmailTaken   = apierr.New(apierr.Conflict, "an account with this email already exists")
)

// User is an account. The password hash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Identity() Identity { return Identity{UserID: u.ID, Role: u.Role} }

type UserStore interface {
	Create(ctx context.Context, u User) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, u User) error
}

type SQLUsers struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLUsers(sqldb *sql.DB) *SQLUsers {
	return &SQLUsers{db: sqldb, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLUsers) Create(ctx context.Context, u User) (User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = s.now()
	if u.Role == "" {
		u.Role = RoleUser
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id,name,email,password_hash,role,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt.UnixMilli())
	if db.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLUsers) FindByID(ctx context.Context, id string) (User, error) {
	return s.findOne(ctx, `SELECT id,name,email,password_hash,role,created_at FROM users WHERE id=$1`, id)
}

func (s *SQLUsers) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.findOne(ctx, `SELECT id,name,email,password_hash,role,created_at FROM users WHERE email=$1`, email)
}

func (s *SQLUsers) Update(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name=$1, password_hash=$2, role=$3 WHERE id=$4`,
		u.Name, u.PasswordHash, u.Role, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLUsers) findOne(ctx context.Context, q string, arg string) (User, error) {
	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}
