package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/pagecrop/pagecrop/backend-go/internal/db/dbgen"
)

type memQueries struct {
	mu    sync.Mutex
	users map[string]dbgen.User
}

func (m *memQueries) CreateUser(_ context.Context, arg dbgen.CreateUserParams) (dbgen.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == arg.Email {
			return dbgen.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	u := dbgen.User{ID: arg.ID, Email: arg.Email, Password: arg.Password, DisplayName: arg.DisplayName}
	m.users[u.ID] = u
	return u, nil
}

func (m *memQueries) GetUserByEmail(_ context.Context, email string) (dbgen.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return dbgen.User{}, pgx.ErrNoRows
}

func (m *memQueries) GetUserByID(_ context.Context, id string) (dbgen.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return dbgen.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func newTestService() *Service {
	return NewService(&memQueries{users: map[string]dbgen.User{}}, "test-secret", Options{BcryptCost: bcrypt.MinCost})
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	reg, err := s.Register(ctx, " Ada@Example.com ", "hunter22", "Ada")
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if reg.Operator.Email != "ada@example.com" {
		t.Errorf("email = %q, want normalized", reg.Operator.Email)
	}

	if _, err := s.Register(ctx, "ada@example.com", "other-pass", "Ada 2"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("second Register() = %v, want ErrEmailTaken", err)
	}

	login, err := s.Login(ctx, "ADA@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	id, err := s.ValidateToken(login.Token)
	if err != nil || id != reg.Operator.ID {
		t.Errorf("ValidateToken() = %q, %v; want %q", id, err, reg.Operator.ID)
	}

	if _, err := s.Login(ctx, "ada@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) = %v", err)
	}
	if _, err := s.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown) = %v", err)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	s := newTestService()
	reg, err := s.Register(context.Background(), "op@example.com", "password1", "Op")
	if err != nil {
		t.Fatal(err)
	}

	other := NewService(&memQueries{users: map[string]dbgen.User{}}, "other-secret", Options{})
	if _, err := other.ValidateToken(reg.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := s.ValidateToken(reg.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: %v", err)
	}

	if _, err := s.ValidateToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestService()
	reg, _ := s.Register(context.Background(), "op@example.com", "password1", "Op")

	var seen string
	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer " + reg.Token, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/scans", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
	if seen != reg.Operator.ID {
		t.Errorf("context operator = %q, want %q", seen, reg.Operator.ID)
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	h := NewHandler(newTestService())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing fields", `{"email":"a@b.c"}`, http.StatusBadRequest},
		{"bad email", `{"email":"nope","password":"password1","displayName":"x"}`, http.StatusBadRequest},
		{"short password", `{"email":"a@b.c","password":"short","displayName":"x"}`, http.StatusBadRequest},
		{"ok", `{"email":"a@b.c","password":"password1","displayName":"x"}`, http.StatusCreated},
		{"taken", `{"email":"a@b.c","password":"password1","displayName":"x"}`, http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, httptest.NewRequest("POST", "/auth/register", strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}
