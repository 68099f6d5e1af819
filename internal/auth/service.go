package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/pagecrop/pagecrop/backend-go/internal/db/dbgen"
	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrOperatorNotFound   = errors.New("operator not found")
)

const defaultTokenTTL = 12 * time.Hour

// Queries is the subset of dbgen.Queries the service uses.
type Queries interface {
	CreateUser(ctx context.Context, arg dbgen.CreateUserParams) (dbgen.User, error)
	GetUserByEmail(ctx context.Context, email string) (dbgen.User, error)
	GetUserByID(ctx context.Context, id string) (dbgen.User, error)
}

// Options tunes token lifetime and hashing cost. Zero values use defaults.
type Options struct {
	TokenTTL   time.Duration
	BcryptCost int
}

// Service manages operator accounts and signs session tokens.
type Service struct {
	queries   Queries
	jwtSecret []byte
	tokenTTL  time.Duration
	cost      int
	now       func() time.Time
}

func NewService(queries Queries, jwtSecret string, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 12
	}
	return &Service{
		queries:   queries,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  opts.TokenTTL,
		cost:      opts.BcryptCost,
		now:       time.Now,
	}
}

type AuthResult struct {
	Token    string   `json:"token"`
	Operator Operator `json:"operator"`
}

// Operator is a person cropping scans.
type Operator struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (s *Service) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	dbUser, err := s.queries.CreateUser(ctx, dbgen.CreateUserParams{
		ID:          typeid.NewUserID(),
		Email:       normalizeEmail(email),
		Password:    string(hash),
		DisplayName: displayName,
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create operator: %w", err)
	}

	return s.session(dbUser)
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	dbUser, err := s.queries.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(dbUser.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.session(dbUser)
}

// ValidateToken returns the operator id a token was issued to.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *Service) GetOperator(ctx context.Context, operatorID string) (*Operator, error) {
	dbUser, err := s.queries.GetUserByID(ctx, operatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}
	op := toOperator(dbUser)
	return &op, nil
}

func (s *Service) session(u dbgen.User) (*AuthResult, error) {
	token, err := s.issueToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Operator: toOperator(u)}, nil
}

func (s *Service) issueToken(operatorID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   operatorID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func toOperator(u dbgen.User) Operator {
	return Operator{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
