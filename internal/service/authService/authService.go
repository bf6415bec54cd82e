package authService

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/internal/model/user"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const (
	DefaultAccessTTL  = 3 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
}

type RefreshStore interface {
	SaveToken(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error
	DeleteToken(ctx context.Context, userID uuid.UUID) error
	ValidateToken(ctx context.Context, userID uuid.UUID, token string) (bool, error)
}

type Blacklist interface {
	AddToken(ctx context.Context, token string, expiresAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

type Config struct {
	JWTSecret  string        `env:"JWT_TOKEN" env-required:"true"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL" env-default:"3h"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL" env-default:"168h"`
}

type AuthService struct {
	users      UserStore
	refresh    RefreshStore
	blacklist  Blacklist
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(users UserStore, cfg Config, refresh RefreshStore, blacklist Blacklist) *AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &AuthService{
		users:      users,
		refresh:    refresh,
		blacklist:  blacklist,
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Register creates an account and returns its id. Duplicate usernames or
// emails are reported as apperr.ErrConflict.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return uuid.Nil, apperr.New(apperr.ErrInvalidInput, "username, email and password are required", nil)
	}
	if !emailRegex.MatchString(email) {
		return uuid.Nil, apperr.New(apperr.ErrInvalidInput, "invalid email format", nil)
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return uuid.Nil, apperr.New(apperr.ErrConflict, "email already registered", nil)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("check email: %w", err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return uuid.Nil, apperr.New(apperr.ErrConflict, "username already taken", nil)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("check username: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to hash password: %w", err)
	}
	// the unique constraints still catch a concurrent registration
	return s.users.Create(ctx, username, email, string(hashedPassword))
}

// Login checks the credentials and returns an access token, a refresh token
// and the user id.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, string, uuid.UUID, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", "", uuid.Nil, apperr.New(apperr.ErrUnauthenticated, "incorrect username or password", nil)
	}
	if err != nil {
		return "", "", uuid.Nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return "", "", uuid.Nil, apperr.New(apperr.ErrUnauthenticated, "incorrect username or password", nil)
	}

	accessToken, err := s.generateJWT(u)
	if err != nil {
		return "", "", uuid.Nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.generateRefreshToken(ctx, u.ID)
	if err != nil {
		return "", "", uuid.Nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return accessToken, refreshToken, u.ID, nil
}

func (s *AuthService) generateJWT(u *user.User) (string, error) {
	now := time.Now()
	payload := jwt.RegisteredClaims{
		Subject:   u.ID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	return token.SignedString(s.secret)
}

func (s *AuthService) parse(token string) (*jwt.RegisteredClaims, error) {
	payload := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, payload, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token is not valid")
	}
	return payload, nil
}

// GetUIDByToken returns the user a token was issued to. The second result is
// false for blacklisted, malformed, forged or expired tokens.
func (s *AuthService) GetUIDByToken(ctx context.Context, token string) (uuid.UUID, bool) {
	if token == "" {
		return uuid.Nil, false
	}
	blacklisted, err := s.blacklist.IsTokenBlacklisted(ctx, token)
	if err != nil || blacklisted {
		return uuid.Nil, false
	}
	payload, err := s.parse(token)
	if err != nil {
		return uuid.Nil, false
	}
	uid, err := uuid.Parse(payload.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return uid, true
}

// Authenticate is GetUIDByToken with the failure as apperr.ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	uid, ok := s.GetUIDByToken(ctx, token)
	if !ok {
		return uuid.Nil, apperr.ErrUnauthenticated
	}
	return uid, nil
}

func (s *AuthService) generateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	refreshToken := uuid.NewString()
	if err := s.refresh.SaveToken(ctx, userID, refreshToken, s.refreshTTL); err != nil {
		return "", err
	}
	return refreshToken, nil
}

// Logout drops the refresh token and blacklists the access token until it
// would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, accessToken string) error {
	if err := s.refresh.DeleteToken(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	payload, err := s.parse(accessToken)
	if err != nil {
		return apperr.New(apperr.ErrUnauthenticated, apperr.ErrUnauthenticated.Error(), err)
	}
	if err := s.blacklist.AddToken(ctx, accessToken, payload.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// RefreshToken rotates the refresh token and issues a new access token.
func (s *AuthService) RefreshToken(ctx context.Context, userID uuid.UUID, oldRefreshToken string) (string, string, error) {
	valid, err := s.refresh.ValidateToken(ctx, userID, oldRefreshToken)
	if err != nil {
		return "", "", fmt.Errorf("validate refresh token: %w", err)
	}
	if !valid {
		return "", "", apperr.New(apperr.ErrUnauthenticated, "expired refresh token", nil)
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", "", apperr.New(apperr.ErrUnauthenticated, "expired refresh token", nil)
	}
	if err != nil {
		return "", "", err
	}

	newAccessToken, err := s.generateJWT(u)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err := s.generateRefreshToken(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}
