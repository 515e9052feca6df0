package service

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

const minPasswordLength = 6

// dummyHash is compared against when there is no stored hash to check: an
// unknown username or a legacy plain-text credential.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type RegisterRequest struct {
	Username        string
	Password        string
	ConfirmPassword string
	Role            string
}

// Claims are carried by session tokens.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Session is an authenticated identity resolved from a token.
type Session struct {
	ID        string
	UserID    string
	Username  string
	Role      domain.Role
	ExpiresAt time.Time
}

// AuthService gates the ledger: it validates registrations, checks
// credentials and issues HS256 session tokens. Logout revokes a session id
// until the token would have expired anyway.
type AuthService struct {
	ledger *LedgerService
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	// compare checks a password against a bcrypt hash.
	compare func(hash, password []byte) error

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewAuthService(ledger *LedgerService, secret []byte, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		ledger:  ledger,
		secret:  secret,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		compare: bcrypt.CompareHashAndPassword,
		revoked: make(map[string]time.Time),
	}
}

// ValidateRegistration applies the boundary rules for new credentials.
func ValidateRegistration(req *RegisterRequest) (domain.Role, error) {
	if req.Username == "" || req.Password == "" || req.ConfirmPassword == "" {
		return "", errors.ErrInvalidInput.WithDetails("all fields are required")
	}
	if req.Password != req.ConfirmPassword {
		return "", errors.ErrInvalidInput.WithDetails("passwords do not match")
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return "", errors.ErrInvalidInput.WithDetails("password must be at least 6 characters")
	}
	for _, r := range req.Username {
		if !unicode.IsLetter(r) {
			return "", errors.ErrInvalidInput.WithDetails("username must contain letters only")
		}
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return "", errors.ErrInvalidInput.WithDetails(err.Error())
	}
	return role, nil
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*domain.User, *domain.Account, error) {
	role, err := ValidateRegistration(req)
	if err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, errors.ErrInternal.Wrap(err)
	}
	return s.ledger.RegisterUser(ctx, req.Username, string(hash), role)
}

// Authenticate returns the user for an exact username and password match.
// Every failure is reported as ErrInvalidCredentials, and every path pays
// for exactly one bcrypt comparison.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, found := s.ledger.FindUser(username)
	if !found {
		_ = s.compare(dummyHash, []byte(password))
		return nil, errors.ErrInvalidCredentials
	}

	if !isBcryptHash(user.Password) {
		_ = s.compare(dummyHash, []byte(password))
		if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
			return nil, errors.ErrInvalidCredentials
		}
		s.upgradeCredential(ctx, user.ID, password)
		return user, nil
	}

	if s.compare([]byte(user.Password), []byte(password)) != nil {
		return nil, errors.ErrInvalidCredentials
	}
	return user, nil
}

// upgradeCredential rehashes a legacy plain-text password. Failure keeps the
// old credential and is not fatal to the login.
func (s *AuthService) upgradeCredential(ctx context.Context, userID, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err == nil {
		err = s.ledger.ReplaceCredential(ctx, userID, string(hash))
	}
	if err != nil {
		s.logger.Warn("Failed to upgrade legacy credential", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("Legacy credential upgraded", "user_id", userID)
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// Login authenticates and issues a signed session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.Info("Login failed", "username", username)
		return "", nil, err
	}

	now := s.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, errors.ErrInternal.Wrap(err)
	}

	s.ledger.audit.Log("User logged in: " + username)
	return token, user, nil
}

// Verify resolves a token into a live session.
func (s *AuthService) Verify(tokenString string) (*Session, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.ErrUnauthorized.WithDetails(err.Error())
	}

	if s.isRevoked(claims.ID) {
		return nil, errors.ErrUnauthorized.WithDetails("session has been logged out")
	}

	user, err := s.ledger.User(claims.Subject)
	if err != nil || user.Role != claims.Role {
		return nil, errors.ErrUnauthorized.WithDetails("unknown session user")
	}

	return &Session{
		ID:        claims.ID,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the session until its natural expiry.
func (s *AuthService) Logout(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[session.ID] = session.ExpiresAt
	s.ledger.audit.Log("User logged out: " + session.Username)
}

func (s *AuthService) isRevoked(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[sessionID]
	return ok
}

// Authorize checks a session against the role an operation requires.
func Authorize(session *Session, required domain.Role) error {
	if session == nil {
		return errors.ErrUnauthorized
	}
	switch required {
	case domain.RoleClient, domain.RoleEmployee:
		if session.Role != required {
			return errors.ErrForbidden.WithDetails(string(required) + " role required")
		}
		return nil
	default:
		return errors.ErrForbidden
	}
}
