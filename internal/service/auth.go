package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

// SecretPrefix is the required prefix of every issued credential secret.
// A presented secret without it is rejected before any store lookup.
const SecretPrefix = "dotm_"

var (
	ErrMalformedCredential = errors.New("malformed credential")
	ErrUnknownCredential   = errors.New("unknown or inactive credential")
	ErrInvalidLogin        = errors.New("invalid email or password")
)

// AuthService validates API credentials for public lookup traffic and
// operator logins for the management API.
type AuthService struct {
	store     *store.Store
	jwtSecret []byte
	logger    *slog.Logger
}

func NewAuthService(st *store.Store, jwtSecret string, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:     st,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// AuthenticateCredential checks a presented secret against stored credential
// hashes. On success it bumps the use counter and last-used timestamp
// asynchronously so the caller never waits on that write. The raw secret is
// never logged and never escapes this call.
func (s *AuthService) AuthenticateCredential(ctx context.Context, presented string) (*model.Credential, error) {
	if presented == "" || !strings.HasPrefix(presented, SecretPrefix) {
		return nil, ErrMalformedCredential
	}
	if len(presented) < len(SecretPrefix)+16 {
		return nil, ErrMalformedCredential
	}

	cred, err := s.store.GetCredentialByHash(ctx, store.HashSecret(presented))
	if err != nil {
		return nil, ErrUnknownCredential
	}
	if !cred.IsActive {
		return nil, ErrUnknownCredential
	}

	// Fire and forget; a lost touch only makes the counter approximate.
	go func(id int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.TouchCredential(ctx, id); err != nil {
			s.logger.Warn("credential touch failed", "credential_id", id, "error", err)
		}
	}(cred.ID)

	return cred, nil
}

// LoginAdmin verifies an operator's email and password and returns the
// account on success.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (*model.Admin, error) {
	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidLogin
	}
	if !admin.IsActive {
		return nil, ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidLogin
	}

	go func(id int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.store.TouchAdminLogin(ctx, id)
	}(admin.ID)

	return admin, nil
}

// IssueJWT creates a signed session token for an operator.
func (s *AuthService) IssueJWT(adminID int64, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "deviceinsights",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateJWT verifies an operator session token.
func (s *AuthService) ValidateJWT(tokenStr string) (adminID int64, email string, err error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidLogin
	}

	return claims.AdminID, claims.Email, nil
}

// HashAdminPassword returns the bcrypt hash of an operator password.
func HashAdminPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type jwtClaims struct {
	AdminID int64  `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}
