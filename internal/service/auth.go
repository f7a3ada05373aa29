package service

import (
	"context"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

// lockPasswordKey is the settings key holding the bcrypt hash of the
// lock-screen password. Absent means the tracker is not locked.
const lockPasswordKey = "lock_password_hash"

// AuthService implements the optional lock screen: a single local
// password whose hash lives in settings, exchanged for a short-lived
// unlock token.
type AuthService struct {
	settings  port.SettingsStore
	jwtSecret []byte
	unlockTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(settings port.SettingsStore, jwtSecret string, unlockTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		settings:  settings,
		jwtSecret: []byte(jwtSecret),
		unlockTTL: unlockTTL,
		logger:    logger,
	}
}

// HasPassword reports whether a lock-screen password is set.
func (s *AuthService) HasPassword(ctx context.Context) (bool, error) {
	hash, err := s.settings.GetSetting(ctx, lockPasswordKey)
	if err != nil {
		return false, fmt.Errorf("get password hash: %w", err)
	}
	return hash != "", nil
}

// SetPassword sets or changes the lock-screen password. Changing an
// existing password requires the current one.
func (s *AuthService) SetPassword(ctx context.Context, current, next string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.SetPassword")
	defer span.End()

	if len(next) < 4 {
		return &domain.ErrValidation{Field: "password", Message: "must be at least 4 characters"}
	}

	if err := s.verifyCurrent(ctx, current); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.settings.SetSetting(ctx, lockPasswordKey, string(hash)); err != nil {
		return fmt.Errorf("store password hash: %w", err)
	}

	s.logger.Info("lock-screen password updated")
	return nil
}

// ClearPassword removes the lock screen. The current password is
// required.
func (s *AuthService) ClearPassword(ctx context.Context, current string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.ClearPassword")
	defer span.End()

	hash, err := s.settings.GetSetting(ctx, lockPasswordKey)
	if err != nil {
		return fmt.Errorf("get password hash: %w", err)
	}
	if hash == "" {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)) != nil {
		return &domain.ErrUnauthorized{Message: "wrong password"}
	}

	if err := s.settings.SetSetting(ctx, lockPasswordKey, ""); err != nil {
		return fmt.Errorf("clear password hash: %w", err)
	}

	s.logger.Info("lock-screen password removed")
	return nil
}

// verifyCurrent checks the current password when one is set.
func (s *AuthService) verifyCurrent(ctx context.Context, current string) error {
	hash, err := s.settings.GetSetting(ctx, lockPasswordKey)
	if err != nil {
		return fmt.Errorf("get password hash: %w", err)
	}
	if hash == "" {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)) != nil {
		return &domain.ErrUnauthorized{Message: "wrong password"}
	}
	return nil
}

// UnlockClaims are the claims carried by unlock tokens.
type UnlockClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Unlock verifies the password and issues an unlock token. The token's
// lifetime is the configured unlock TTL.
func (s *AuthService) Unlock(ctx context.Context, password string) (string, int, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Unlock")
	defer span.End()

	hash, err := s.settings.GetSetting(ctx, lockPasswordKey)
	if err != nil {
		return "", 0, fmt.Errorf("get password hash: %w", err)
	}
	if hash == "" {
		return "", 0, &domain.ErrValidation{Field: "password", Message: "no lock-screen password is set"}
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		s.logger.Warn("failed unlock attempt")
		return "", 0, &domain.ErrUnauthorized{Message: "wrong password"}
	}

	now := time.Now()
	claims := &UnlockClaims{
		Scope: "unlock",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "finch",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.unlockTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, fmt.Errorf("sign unlock token: %w", err)
	}

	return token, int(s.unlockTTL.Seconds()), nil
}

// ValidateUnlockToken parses and verifies an unlock token. Used by the
// lock middleware.
func (s *AuthService) ValidateUnlockToken(tokenString string) (*UnlockClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UnlockClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid unlock token"}
	}

	claims, ok := token.Claims.(*UnlockClaims)
	if !ok || !token.Valid || claims.Scope != "unlock" {
		return nil, &domain.ErrUnauthorized{Message: "invalid unlock token"}
	}
	return claims, nil
}
