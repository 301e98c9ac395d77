package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/devdex/devdex-backend/internal/logger"
)

// AuthService is the admin gate: one shared secret, checked once at login,
// exchanged for a bearer token that guards write routes. The core services
// assume this check already passed and never re-check authorization.
type AuthService interface {
	Login(password string) (string, error)
	VerifyToken(tokenString string) error
}

type authService struct {
	log          *logger.Logger
	passwordHash string
	jwtSecret    []byte
	tokenTTL     time.Duration
}

func NewAuthService(baseLog *logger.Logger, passwordHash, jwtSecret string, tokenTTL time.Duration) (AuthService, error) {
	if passwordHash == "" {
		return nil, fmt.Errorf("missing ADMIN_PASSWORD_HASH")
	}
	if jwtSecret == "" {
		return nil, fmt.Errorf("missing JWT_SECRET_KEY")
	}
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		passwordHash: passwordHash,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
	}, nil
}

func (s *authService) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		s.log.Warn("Admin login rejected")
		return "", fmt.Errorf("invalid password")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	s.log.Info("Admin login accepted")
	return signed, nil
}

func (s *authService) VerifyToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
