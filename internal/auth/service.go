package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/johnrirwin/feedmix/internal/config"
	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/models"
)

// AccountFinder confirms an account exists before a token is issued for it.
type AccountFinder interface {
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
}

// Service issues and validates access tokens
type Service struct {
	config   config.AuthConfig
	accounts AccountFinder
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a new auth service. accounts may be nil, in which case
// tokens are issued without checking the account exists.
func NewService(accounts AccountFinder, cfg config.AuthConfig, logger *logging.Logger) *Service {
	return &Service{
		config:   cfg,
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// IssueToken signs an access token whose subject is username
func (s *Service) IssueToken(ctx context.Context, username string) (*models.AuthToken, error) {
	if username == "" {
		return nil, &AuthError{Code: "invalid_input", Message: "username is required"}
	}

	if s.accounts != nil {
		account, err := s.accounts.GetAccountByUsername(ctx, username)
		if err != nil {
			return nil, &AuthError{Code: "user_not_found", Message: "account not found"}
		}
		username = account.Username
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub": username,
		"iss": s.config.JWTIssuer,
		"aud": s.config.JWTAudience,
		"iat": now.Unix(),
		"exp": now.Add(s.config.AccessTokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	s.logger.Info("Issued access token", logging.WithFields(map[string]interface{}{
		"username": username,
		"expires":  now.Add(s.config.AccessTokenTTL).Format(time.RFC3339),
	}))

	return &models.AuthToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.config.AccessTokenTTL.Seconds()),
	}, nil
}

// ValidateAccessToken validates a JWT access token and returns the username
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return "", &AuthError{Code: "invalid_token", Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token claims"}
	}

	if iss, _ := claims["iss"].(string); iss != s.config.JWTIssuer {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token issuer"}
	}
	if aud, _ := claims["aud"].(string); aud != s.config.JWTAudience {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token audience"}
	}

	username, ok := claims["sub"].(string)
	if !ok || username == "" {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token subject"}
	}

	return username, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string {
	return e.Message
}
