package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"

	app_errors "localchat/backend/internal/errors"
	"localchat/backend/internal/model"
	"localchat/backend/internal/repository"
)

// GoogleTokenVerifier validates a Google ID token and returns its claims.
// The indirection exists so tests can avoid calling Google.
type GoogleTokenVerifier func(ctx context.Context, credential, audience string) (*GoogleClaims, error)

// GoogleClaims is the subset of a verified Google ID token the service uses.
type GoogleClaims struct {
	Subject string
	Email   string
	Name    string
}

// VerifyGoogleIDToken is the production GoogleTokenVerifier, backed by
// Google's token validation endpoint.
func VerifyGoogleIDToken(ctx context.Context, credential, audience string) (*GoogleClaims, error) {
	payload, err := idtoken.Validate(ctx, credential, audience)
	if err != nil {
		return nil, err
	}
	claims := &GoogleClaims{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		claims.Name = name
	}
	return claims, nil
}

// AuthService handles registration, login, Google sign-in, and token
// issue/verify. Tokens are HS256 JWTs whose subject is the user ID.
type AuthService struct {
	users          repository.UserRepository
	jwtSecret      []byte
	tokenExpiry    time.Duration
	googleClientID string
	verifyGoogle   GoogleTokenVerifier
}

func NewAuthService(users repository.UserRepository, jwtSecret string, tokenExpiry time.Duration, googleClientID string, verifier GoogleTokenVerifier) *AuthService {
	if verifier == nil {
		verifier = VerifyGoogleIDToken
	}
	return &AuthService{
		users:          users,
		jwtSecret:      []byte(jwtSecret),
		tokenExpiry:    tokenExpiry,
		googleClientID: googleClientID,
		verifyGoogle:   verifier,
	}
}

// TokenExpiry returns the configured token lifetime, used by the API layer to
// set the cookie max-age.
func (s *AuthService) TokenExpiry() time.Duration {
	return s.tokenExpiry
}

// Register creates a local account and returns it with a fresh token.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, string, error) {
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, "", fmt.Errorf("%w: username already exists", app_errors.ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("could not hash password: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		AuthProvider: "local",
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLogin:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("could not create user: %w", err)
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies the password and returns the user with a fresh token. A
// missing user and a wrong password produce the same error so usernames
// cannot be probed.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: invalid username or password", app_errors.ErrUnauthorized)
		}
		return nil, "", err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", fmt.Errorf("%w: invalid username or password", app_errors.ErrUnauthorized)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		slog.Warn("Failed to update last login", "user_id", user.ID, "error", err)
	}
	user.LastLogin = now

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// LoginWithGoogle verifies a Google ID token and creates the account on first
// sign-in.
func (s *AuthService) LoginWithGoogle(ctx context.Context, credential string) (*model.User, string, error) {
	if s.googleClientID == "" {
		return nil, "", fmt.Errorf("%w: Google OAuth not configured", app_errors.ErrInternal)
	}

	claims, err := s.verifyGoogle(ctx, credential, s.googleClientID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid Google token: %v", app_errors.ErrUnauthorized, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user, err := s.users.GetUserByGoogleID(ctx, claims.Subject)
	switch {
	case err == nil:
		if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
			slog.Warn("Failed to update last login", "user_id", user.ID, "error", err)
		}
	case errors.Is(err, repository.ErrNotFound):
		name := claims.Name
		if name == "" {
			name = strings.SplitN(claims.Email, "@", 2)[0]
		}
		user = &model.User{
			ID:           uuid.NewString(),
			Username:     name,
			Email:        claims.Email,
			GoogleID:     claims.Subject,
			AuthProvider: "google",
			CreatedAt:    now,
			UpdatedAt:    now,
			LastLogin:    now,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, "", fmt.Errorf("could not create user: %w", err)
		}
	default:
		return nil, "", err
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ResolveUser maps a bearer token to the account it belongs to.
func (s *AuthService) ResolveUser(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.verifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid or expired token", app_errors.ErrUnauthorized)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", app_errors.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueToken(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenExpiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("could not sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) verifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
