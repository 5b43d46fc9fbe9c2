package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/PryCoder/flowdesk/internal/canvas"
	"github.com/PryCoder/flowdesk/internal/directory"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

type Claims struct {
	UserID      string `json:"uid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Service validates platform credentials against the directory and
// issues the tokens the canvas gateway trusts.
type Service struct {
	creds     directory.CredentialStore
	jwtSecret string
}

func NewService(creds directory.CredentialStore, secret string) *Service {
	return &Service{
		creds:     creds,
		jwtSecret: secret,
	}
}

type RegisterResponse struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Register creates a platform account with the default employee role.
// Room capabilities are granted separately, through memberships.
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*RegisterResponse, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = username
	}

	u, err := s.creds.CreateUser(ctx, &directory.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hashed),
		Role:         canvas.RoleEmployee,
	})
	if err != nil {
		return nil, err
	}

	return &RegisterResponse{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	}, nil
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	u, err := s.creds.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "flowdesk",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: ss,
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	}, nil
}

// ValidateToken returns the caller's identity, or an error for anything
// expired, forged or malformed.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return claims, nil
}
