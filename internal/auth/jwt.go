package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TerminalRole string

const (
	RoleServer  TerminalRole = "SERVER"
	RoleManager TerminalRole = "MANAGER"
)

func (r TerminalRole) Valid() bool {
	return r == RoleServer || r == RoleManager
}

// Claims identify the terminal (tablet or register) making the request.
type Claims struct {
	TerminalID string       `json:"terminalId"`
	Role       TerminalRole `json:"role"`
	Name       *string      `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(strings.TrimSpace(authHeader), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func IssueTerminalToken(secret, terminalID string, role TerminalRole, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("secret required")
	}
	if !role.Valid() {
		return "", errors.New("invalid role")
	}
	now := time.Now()
	claims := Claims{
		TerminalID: terminalID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   terminalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func VerifyTerminalToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	if strings.TrimSpace(claims.TerminalID) == "" || !claims.Role.Valid() {
		return nil, errors.New("invalid terminal claims")
	}
	return claims, nil
}
