// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/models"
)

const tokenIssuer = "tabline"

// ErrInvalidToken is returned for any token that fails parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims identifies an enrolled terminal and the employee operating it.
type Claims struct {
	VenueID    string `json:"venue_id"`
	TerminalID string `json:"terminal_id"`
	EmployeeID string `json:"employee_id,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the identity carried through the ledger.
func (c *Claims) Actor() models.Actor {
	return models.Actor{
		VenueID:    c.VenueID,
		TerminalID: c.TerminalID,
		EmployeeID: c.EmployeeID,
		Role:       c.Role,
	}
}

// JWTManager handles JWT token creation and validation
type JWTManager struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

// NewJWTManager creates a new JWT token manager with the configured secret and timeout.
//
// Tokens are signed with HS256. The secret length is enforced by config
// validation; an empty secret is rejected here as well.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.TokenTTL,
		now:     time.Now,
	}, nil
}

// GenerateToken signs a token for a terminal session.
//
// The subject is "<venue>/<terminal>" and every token carries a random ID
// so audit entries can be correlated to a single login.
func (m *JWTManager) GenerateToken(actor models.Actor) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.timeout)
	claims := &Claims{
		VenueID:    actor.VenueID,
		TerminalID: actor.TerminalID,
		EmployeeID: actor.EmployeeID,
		Role:       actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   actor.VenueID + "/" + actor.TerminalID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, expiresAt, nil
}

// ValidateToken validates a JWT token and extracts the terminal claims.
//
// Tokens signed with anything other than HMAC are rejected before the
// signature is checked.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.VenueID == "" || claims.TerminalID == "" {
		return nil, fmt.Errorf("%w: missing venue or terminal", ErrInvalidToken)
	}
	return claims, nil
}
