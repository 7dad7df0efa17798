// Package jwtauth mints and validates the HS256 bearer tokens that carry a
// caller principal to the ledger's mutating routes. The ledger itself only
// sees the principal UUID; token handling stays at the transport edge.
package jwtauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "sigil/pkg/domain-errors"
	authmw "sigil/pkg/platform/middleware/auth"
)

// Claims are the JWT claims for principal tokens.
type Claims struct {
	Principal string `json:"principal"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// GeneratePrincipalToken issues a token for the given principal.
func (s *Service) GeneratePrincipalToken(principal uuid.UUID, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Principal: principal.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken implements auth.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (*authmw.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	principal, err := uuid.Parse(claims.Principal)
	if err != nil || principal == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid principal claim")
	}

	return &authmw.Claims{Principal: principal, JTI: claims.ID}, nil
}
