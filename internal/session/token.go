package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authcore/internal/users"
)

const DefaultTTL = time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Service signs and verifies session tokens. The secret is fixed for the
// lifetime of the process; there is no rotation and no revocation, so a
// token stays valid until it expires even if the account changes underneath
// it. Callers that need current account state must hit the store.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService builds a token service signing with secret. A zero ttl means
// DefaultTTL; a negative ttl is kept as-is and issues already-expired tokens,
// which tests rely on.
func NewService(secret string, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Claims is the identity snapshot embedded in every token, captured at
// issuance time.
type Claims struct {
	UserID             string     `json:"uid"`
	Email              string     `json:"email"`
	Username           string     `json:"username"`
	Role               users.Role `json:"role"`
	MustChangePassword bool       `json:"mustChangePassword"`
	jwt.RegisteredClaims
}

func (s *Service) Issue(u *users.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:             u.ID,
		Email:              u.Email,
		Username:           u.Username,
		Role:               u.Role,
		MustChangePassword: u.MustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// Parse checks signature and expiry. Any failure, including a malformed
// token, comes back as ErrInvalidToken.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
