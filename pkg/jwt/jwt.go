package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "astro_rtc"

	audienceAdmission = "room-admission"
	audienceOperator  = "operator"
)

var ErrTokenInvalid = errors.New("token is invalid")

type Service struct {
	secretKey         []byte
	admissionDuration time.Duration
	operatorDuration  time.Duration
	now               func() time.Time
}

// NewService creates a new JWT service
func NewService(secretKey string, admissionDuration, operatorDuration time.Duration) *Service {
	return &Service{
		secretKey:         []byte(secretKey),
		admissionDuration: admissionDuration,
		operatorDuration:  operatorDuration,
		now:               time.Now,
	}
}

func (s *Service) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// parse validates signature, issuer, audience and expiry into claims
func (s *Service) parse(tokenString, audience string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return ErrTokenInvalid
	}

	return nil
}

func (s *Service) registered(audience, subject string, ttl time.Duration, id string) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		ID:        id,
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}
