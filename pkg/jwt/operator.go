package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type OperatorClaims struct {
	jwt.RegisteredClaims
}

// GenerateOperatorToken creates a token for the ops API
func (s *Service) GenerateOperatorToken(operatorID string) (string, error) {
	claims := OperatorClaims{
		RegisteredClaims: s.registered(audienceOperator, operatorID, s.operatorDuration, uuid.NewString()),
	}
	return s.sign(claims)
}

// ValidateOperatorToken validates an ops API token and returns the operator id
func (s *Service) ValidateOperatorToken(tokenString string) (string, error) {
	claims := &OperatorClaims{}
	if err := s.parse(tokenString, audienceOperator, claims); err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims.Subject, nil
}
