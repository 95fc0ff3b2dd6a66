package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenGenerator issues access tokens for a user id.
type TokenGenerator interface {
	GenerateToken(userID uuid.UUID) (string, error)
}

// TokenVerifier returns the user id a valid token was issued for.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type JWTTokens struct {
	key     []byte
	issuer  string
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewJWTTokens(key, issuer string, ttl time.Duration) *JWTTokens {
	return &JWTTokens{
		key:     []byte(key),
		issuer:  issuer,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

func (j *JWTTokens) GenerateToken(userID uuid.UUID) (string, error) {
	now := j.nowFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    j.issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	})
	return token.SignedString(j.key)
}

func (j *JWTTokens) Verify(token string) (uuid.UUID, error) {
	t, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return j.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.nowFunc),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("cannot parse token: %w", err)
	}

	clm, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok || !t.Valid {
		return uuid.Nil, fmt.Errorf("token not valid")
	}

	id, err := uuid.Parse(clm.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}
	return id, nil
}
