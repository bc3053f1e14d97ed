// Package session issues and verifies the signed session tokens carried in the
// session cookie or an Authorization bearer header.
package session

import (
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const CookieName = "session"

var ErrInvalidToken = errors.New("invalid session token")

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func Issue(actor types.Actor, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Email: actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "token.SignedString failed: ")
	}
	return signed, nil
}

func Parse(tokenString string, secret []byte) (*types.Actor, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return actorFrom(claims.Subject, claims.Email)
}

// FromToken reads the actor from a token already verified by the jwt middleware.
func FromToken(token *jwt.Token) (*types.Actor, error) {
	if token == nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	return actorFrom(sub, email)
}

func actorFrom(sub, email string) (*types.Actor, error) {
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, "bad subject")
	}
	return &types.Actor{ID: id, Email: email}, nil
}
