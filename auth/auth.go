package auth

import (
	"context"
	"errors"
	"fmt"

	"ewintr.nl/tutorai/model"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (model.User, error)
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTProvider accepts HS256 tokens signed with a shared secret, as issued by
// Supabase and similar hosted auth services. The subject is the user id.
type JWTProvider struct {
	secret []byte
	issuer string
}

func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (p *JWTProvider) Authenticate(_ context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return model.User{}, ErrInvalidToken
	}

	return model.User{ID: claims.Subject, Email: claims.Email}, nil
}

// Sign creates a token for user that the provider accepts. It is used for
// local development and tests.
func (p *JWTProvider) Sign(user model.User, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = user.ID
	if claims.Issuer == "" {
		claims.Issuer = p.issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: user.Email, RegisteredClaims: claims})
	return token.SignedString(p.secret)
}
