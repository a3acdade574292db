package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/temple-erp/temple-pos/internal/shared"
)

// Service verifies bearer tokens and resolves the acting user.
type Service struct {
	repo   Repository
	secret []byte
	issuer string
	now    func() time.Time
}

// NewService constructs a new Service. A nil repo trusts the token claims
// without checking the users table.
func NewService(repo Repository, secret, issuer string) *Service {
	return &Service{repo: repo, secret: []byte(secret), issuer: issuer, now: time.Now}
}

// WithNow overrides the clock used to validate expiry.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Verify parses an HS256 token and returns the actor it names.
func (s *Service) Verify(ctx context.Context, token string) (shared.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return shared.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return shared.Actor{}, fmt.Errorf("%w: subject %q", ErrInvalidToken, claims.Subject)
	}
	actor := shared.Actor{ID: id, Name: claims.Name}
	if s.repo == nil {
		return actor, nil
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Actor{}, fmt.Errorf("%w: unknown user %d", ErrInvalidToken, id)
		}
		return shared.Actor{}, err
	}
	if !user.IsActive {
		return shared.Actor{}, ErrInactiveUser
	}
	actor.Name = user.Name
	return actor, nil
}

// Sign issues a token for user valid for ttl. It backs local tooling; the
// POS login flow issues its own tokens.
func (s *Service) Sign(user User, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
