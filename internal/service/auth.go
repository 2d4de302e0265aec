package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
	"github.com/Anshumanformal/Tab-SyncAR/internal/repository"
)

// AuthService issues bearer tokens for resolved identities and verifies
// tokens presented on requests and at connect time. The identity provider
// exchange itself happens upstream; this service only sees its outcome.
type AuthService interface {
	// TokenForEmail resolves (or creates) the account for email and issues
	// an access token for it.
	TokenForEmail(ctx context.Context, email, provider string) (model.Tokens, *model.User, error)
	// Verify decodes a bearer token to the user id it was issued for.
	// Expired, malformed or badly signed tokens map to errs.ErrUnauthorized.
	Verify(token string) (uuid.UUID, error)
	// User returns the account a verified token resolved to.
	User(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL}
}

// TokenForEmail is the post-OAuth handoff: the provider flow proved the
// email, here it becomes an account plus a signed token.
func (s *AuthServiceImpl) TokenForEmail(ctx context.Context, email, provider string) (model.Tokens, *model.User, error) {
	if email == "" {
		return model.Tokens{}, nil, errors.New("validation: empty email")
	}
	u, err := s.users.GetOrCreateByEmail(ctx, email, provider)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// User looks up the account behind an authenticated user id.
func (s *AuthServiceImpl) User(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if id == uuid.Nil {
		return nil, errors.New("validation: empty user id")
	}
	return s.users.GetByID(ctx, id)
}

// Verify parses and validates the token, returning its subject.
func (s *AuthServiceImpl) Verify(token string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errs.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}
