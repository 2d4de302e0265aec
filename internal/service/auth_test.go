package service

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
	"github.com/Anshumanformal/Tab-SyncAR/internal/repository"
)

type fakeUserRepo struct {
	user *model.User
	err  error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) GetOrCreateByEmail(_ context.Context, email, provider string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.user == nil {
		f.user = &model.User{ID: uuid.Must(uuid.NewV4()), Email: email, Provider: provider, CreatedAt: time.Now()}
	}
	return f.user, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, _ uuid.UUID) (*model.User, error) {
	if f.user == nil {
		return nil, errs.ErrNotFound
	}
	return f.user, nil
}

func TestAuthService_TokenRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewAuthService(&fakeUserRepo{}, []byte("test-key"), time.Hour)

	tokens, u, err := s.TokenForEmail(context.Background(), "a@example.com", "google")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.WithinDuration(t, time.Now().Add(time.Hour), tokens.ExpiresAt, time.Minute)

	got, err := s.Verify(tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, got)
}

func TestAuthService_TokenForEmail_IsStablePerEmail(t *testing.T) {
	t.Parallel()

	s := NewAuthService(&fakeUserRepo{}, []byte("test-key"), time.Hour)

	_, first, err := s.TokenForEmail(context.Background(), "a@example.com", "google")
	require.NoError(t, err)
	_, second, err := s.TokenForEmail(context.Background(), "a@example.com", "google")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	_, _, err = s.TokenForEmail(context.Background(), "", "google")
	require.Error(t, err)
}

func TestAuthService_User(t *testing.T) {
	t.Parallel()

	repo := &fakeUserRepo{}
	s := NewAuthService(repo, []byte("test-key"), time.Hour)

	_, u, err := s.TokenForEmail(context.Background(), "a@example.com", "google")
	require.NoError(t, err)

	got, err := s.User(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "a@example.com", got.Email)

	_, err = s.User(context.Background(), uuid.Nil)
	require.Error(t, err)

	_, err = NewAuthService(&fakeUserRepo{}, nil, time.Hour).User(context.Background(), u.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAuthService_Verify_Rejections(t *testing.T) {
	t.Parallel()

	s := NewAuthService(&fakeUserRepo{}, []byte("test-key"), time.Hour)

	_, err := s.Verify("garbage.token.here")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// Expired token.
	expiredSvc := NewAuthService(&fakeUserRepo{}, []byte("test-key"), -time.Minute)
	tokens, _, err := expiredSvc.TokenForEmail(context.Background(), "a@example.com", "google")
	require.NoError(t, err)
	_, err = s.Verify(tokens.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// Wrong signing key.
	otherSvc := NewAuthService(&fakeUserRepo{}, []byte("other-key"), time.Hour)
	tokens, _, err = otherSvc.TokenForEmail(context.Background(), "a@example.com", "google")
	require.NoError(t, err)
	_, err = s.Verify(tokens.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}
