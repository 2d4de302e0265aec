package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
)

func TestUserRepo_GetOrCreateByEmail_Existing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, email, provider, created_at FROM users WHERE email=\$1`).
		WithArgs("a@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "provider", "created_at"}).
			AddRow(id, "a@example.com", "google", now))

	u, err := r.GetOrCreateByEmail(ctx, "a@example.com", "google")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetOrCreateByEmail_CreatesOnFirstSight(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, email, provider, created_at FROM users WHERE email=\$1`).
		WithArgs("new@example.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO users \(id, email, provider\)`).
		WithArgs(pgxmock.AnyArg(), "new@example.com", "github").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "provider", "created_at"}).
			AddRow(id, "new@example.com", "github", now))

	u, err := r.GetOrCreateByEmail(ctx, "new@example.com", "github")
	require.NoError(t, err)
	require.Equal(t, "github", u.Provider)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`SELECT id, email, provider, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetByID(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_PassesThroughDBErrors(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	dbErr := errors.New("connection reset")
	mock.ExpectQuery(`SELECT id, email, provider, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(dbErr)

	_, err := r.GetByID(context.Background(), id)
	require.ErrorIs(t, err, dbErr)
	require.NotErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_Found(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	now := time.Now()
	mock.ExpectQuery(`SELECT id, email, provider, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "provider", "created_at"}).
			AddRow(id, "a@example.com", "google", now))

	u, err := r.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", u.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}
