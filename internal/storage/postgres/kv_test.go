package postgres

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-kart/internal/kv"
)

func setupStore(t *testing.T, opts ...Option) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock, opts...), mock
}

func TestStore_Get(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery("SELECT value FROM kv_entries WHERE key").
		WithArgs("cart").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"version":1}`)))

	got, ok, err := s.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"version":1}`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetMissing(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery("SELECT value FROM kv_entries WHERE key").
		WithArgs("cart").
		WillReturnError(pgx.ErrNoRows)

	got, ok, err := s.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetUnavailable(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery("SELECT value FROM kv_entries WHERE key").
		WithArgs("cart").
		WillReturnError(errors.New("connection refused"))

	_, _, err := s.Get(context.Background(), "cart")
	require.ErrorIs(t, err, kv.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectExec("INSERT INTO kv_entries").
		WithArgs("cart", []byte("v")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), "cart", []byte("v")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutClassifiesErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want error
	}{
		{"disk full", &pgconn.PgError{Code: codeDiskFull}, kv.ErrStorageFull},
		{"out of memory", &pgconn.PgError{Code: codeOutOfMemory}, kv.ErrStorageFull},
		{"program limit", &pgconn.PgError{Code: codeProgramLimitExceeded}, kv.ErrStorageFull},
		{"unique violation", &pgconn.PgError{Code: "23505"}, kv.ErrStorageUnavailable},
		{"network", errors.New("broken pipe"), kv.ErrStorageUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupStore(t)

			mock.ExpectExec("INSERT INTO kv_entries").
				WithArgs("cart", []byte("v")).
				WillReturnError(tt.err)

			err := s.Put(context.Background(), "cart", []byte("v"))
			require.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_PutQuota(t *testing.T) {
	s, mock := setupStore(t, WithQuota(10))

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("cart").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(4)))
	mock.ExpectExec("INSERT INTO kv_entries").
		WithArgs("cart", []byte("123456")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), "cart", []byte("123456")))

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("cart").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(5)))

	err := s.Put(context.Background(), "cart", []byte("123456"))
	require.ErrorIs(t, err, kv.ErrStorageFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.ErrorIs(t, s.Ping(context.Background()), kv.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv_entries").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, RunMigrations(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
