package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Repository = (*PostgresRepository)(nil)

const testID = "6f1c1d2e-4b7a-4c35-9d51-0b8f9c1f2a10"

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
	return NewPostgresRepository(db), mock, db
}

func userRows(rt any, version int64) *sqlmock.Rows {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "refresh_token_hash", "token_version", "role", "created_at", "updated_at"}).
		AddRow(testID, "alice@example.com", "Alice", "pwhash", rt, version, "user", ts, ts)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*name,\s*password_hash,\s*role\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,`
	mock.ExpectQuery(q).
		WithArgs("alice@example.com", "Alice", "pwhash", "user").
		WillReturnRows(userRows(nil, 0))

	got, err := repo.Create(context.Background(), "Alice@Example.com", "Alice", "pwhash")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	assert.Equal(t, testID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Nil(t, got.RefreshTokenHash)
	assert.Equal(t, int64(0), got.TokenVersion)
}

func TestCreate_Conflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), "a@b.c", "A", "h")
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "a@b.c", "A", "h")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+lower\(email\)\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("alice@example.com").WillReturnRows(userRows("rthash", 4))
	mock.ExpectQuery(q).WithArgs("bob@example.com").WillReturnError(sql.ErrNoRows)

	u, err := repo.FindByEmail(context.Background(), " ALICE@example.com")
	require.NoError(t, err)
	require.NotNil(t, u.RefreshTokenHash)
	assert.Equal(t, "rthash", *u.RefreshTokenHash)
	assert.Equal(t, int64(4), u.TokenVersion)

	_, err = repo.FindByEmail(context.Background(), "bob@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs(testID).WillReturnRows(userRows(nil, 0))

	u, err := repo.FindByID(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)

	// not a uuid: never reaches the database
	_, err = repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateRefreshTokenHash(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs(testID, "h1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(testID, nil).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(testID, nil).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs(testID, nil).WillReturnError(errors.New("db down"))

	h := "h1"
	require.NoError(t, repo.UpdateRefreshTokenHash(context.Background(), testID, &h))
	require.NoError(t, repo.UpdateRefreshTokenHash(context.Background(), testID, nil))
	assert.ErrorIs(t, repo.UpdateRefreshTokenHash(context.Background(), testID, nil), common.ErrorNotFound)
	assert.ErrorContains(t, repo.UpdateRefreshTokenHash(context.Background(), testID, nil), "db error")
}

func TestUpdatePasswordHash(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs(testID, "new-hash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(testID, "new-hash").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs(testID, "new-hash").WillReturnError(errors.New("db down"))

	require.NoError(t, repo.UpdatePasswordHash(context.Background(), testID, "new-hash"))
	assert.ErrorIs(t, repo.UpdatePasswordHash(context.Background(), testID, "new-hash"), common.ErrorNotFound)
	assert.ErrorContains(t, repo.UpdatePasswordHash(context.Background(), testID, "new-hash"), "db error")
}

func TestIncrementTokenVersion(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+token_version\s*=\s*token_version\s*\+\s*1,.*WHERE\s+id\s*=\s*\$1\s+RETURNING\s+token_version\s*$`
	mock.ExpectQuery(q).WithArgs(testID).WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(int64(3)))
	mock.ExpectQuery(q).WithArgs(testID).WillReturnError(sql.ErrNoRows)

	v, err := repo.IncrementTokenVersion(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = repo.IncrementTokenVersion(context.Background(), testID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSwapRefreshTokenHash(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\$3,.*WHERE\s+id\s*=\s*\$1\s+AND\s+refresh_token_hash\s*=\s*\$2\s*$`
	mock.ExpectExec(q).WithArgs(testID, "old", "new").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(testID, "old", "new").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SwapRefreshTokenHash(context.Background(), testID, "old", "new")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SwapRefreshTokenHash(context.Background(), testID, "old", "new")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeSessions(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+token_version\s*=\s*token_version\s*\+\s*1,\s*refresh_token_hash\s*=\s*NULL,.*WHERE\s+id\s*=\s*\$1\s+AND\s+refresh_token_hash\s*=\s*\$2\s*$`
	mock.ExpectExec(q).WithArgs(testID, "seen").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(testID, "seen").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs(testID, "seen").WillReturnResult(sqlmock.NewErrorResult(errors.New("no rows info")))

	ok, err := repo.RevokeSessions(context.Background(), testID, "seen")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RevokeSessions(context.Background(), testID, "seen")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.RevokeSessions(context.Background(), testID, "seen")
	assert.ErrorContains(t, err, "no rows info")
}

func TestInTx_CommitAndRollback(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	upd := `(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash`

	mock.ExpectBegin()
	mock.ExpectExec(upd).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(ctx context.Context, tx Repository) error {
		return tx.UpdateRefreshTokenHash(ctx, testID, nil)
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(upd).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.InTx(context.Background(), func(ctx context.Context, tx Repository) error {
		return tx.UpdateRefreshTokenHash(ctx, testID, nil)
	})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestInTx_NestedReusesHandle(t *testing.T) {
	_, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	inner := NewPostgresRepository(tx)
	called := false
	err = inner.InTx(context.Background(), func(ctx context.Context, r Repository) error {
		called = true
		assert.Same(t, inner, r)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	require.NoError(t, tx.Commit())
}
