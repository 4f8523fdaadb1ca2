package data

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockModel(t *testing.T) (UserModel, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return UserModel{DB: db}, mock
}

func TestUserModel_Upsert(t *testing.T) {
	m, mock := newMockModel(t)

	first := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	last := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(int64(42), "Neo", "neo", "https://cdn/avatar.png", "en", "android").
		WillReturnRows(sqlmock.NewRows([]string{"first_login", "last_login"}).AddRow(first, last))

	u := &User{
		TelegramID:  42,
		DisplayName: "Neo",
		Username:    "neo",
		AvatarURL:   "https://cdn/avatar.png",
		Language:    "en",
		Platform:    "android",
	}
	require.NoError(t, m.Upsert(context.Background(), u))
	assert.Equal(t, first, u.FirstLogin)
	assert.Equal(t, last, u.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserModel_GetByID(t *testing.T) {
	m, mock := newMockModel(t)

	cols := []string{"telegram_id", "display_name", "username", "avatar_url", "language", "platform", "first_login", "last_login"}
	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(42), "Neo", "neo", "", "en", "ios", now, now))

	u, err := m.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.TelegramID)
	assert.Equal(t, "Neo", u.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserModel_GetByID_NotFound(t *testing.T) {
	m, mock := newMockModel(t)

	cols := []string{"telegram_id", "display_name", "username", "avatar_url", "language", "platform", "first_login", "last_login"}
	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := m.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestUserModel_List(t *testing.T) {
	m, mock := newMockModel(t)

	cols := []string{"telegram_id", "display_name", "username", "avatar_url", "language", "platform", "first_login", "last_login"}
	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM users ORDER BY last_login DESC`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), "B", "b", "", "en", "web", now, now).
			AddRow(int64(1), "A", "a", "", "en", "web", now, now.Add(-time.Hour)))

	users, err := m.List(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(2), users[0].TelegramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserModel_List_DefaultLimit(t *testing.T) {
	m, mock := newMockModel(t)

	cols := []string{"telegram_id", "display_name", "username", "avatar_url", "language", "platform", "first_login", "last_login"}
	mock.ExpectQuery(`SELECT .+ FROM users ORDER BY last_login DESC`).
		WithArgs(200).
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := m.List(context.Background(), 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserModel_Count(t *testing.T) {
	m, mock := newMockModel(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := m.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
