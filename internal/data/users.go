package data

import (
	"context"
	"database/sql"
	"time"
)

// User is one end-user identity as seen by the service. Created on first
// contact, profile fields refreshed on every subsequent contact, never
// deleted by normal flow.
type User struct {
	TelegramID  int64
	DisplayName string
	Username    string
	AvatarURL   string
	Language    string
	Platform    string
	FirstLogin  time.Time
	LastLogin   time.Time
}

type UserModel struct {
	DB DBTX
}

// Upsert creates the user on first contact or refreshes profile fields and
// last_login on a repeat visit.
func (m UserModel) Upsert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (telegram_id, display_name, username, avatar_url, language, platform, first_login, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (telegram_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			username     = EXCLUDED.username,
			avatar_url   = EXCLUDED.avatar_url,
			language     = EXCLUDED.language,
			last_login   = NOW()
		RETURNING first_login, last_login
	`
	return m.DB.QueryRowContext(ctx, query,
		u.TelegramID, u.DisplayName, u.Username, u.AvatarURL, u.Language, u.Platform,
	).Scan(&u.FirstLogin, &u.LastLogin)
}

// GetByID retrieves one user record.
func (m UserModel) GetByID(ctx context.Context, telegramID int64) (*User, error) {
	query := `
		SELECT telegram_id, display_name, username, avatar_url, language, platform, first_login, last_login
		FROM users
		WHERE telegram_id = $1
	`
	var u User
	err := m.DB.QueryRowContext(ctx, query, telegramID).Scan(
		&u.TelegramID, &u.DisplayName, &u.Username, &u.AvatarURL, &u.Language, &u.Platform, &u.FirstLogin, &u.LastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns users ordered by most recent contact, for the admin dashboard.
func (m UserModel) List(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `
		SELECT telegram_id, display_name, username, avatar_url, language, platform, first_login, last_login
		FROM users
		ORDER BY last_login DESC
		LIMIT $1
	`
	rows, err := m.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.TelegramID, &u.DisplayName, &u.Username, &u.AvatarURL, &u.Language, &u.Platform, &u.FirstLogin, &u.LastLogin,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count returns the total number of users ever seen.
func (m UserModel) Count(ctx context.Context) (int, error) {
	var n int
	err := m.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
