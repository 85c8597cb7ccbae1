package repo

import (
	"context"
	"database/sql"
	"errors"

	"venuepass/internal/domain"
)

func (r Repo) GetUser(ctx context.Context, phone string) (domain.User, error) {
	return getUser(ctx, r.DB, phone)
}

func (r Repo) GetUserTx(ctx context.Context, tx *sql.Tx, phone string) (domain.User, error) {
	return getUser(ctx, tx, phone)
}

func getUser(ctx context.Context, q querier, phone string) (domain.User, error) {
	var u domain.User
	err := q.QueryRowContext(ctx, `SELECT phone,name,email,created_at FROM users WHERE phone=?`, phone).
		Scan(&u.Phone, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// UpsertUserTx stores a user, replacing name and email when the phone exists.
func (r Repo) UpsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(phone,name,email,created_at) VALUES (?,?,?,?)
ON CONFLICT(phone) DO UPDATE SET name=excluded.name, email=excluded.email`, u.Phone, u.Name, u.Email, u.CreatedAt)
	return err
}
