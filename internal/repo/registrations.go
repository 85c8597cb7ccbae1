package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"venuepass/internal/domain"
)

// ErrDuplicate reports a second registration of the same phone for an event.
var ErrDuplicate = errors.New("duplicate registration")

func (r Repo) InsertRegistrationTx(ctx context.Context, tx *sql.Tx, reg domain.Registration) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO registrations(id,event_id,phone,created_at) VALUES (?,?,?,?)`,
		reg.ID, reg.EventID, reg.Phone, reg.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

func (r Repo) HasRegistrationTx(ctx context.Context, tx *sql.Tx, eventID, phone string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id=? AND phone=?`, eventID, phone).Scan(&n)
	return n > 0, err
}

func (r Repo) ListRegistrations(ctx context.Context, eventID string) ([]domain.Registration, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,event_id,phone,created_at FROM registrations WHERE event_id=? ORDER BY created_at ASC, id ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.Phone, &reg.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, reg)
	}
	return res, rows.Err()
}
