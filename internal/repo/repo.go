package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"venuepass/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Available spots are derived from the registration count, never stored.
const eventColumns = `e.id,e.name,e.description,e.start_time,e.end_time,e.registration_start,e.registration_end,e.capacity,e.images_json,
(SELECT COUNT(*) FROM registrations r WHERE r.event_id=e.id) AS registered`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.Event, error) {
	var (
		ev                                 domain.Event
		start, end, regStart, regEnd, imgs string
		registered                         int
	)
	err := row.Scan(&ev.ID, &ev.Name, &ev.Description, &start, &end, &regStart, &regEnd, &ev.Capacity, &imgs, &registered)
	if errors.Is(err, sql.ErrNoRows) {
		return ev, ErrNotFound
	}
	if err != nil {
		return ev, err
	}
	if ev.StartTime, err = domain.ParseInstant(start); err != nil {
		return ev, fmt.Errorf("event %s start_time: %w", ev.ID, err)
	}
	if ev.EndTime, err = domain.ParseInstant(end); err != nil {
		return ev, fmt.Errorf("event %s end_time: %w", ev.ID, err)
	}
	if ev.RegistrationStart, err = domain.ParseInstant(regStart); err != nil {
		return ev, fmt.Errorf("event %s registration_start: %w", ev.ID, err)
	}
	if ev.RegistrationEnd, err = domain.ParseInstant(regEnd); err != nil {
		return ev, fmt.Errorf("event %s registration_end: %w", ev.ID, err)
	}
	if err := json.Unmarshal([]byte(imgs), &ev.Images); err != nil {
		return ev, fmt.Errorf("event %s images: %w", ev.ID, err)
	}
	ev.AvailableSpots = ev.Capacity - registered
	if ev.AvailableSpots < 0 {
		ev.AvailableSpots = 0
	}
	return ev, nil
}

// UpsertEventTx inserts an event or replaces its mutable fields.
func (r Repo) UpsertEventTx(ctx context.Context, tx *sql.Tx, ev domain.Event, createdAt string) error {
	images := ev.Images
	if images == nil {
		images = []string{}
	}
	imgs, err := json.Marshal(images)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(id,name,description,start_time,end_time,registration_start,registration_end,capacity,images_json,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description, start_time=excluded.start_time,
end_time=excluded.end_time, registration_start=excluded.registration_start, registration_end=excluded.registration_end,
capacity=excluded.capacity, images_json=excluded.images_json`,
		ev.ID, ev.Name, ev.Description,
		domain.FormatInstant(ev.StartTime), domain.FormatInstant(ev.EndTime),
		domain.FormatInstant(ev.RegistrationStart), domain.FormatInstant(ev.RegistrationEnd),
		ev.Capacity, string(imgs), createdAt)
	return err
}

func (r Repo) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	return getEvent(ctx, r.DB, id)
}

func (r Repo) GetEventTx(ctx context.Context, tx *sql.Tx, id string) (domain.Event, error) {
	return getEvent(ctx, tx, id)
}

func getEvent(ctx context.Context, q querier, id string) (domain.Event, error) {
	return scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id=?`, id))
}

// ListEvents returns every event ordered by start time.
func (r Repo) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM events e ORDER BY e.start_time ASC, e.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
