package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"venuepass/internal/domain"
)

// LatestActivity returns journal rows newest first, optionally filtered by
// entity and paged with an id cursor.
func (r Repo) LatestActivity(ctx context.Context, limit int, cursor int64, entityKind, entityID string) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,payload_json FROM activity WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var entityID sql.NullString
		if err := rows.Scan(&a.ID, &a.TS, &a.Type, &a.EntityKind, &entityID, &a.Payload); err != nil {
			return nil, err
		}
		a.EntityID = entityID.String
		res = append(res, a)
	}
	return res, rows.Err()
}
