// Package activity journals backend actions (phone checks, registrations)
// alongside the rows they touch.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypePhoneVerified      = "phone.verified"
	TypeUserCreated        = "user.created"
	TypeRegistrationAdded  = "registration.created"
	TypeRegistrationDenied = "registration.rejected"
	TypeEventSeeded        = "event.seeded"
)

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// Append writes one journal row inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, typ, entityKind, entityID string, payload Payload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activity(ts,type,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339Nano), typ, entityKind, nullable(entityID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
