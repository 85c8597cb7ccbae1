package server

import (
	"encoding/json"

	"venuepass/internal/domain"
	"venuepass/internal/eventpage"
)

// Outputs carry Status so business failures keep the envelope body.

type eventOutput struct {
	Status int
	Body   domain.EventResponse
}

type eventListOutput struct {
	Body domain.EventListResponse
}

type verifyPhoneOutput struct {
	Status int
	Body   domain.VerifyPhoneResponse
}

type registerOutput struct {
	Status int
	Body   domain.RegisterResponse
}

type ActivityResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type paginatedActivity struct {
	Items      []ActivityResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func activityResponse(a domain.Activity) ActivityResponse {
	resp := ActivityResponse{
		ID:         a.ID,
		TS:         a.TS,
		Type:       a.Type,
		EntityKind: a.EntityKind,
		EntityID:   a.EntityID,
	}
	if a.Payload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(a.Payload), &payload); err == nil {
			resp.Payload = payload
		}
	}
	return resp
}

func bucketsToWire(b eventpage.Buckets) domain.EventBuckets {
	return domain.EventBuckets{
		Upcoming: eventsToWire(b.Upcoming),
		Ongoing:  eventsToWire(b.Ongoing),
		Past:     eventsToWire(b.Past),
	}
}

func eventsToWire(events []domain.Event) []domain.EventData {
	out := make([]domain.EventData, 0, len(events))
	for _, ev := range events {
		out = append(out, domain.EventToWire(ev))
	}
	return out
}
