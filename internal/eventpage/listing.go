package eventpage

import (
	"time"

	"venuepass/internal/domain"
)

// PerPage is how many cards each listing section shows per "load more".
const PerPage = 6

type Buckets struct {
	Upcoming []domain.Event `json:"upcoming"`
	Ongoing  []domain.Event `json:"ongoing"`
	Past     []domain.Event `json:"past"`
}

// Categorize sorts events by their event window only; registration windows
// do not matter on the listing.
func Categorize(now time.Time, events []domain.Event) Buckets {
	var b Buckets
	for _, ev := range events {
		switch {
		case now.Before(ev.StartTime):
			b.Upcoming = append(b.Upcoming, ev)
		case !now.After(ev.EndTime):
			b.Ongoing = append(b.Ongoing, ev)
		default:
			b.Past = append(b.Past, ev)
		}
	}
	return b
}

// DecodeEvents converts every bucket of a listing response, dropping events
// whose timestamps cannot be read.
func DecodeEvents(b domain.EventBuckets) (events []domain.Event, skipped int) {
	for _, group := range [][]domain.EventData{b.Upcoming, b.Ongoing, b.Past} {
		for _, item := range group {
			ev, err := domain.EventFromWire(item)
			if err != nil {
				skipped++
				continue
			}
			events = append(events, ev)
		}
	}
	return events, skipped
}

// Paginate returns the first page*perPage items and whether more remain.
func Paginate[T any](items []T, page, perPage int) ([]T, bool) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = PerPage
	}
	if page > (len(items)-1)/perPage {
		return items, false
	}
	return items[:page*perPage], true
}
