package eventpage

import (
	"context"
	"time"

	"venuepass/internal/domain"
	"venuepass/internal/status"
)

// Tick is one countdown evaluation.
type Tick struct {
	At        time.Time     `json:"at"`
	Status    status.Status `json:"status"`
	Countdown string        `json:"countdown"`
}

func evaluate(now time.Time, ev *domain.Event) Tick {
	return Tick{
		At:        now,
		Status:    status.Resolve(now, ev),
		Countdown: status.Countdown(now, ev.RegistrationEnd),
	}
}

func runCountdown(ctx context.Context, interval time.Duration, now func() time.Time, ev *domain.Event, fn func(Tick)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	fn(evaluate(now(), ev))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fn(evaluate(now(), ev))
		}
	}
}
