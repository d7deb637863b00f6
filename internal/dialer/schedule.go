package dialer

import (
	"time"

	"github.com/acme/campaign-dialer/internal/domain"
)

// isOpen reports whether now falls inside one of the campaign's calling
// windows. An empty schedule set means the campaign is always callable.
// Each window is evaluated in its own timezone; both bounds are inclusive.
func isOpen(campaign *domain.Campaign, now time.Time) bool {
	if len(campaign.Schedules) == 0 {
		return true
	}

	for _, window := range campaign.Schedules {
		if !window.Enabled {
			continue
		}

		local := now.In(windowLocation(window))
		if local.Weekday() != window.DayOfWeek {
			continue
		}

		minuteOfDay := local.Hour()*60 + local.Minute()
		if minuteOfDay >= window.StartMinute && minuteOfDay <= window.EndMinute {
			return true
		}
	}

	return false
}

func windowLocation(window domain.ScheduleWindow) *time.Location {
	if window.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(window.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
