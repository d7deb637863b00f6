package dialer

import (
	"testing"
	"time"

	"github.com/acme/campaign-dialer/internal/domain"
)

func mondayWindow(start, end int) domain.ScheduleWindow {
	return domain.ScheduleWindow{
		DayOfWeek:   time.Monday,
		StartMinute: start,
		EndMinute:   end,
		Timezone:    "UTC",
		Enabled:     true,
	}
}

func TestIsOpen(t *testing.T) {
	campaign := &domain.Campaign{
		Schedules: []domain.ScheduleWindow{mondayWindow(9*60, 17*60)},
	}

	mondayNoon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !isOpen(campaign, mondayNoon) {
		t.Fatalf("expected %v to be inside the window", mondayNoon)
	}

	mondayNight := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	if isOpen(campaign, mondayNight) {
		t.Fatalf("expected %v to be outside the window", mondayNight)
	}

	tuesdayNoon := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	if isOpen(campaign, tuesdayNoon) {
		t.Fatalf("expected %v to be outside the window (wrong day)", tuesdayNoon)
	}
}

func TestIsOpenBoundsInclusive(t *testing.T) {
	campaign := &domain.Campaign{
		Schedules: []domain.ScheduleWindow{mondayWindow(9*60, 17*60)},
	}

	atStart := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	if !isOpen(campaign, atStart) {
		t.Fatalf("expected start bound to be inclusive")
	}

	atEnd := time.Date(2024, 1, 1, 17, 0, 59, 0, time.UTC)
	if !isOpen(campaign, atEnd) {
		t.Fatalf("expected end bound to be inclusive")
	}

	justAfter := time.Date(2024, 1, 1, 17, 1, 0, 0, time.UTC)
	if isOpen(campaign, justAfter) {
		t.Fatalf("expected %v to be outside the window", justAfter)
	}
}

func TestIsOpenNoSchedules(t *testing.T) {
	campaign := &domain.Campaign{}
	anyTime := time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC)
	if !isOpen(campaign, anyTime) {
		t.Fatalf("expected campaign without schedules to always be open")
	}
}

func TestIsOpenDisabledWindow(t *testing.T) {
	window := mondayWindow(9*60, 17*60)
	window.Enabled = false
	campaign := &domain.Campaign{Schedules: []domain.ScheduleWindow{window}}

	mondayNoon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if isOpen(campaign, mondayNoon) {
		t.Fatalf("expected disabled window to be ignored")
	}
}

func TestIsOpenWindowTimezone(t *testing.T) {
	window := domain.ScheduleWindow{
		DayOfWeek:   time.Monday,
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		Timezone:    "America/New_York",
		Enabled:     true,
	}
	campaign := &domain.Campaign{Schedules: []domain.ScheduleWindow{window}}

	// 14:00 UTC on Monday is 09:00 in New York (EST).
	openUTC := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	if !isOpen(campaign, openUTC) {
		t.Fatalf("expected %v to fall inside the New York window", openUTC)
	}

	// 12:00 UTC on Monday is 07:00 in New York.
	closedUTC := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if isOpen(campaign, closedUTC) {
		t.Fatalf("expected %v to fall outside the New York window", closedUTC)
	}
}

func TestIsOpenUnknownTimezoneFallsBackToUTC(t *testing.T) {
	window := mondayWindow(9*60, 17*60)
	window.Timezone = "Not/AZone"
	campaign := &domain.Campaign{Schedules: []domain.ScheduleWindow{window}}

	mondayNoon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !isOpen(campaign, mondayNoon) {
		t.Fatalf("expected unknown timezone to be evaluated as UTC")
	}
}
