package bookings

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

func TestTransitionTableFollowsStatusGraph(t *testing.T) {
	for cmd, rule := range transitions {
		if len(rule.from) == 0 || len(rule.actors) == 0 {
			t.Fatalf("%s: empty rule", cmd)
		}
		for _, from := range rule.from {
			if !from.CanTransitionTo(rule.to) {
				t.Fatalf("%s: %s -> %s is not an edge of the status graph", cmd, from, rule.to)
			}
		}
	}
	for _, status := range enums.BookingStatuses() {
		if !status.IsTerminal() {
			continue
		}
		for cmd, rule := range transitions {
			if rule.allowsFrom(status) {
				t.Fatalf("%s must not leave terminal status %s", cmd, status)
			}
		}
	}
}

func TestResolveActor(t *testing.T) {
	booking := &models.Booking{OwnerID: uuid.New(), RenterID: uuid.New()}
	cases := []struct {
		actor uuid.UUID
		role  enums.ActorRole
		ok    bool
	}{
		{booking.OwnerID, enums.ActorRoleOwner, true},
		{booking.RenterID, enums.ActorRoleRenter, true},
		{SystemActorID, enums.ActorRoleSystem, true},
		{uuid.New(), "", false},
	}
	for _, tc := range cases {
		role, ok := resolveActor(booking, tc.actor)
		if role != tc.role || ok != tc.ok {
			t.Fatalf("resolveActor(%s) = %q,%v want %q,%v", tc.actor, role, ok, tc.role, tc.ok)
		}
	}
}

func TestDaysUntilUsesCalendarDatesInZone(t *testing.T) {
	start := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want int
	}{
		{"three days early", time.Date(2026, 5, 7, 23, 59, 0, 0, time.UTC), time.UTC, 3},
		{"same day", time.Date(2026, 5, 10, 0, 0, 1, 0, time.UTC), time.UTC, 0},
		{"after start", time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC), time.UTC, -2},
		// 22:00 UTC on the 9th is already the 10th at UTC+3.
		{"zone ahead of utc", time.Date(2026, 5, 9, 22, 0, 0, 0, time.UTC), time.FixedZone("UTC+3", 3*3600), 0},
		// 01:00 UTC on the 10th is still the 9th at UTC-5.
		{"zone behind utc", time.Date(2026, 5, 10, 1, 0, 0, 0, time.UTC), time.FixedZone("UTC-5", -5*3600), 1},
	}
	for _, tc := range cases {
		if got := daysUntil(start, tc.now, tc.loc); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}
