package services

import (
	"testing"
	"time"

	"theracare_go/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateSlotsWalksWindow(t *testing.T) {
	// Monday 2026-01-05, one day, 09:00-11:00, 30-minute slots, 15-minute gap.
	slots, err := GenerateSlots(1, SlotGenerationRequest{
		StartDate:    date(2026, time.January, 5),
		EndDate:      date(2026, time.January, 5),
		Weekdays:     []models.DayOfWeek{models.Monday},
		StartTime:    "09:00",
		EndTime:      "11:00",
		SlotDuration: 30,
		Gap:          15,
		Fees:         SlotFees{AudioFee: 40},
	})
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}

	// 09:00, 09:45, 10:30 fit; 11:15 would pass the window end.
	wantStarts := []string{"09:00", "09:45", "10:30"}
	if len(slots) != len(wantStarts) {
		t.Fatalf("got %d slots, want %d", len(slots), len(wantStarts))
	}
	for i, slot := range slots {
		if slot.StartTime != wantStarts[i] {
			t.Errorf("slot %d start = %s, want %s", i, slot.StartTime, wantStarts[i])
		}
		start, _ := ParseClock(slot.StartTime)
		end, _ := ParseClock(slot.EndTime)
		if end-start != 30 {
			t.Errorf("slot %d length = %d minutes, want 30", i, end-start)
		}
		if slot.DayOfWeek != models.Monday {
			t.Errorf("slot %d weekday = %s, want Monday", i, slot.DayOfWeek)
		}
		if slot.Date == nil {
			t.Fatalf("slot %d missing date", i)
		}
		if slot.AudioFee != 40 {
			t.Errorf("slot %d audio fee = %v, want 40", i, slot.AudioFee)
		}
	}

	// Consecutive slots are spaced exactly duration+gap apart and never
	// overlap.
	for i := 1; i < len(slots); i++ {
		prev, _ := ParseClock(slots[i-1].StartTime)
		cur, _ := ParseClock(slots[i].StartTime)
		if cur-prev != 45 {
			t.Errorf("spacing between slot %d and %d = %d minutes, want 45", i-1, i, cur-prev)
		}
		prevEnd, _ := ParseClock(slots[i-1].EndTime)
		if cur < prevEnd {
			t.Errorf("slot %d overlaps slot %d", i, i-1)
		}
	}
}

func TestGenerateSlotsFiltersWeekdays(t *testing.T) {
	// 2026-01-05 (Mon) through 2026-01-11 (Sun), Mondays and Wednesdays only.
	slots, err := GenerateSlots(1, SlotGenerationRequest{
		StartDate:    date(2026, time.January, 5),
		EndDate:      date(2026, time.January, 11),
		Weekdays:     []models.DayOfWeek{models.Monday, models.Wednesday},
		StartTime:    "09:00",
		EndTime:      "10:00",
		SlotDuration: 60,
	})
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	if slots[0].DayOfWeek != models.Monday || slots[1].DayOfWeek != models.Wednesday {
		t.Errorf("weekdays = %s, %s; want Monday, Wednesday", slots[0].DayOfWeek, slots[1].DayOfWeek)
	}
	if got := slots[0].Date.Format("2006-01-02"); got != "2026-01-05" {
		t.Errorf("first slot date = %s, want 2026-01-05", got)
	}
	if got := slots[1].Date.Format("2006-01-02"); got != "2026-01-07" {
		t.Errorf("second slot date = %s, want 2026-01-07", got)
	}
}

func TestGenerateSlotsRejectsBadInput(t *testing.T) {
	base := SlotGenerationRequest{
		StartDate:    date(2026, time.January, 5),
		EndDate:      date(2026, time.January, 5),
		Weekdays:     []models.DayOfWeek{models.Monday},
		StartTime:    "09:00",
		EndTime:      "11:00",
		SlotDuration: 30,
	}

	cases := []struct {
		name   string
		mutate func(*SlotGenerationRequest)
	}{
		{"zero duration", func(r *SlotGenerationRequest) { r.SlotDuration = 0 }},
		{"negative gap", func(r *SlotGenerationRequest) { r.Gap = -5 }},
		{"start after end date", func(r *SlotGenerationRequest) { r.StartDate = date(2026, time.January, 6) }},
		{"malformed start time", func(r *SlotGenerationRequest) { r.StartTime = "9am" }},
		{"malformed end time", func(r *SlotGenerationRequest) { r.EndTime = "25:00" }},
		{"inverted window", func(r *SlotGenerationRequest) { r.StartTime = "11:00"; r.EndTime = "09:00" }},
		{"unknown weekday", func(r *SlotGenerationRequest) { r.Weekdays = []models.DayOfWeek{"Funday"} }},
		// Window too small for a single slot on a matching day.
		{"no slots generatable", func(r *SlotGenerationRequest) { r.EndTime = "09:15" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			if _, err := GenerateSlots(1, req); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestParseClockRoundTrip(t *testing.T) {
	minutes, err := ParseClock("13:45")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if minutes != 13*60+45 {
		t.Errorf("minutes = %d, want %d", minutes, 13*60+45)
	}
	if got := FormatClock(minutes); got != "13:45" {
		t.Errorf("FormatClock = %s, want 13:45", got)
	}
}
