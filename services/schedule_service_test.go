package services

import (
	"errors"
	"testing"
	"time"

	"theracare_go/models"
)

func TestCreateSlotRejectsDuplicate(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "dup@test.local")
	svc := NewScheduleService(db)

	in := SlotInput{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:00", AudioFee: 40}
	if _, err := svc.CreateSlot(therapist.ID, in); err != nil {
		t.Fatalf("first CreateSlot: %v", err)
	}
	_, err := svc.CreateSlot(therapist.ID, in)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate CreateSlot err = %v, want ErrConflict", err)
	}

	var count int64
	db.Model(&models.ScheduleSlot{}).Count(&count)
	if count != 1 {
		t.Errorf("slot count = %d, want 1", count)
	}
}

func TestCreateSlotUnknownTherapist(t *testing.T) {
	db := newTestDB(t)
	svc := NewScheduleService(db)

	_, err := svc.CreateSlot(999, SlotInput{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:00"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateSlotsBulkSkipsCollisions(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "bulk@test.local")
	svc := NewScheduleService(db)

	seedSlot(t, db, therapist.ID, models.Monday, "09:00", "10:00")

	created, err := svc.CreateSlotsBulk(therapist.ID, []SlotInput{
		{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:00"}, // collides
		{DayOfWeek: models.Monday, StartTime: "10:00", EndTime: "11:00"},
		{DayOfWeek: models.Tuesday, StartTime: "09:00", EndTime: "10:00"},
	})
	if err != nil {
		t.Fatalf("CreateSlotsBulk: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d slots, want 2", len(created))
	}
}

func TestCreateSlotsBulkAllDuplicates(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "alldup@test.local")
	svc := NewScheduleService(db)

	seedSlot(t, db, therapist.ID, models.Monday, "09:00", "10:00")

	_, err := svc.CreateSlotsBulk(therapist.ID, []SlotInput{
		{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:00"},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestGenerateRangeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "range@test.local")
	svc := NewScheduleService(db)

	req := SlotGenerationRequest{
		StartDate:    date(2026, time.January, 5),
		EndDate:      date(2026, time.January, 9),
		Weekdays:     []models.DayOfWeek{models.Monday, models.Friday},
		StartTime:    "09:00",
		EndTime:      "11:00",
		SlotDuration: 60,
	}

	first, err := svc.GenerateRange(therapist.ID, req)
	if err != nil {
		t.Fatalf("first GenerateRange: %v", err)
	}
	if len(first) != 4 { // 2 days x 2 slots
		t.Fatalf("first run created %d slots, want 4", len(first))
	}

	// The same range generates zero new rows the second time.
	_, err = svc.GenerateRange(therapist.ID, req)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second GenerateRange err = %v, want ErrConflict", err)
	}

	var count int64
	db.Model(&models.ScheduleSlot{}).Count(&count)
	if count != 4 {
		t.Errorf("slot count after rerun = %d, want 4", count)
	}
}

func TestUpdateSlotValidatesWindow(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "update@test.local")
	svc := NewScheduleService(db)
	slot := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "10:00")

	badEnd := "08:00"
	if _, err := svc.UpdateSlot(slot.ID, SlotUpdate{EndTime: &badEnd}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}

	newEnd := "11:30"
	fee := 70.0
	updated, err := svc.UpdateSlot(slot.ID, SlotUpdate{EndTime: &newEnd, VideoFee: &fee})
	if err != nil {
		t.Fatalf("UpdateSlot: %v", err)
	}
	if updated.EndTime != "11:30" || updated.VideoFee != 70 {
		t.Errorf("updated slot = %s/%v, want 11:30/70", updated.EndTime, updated.VideoFee)
	}
}

func TestUpdateSlotStatus(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "status@test.local")
	svc := NewScheduleService(db)
	slot := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "10:00")

	updated, err := svc.UpdateSlotStatus(slot.ID, models.SlotSelected)
	if err != nil {
		t.Fatalf("UpdateSlotStatus: %v", err)
	}
	if updated.Status != models.SlotSelected {
		t.Errorf("status = %s, want Selected", updated.Status)
	}

	if _, err := svc.UpdateSlotStatus(slot.ID, "Frozen"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestDeleteSlot(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "delete@test.local")
	svc := NewScheduleService(db)
	slot := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "10:00")

	if err := svc.DeleteSlot(slot.ID); err != nil {
		t.Fatalf("DeleteSlot: %v", err)
	}
	if err := svc.DeleteSlot(slot.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteSlot err = %v, want ErrNotFound", err)
	}
}

func TestListSlotsFilters(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "list@test.local")
	other := seedTherapist(t, db, "list-other@test.local")
	svc := NewScheduleService(db)

	seedSlot(t, db, therapist.ID, models.Monday, "09:00", "10:00")
	booked := seedSlot(t, db, therapist.ID, models.Tuesday, "09:00", "10:00")
	db.Model(&booked).Update("status", models.SlotBooked)
	seedSlot(t, db, other.ID, models.Monday, "09:00", "10:00")

	slots, total, err := svc.ListSlots(SlotFilter{TherapistID: therapist.ID, Status: models.SlotAvailable})
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	if total != 1 || len(slots) != 1 {
		t.Fatalf("got %d slots (total %d), want 1", len(slots), total)
	}
	if slots[0].DayOfWeek != models.Monday {
		t.Errorf("slot weekday = %s, want Monday", slots[0].DayOfWeek)
	}
}
