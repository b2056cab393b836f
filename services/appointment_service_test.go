package services

import (
	"errors"
	"testing"
	"time"

	"theracare_go/models"
)

func TestCreateAppointmentBooksMatchingSlot(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "book@test.local")
	patient := seedIndividual(t, db, "book-patient@test.local")
	slot := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "09:30")
	untouched := seedSlot(t, db, therapist.ID, models.Monday, "10:00", "10:30")
	svc := NewAppointmentService(db)

	start := nextWeekday(time.Monday, 9, 0)
	appointment, slotLinked, err := svc.CreateAppointment(AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   patient.ID,
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		SessionType: models.SessionVideo,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if appointment.Status != models.AppointmentUpcoming {
		t.Errorf("status = %s, want Upcoming", appointment.Status)
	}
	if !slotLinked {
		t.Error("slotLinked = false, want true")
	}

	var reloaded models.ScheduleSlot
	db.First(&reloaded, slot.ID)
	if reloaded.Status != models.SlotBooked {
		t.Errorf("slot status = %s, want Booked", reloaded.Status)
	}
	var reloadedUntouched models.ScheduleSlot
	db.First(&reloadedUntouched, untouched.ID)
	if reloadedUntouched.Status != models.SlotAvailable {
		t.Errorf("non-matching slot status = %s, want Available", reloadedUntouched.Status)
	}
}

func TestCreateAppointmentRejectsBookedSlot(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "double@test.local")
	first := seedIndividual(t, db, "double-first@test.local")
	second := seedIndividual(t, db, "double-second@test.local")
	slot := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "09:30")
	svc := NewAppointmentService(db)

	start := nextWeekday(time.Monday, 9, 0)
	in := AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   first.ID,
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		SessionType: models.SessionAudio,
	}
	if _, slotLinked, err := svc.CreateAppointment(in); err != nil || !slotLinked {
		t.Fatalf("first booking: linked=%v err=%v", slotLinked, err)
	}

	// The slot is Booked now; a second booking for the same window loses.
	in.PatientID = second.ID
	if _, _, err := svc.CreateAppointment(in); !errors.Is(err, ErrConflict) {
		t.Errorf("second booking err = %v, want ErrConflict", err)
	}

	var count int64
	db.Model(&models.Appointment{}).
		Where("therapist_id = ? AND start_time = ? AND status = ?",
			therapist.ID, start.UTC(), models.AppointmentUpcoming).
		Count(&count)
	if count != 1 {
		t.Errorf("upcoming appointments on the slot = %d, want 1", count)
	}
	var reloaded models.ScheduleSlot
	db.First(&reloaded, slot.ID)
	if reloaded.Status != models.SlotBooked {
		t.Errorf("slot status = %s, want Booked", reloaded.Status)
	}
}

func TestRescheduleRejectsBookedSlot(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "resched-conflict@test.local")
	first := seedIndividual(t, db, "resched-first@test.local")
	second := seedIndividual(t, db, "resched-second@test.local")
	seedSlot(t, db, therapist.ID, models.Monday, "09:00", "09:30")
	seedSlot(t, db, therapist.ID, models.Wednesday, "14:00", "14:30")
	svc := NewAppointmentService(db)

	monday := nextWeekday(time.Monday, 9, 0)
	wednesday := nextWeekday(time.Wednesday, 14, 0)
	if _, _, err := svc.CreateAppointment(AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   first.ID,
		StartTime:   wednesday,
		EndTime:     wednesday.Add(30 * time.Minute),
		SessionType: models.SessionAudio,
	}); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	moved, _, err := svc.CreateAppointment(AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   second.ID,
		StartTime:   monday,
		EndTime:     monday.Add(30 * time.Minute),
		SessionType: models.SessionAudio,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	// Moving onto the Wednesday slot collides with the first booking.
	if _, _, err := svc.RescheduleAppointment(moved.ID, wednesday, wednesday.Add(30*time.Minute)); !errors.Is(err, ErrConflict) {
		t.Errorf("reschedule onto booked slot err = %v, want ErrConflict", err)
	}
}

func TestCreateAppointmentWithoutMatchingSlot(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "noslot@test.local")
	patient := seedIndividual(t, db, "noslot-patient@test.local")
	svc := NewAppointmentService(db)

	// No slots at all: booking still succeeds, just unlinked.
	start := nextWeekday(time.Tuesday, 14, 0)
	appointment, slotLinked, err := svc.CreateAppointment(AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   patient.ID,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		SessionType: models.SessionAudio,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if slotLinked {
		t.Error("slotLinked = true, want false")
	}
	if appointment.ConsultancyFee != 0 {
		t.Errorf("fee = %v, want 0 for therapist without slots", appointment.ConsultancyFee)
	}
}

func TestCreateAppointmentFeeDefaulting(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "fee@test.local")
	patient := seedIndividual(t, db, "fee-patient@test.local")
	svc := NewAppointmentService(db)

	// Older slot with different fees, then the most recent one whose fees win.
	old := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "10:00")
	db.Model(&old).Update("created_at", time.Now().Add(-48*time.Hour))
	seedSlot(t, db, therapist.ID, models.Wednesday, "09:00", "10:00")

	cases := []struct {
		sessionType models.SessionType
		wantFee     float64
	}{
		{models.SessionAudio, 40},
		{models.SessionVideo, 55},
		{models.SessionAudioVideo, 60},
		{models.SessionText, 25},
		{models.SessionTest, 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.sessionType), func(t *testing.T) {
			start := nextWeekday(time.Thursday, 8, 0)
			appointment, _, err := svc.CreateAppointment(AppointmentInput{
				TherapistID: therapist.ID,
				PatientID:   patient.ID,
				StartTime:   start,
				EndTime:     start.Add(time.Hour),
				SessionType: tc.sessionType,
			})
			if err != nil {
				t.Fatalf("CreateAppointment: %v", err)
			}
			if appointment.ConsultancyFee != tc.wantFee {
				t.Errorf("fee = %v, want %v", appointment.ConsultancyFee, tc.wantFee)
			}
		})
	}

	// An explicit fee always wins over defaulting.
	explicit := 99.5
	start := nextWeekday(time.Thursday, 9, 0)
	appointment, _, err := svc.CreateAppointment(AppointmentInput{
		TherapistID:    therapist.ID,
		PatientID:      patient.ID,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		SessionType:    models.SessionAudio,
		ConsultancyFee: &explicit,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if appointment.ConsultancyFee != 99.5 {
		t.Errorf("fee = %v, want 99.5", appointment.ConsultancyFee)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "valid@test.local")
	patient := seedIndividual(t, db, "valid-patient@test.local")
	svc := NewAppointmentService(db)
	start := nextWeekday(time.Monday, 9, 0)

	base := AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   patient.ID,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		SessionType: models.SessionAudio,
	}

	in := base
	in.TherapistID = 999
	if _, _, err := svc.CreateAppointment(in); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown therapist err = %v, want ErrNotFound", err)
	}

	in = base
	in.PatientID = 999
	if _, _, err := svc.CreateAppointment(in); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown patient err = %v, want ErrNotFound", err)
	}

	in = base
	in.SessionType = "Holographic"
	if _, _, err := svc.CreateAppointment(in); !errors.Is(err, ErrBadRequest) {
		t.Errorf("bad session type err = %v, want ErrBadRequest", err)
	}

	in = base
	in.EndTime = in.StartTime
	if _, _, err := svc.CreateAppointment(in); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty window err = %v, want ErrBadRequest", err)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "cancel@test.local")
	patient := seedIndividual(t, db, "cancel-patient@test.local")
	slot := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "09:30")
	svc := NewAppointmentService(db)

	start := nextWeekday(time.Monday, 9, 0)
	appointment, _, err := svc.CreateAppointment(AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   patient.ID,
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		SessionType: models.SessionAudio,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	cancelled, err := svc.CancelAppointment(appointment.ID)
	if err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if cancelled.Status != models.AppointmentCancelled {
		t.Errorf("status = %s, want Cancelled", cancelled.Status)
	}

	var reloaded models.ScheduleSlot
	db.First(&reloaded, slot.ID)
	if reloaded.Status != models.SlotAvailable {
		t.Errorf("slot status = %s, want Available after cancel", reloaded.Status)
	}
}

func TestStateMachineTerminalStates(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "state@test.local")
	patient := seedIndividual(t, db, "state-patient@test.local")
	svc := NewAppointmentService(db)
	start := nextWeekday(time.Monday, 9, 0)

	mk := func() *models.Appointment {
		t.Helper()
		appointment, _, err := svc.CreateAppointment(AppointmentInput{
			TherapistID: therapist.ID,
			PatientID:   patient.ID,
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			SessionType: models.SessionAudio,
		})
		if err != nil {
			t.Fatalf("CreateAppointment: %v", err)
		}
		return appointment
	}

	// Completed appointments cannot be cancelled or rescheduled.
	completed := mk()
	if _, err := svc.CompleteAppointment(completed.ID); err != nil {
		t.Fatalf("CompleteAppointment: %v", err)
	}
	if _, err := svc.CancelAppointment(completed.ID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("cancel completed err = %v, want ErrBadRequest", err)
	}
	if _, _, err := svc.RescheduleAppointment(completed.ID, start, start.Add(time.Hour)); !errors.Is(err, ErrBadRequest) {
		t.Errorf("reschedule completed err = %v, want ErrBadRequest", err)
	}

	// Cancelled appointments cannot be completed.
	cancelled := mk()
	if _, err := svc.CancelAppointment(cancelled.ID); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if _, err := svc.CompleteAppointment(cancelled.ID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("complete cancelled err = %v, want ErrBadRequest", err)
	}
}

func TestRescheduleSwapsSlots(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "resched@test.local")
	patient := seedIndividual(t, db, "resched-patient@test.local")
	oldSlot := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "09:30")
	newSlot := seedSlot(t, db, therapist.ID, models.Wednesday, "14:00", "14:30")
	svc := NewAppointmentService(db)

	start := nextWeekday(time.Monday, 9, 0)
	appointment, _, err := svc.CreateAppointment(AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   patient.ID,
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		SessionType: models.SessionAudio,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	newStart := nextWeekday(time.Wednesday, 14, 0)
	rescheduled, slotLinked, err := svc.RescheduleAppointment(appointment.ID, newStart, newStart.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("RescheduleAppointment: %v", err)
	}
	if rescheduled.Status != models.AppointmentRescheduled {
		t.Errorf("status = %s, want Rescheduled", rescheduled.Status)
	}
	if !slotLinked {
		t.Error("slotLinked = false, want true")
	}
	if !rescheduled.StartTime.Equal(newStart) {
		t.Errorf("start = %v, want %v", rescheduled.StartTime, newStart)
	}

	var reloaded models.ScheduleSlot
	db.First(&reloaded, oldSlot.ID)
	if reloaded.Status != models.SlotAvailable {
		t.Errorf("old slot status = %s, want Available", reloaded.Status)
	}
	var reloadedNew models.ScheduleSlot
	db.First(&reloadedNew, newSlot.ID)
	if reloadedNew.Status != models.SlotBooked {
		t.Errorf("new slot status = %s, want Booked", reloadedNew.Status)
	}
}

func TestRemoveAppointmentFreesSlotAndCascadesNotes(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "remove@test.local")
	patient := seedIndividual(t, db, "remove-patient@test.local")
	slot := seedSlot(t, db, therapist.ID, models.Monday, "09:00", "09:30")
	svc := NewAppointmentService(db)

	start := nextWeekday(time.Monday, 9, 0)
	appointment, _, err := svc.CreateAppointment(AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   patient.ID,
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		SessionType: models.SessionAudio,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if _, err := svc.AddNote(appointment.ID, therapist.ID, NoteInput{Type: models.NoteSessionNotes, Content: "made progress"}); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	if err := svc.RemoveAppointment(appointment.ID); err != nil {
		t.Fatalf("RemoveAppointment: %v", err)
	}

	var reloaded models.ScheduleSlot
	db.First(&reloaded, slot.ID)
	if reloaded.Status != models.SlotAvailable {
		t.Errorf("slot status = %s, want Available after removal", reloaded.Status)
	}
	var noteCount int64
	db.Model(&models.Note{}).Where("appointment_id = ?", appointment.ID).Count(&noteCount)
	if noteCount != 0 {
		t.Errorf("note count = %d, want 0 after removal", noteCount)
	}
	if _, err := svc.GetAppointment(appointment.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAppointment err = %v, want ErrNotFound", err)
	}
}

func TestSummaryForTherapist(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "summary@test.local")
	patient := seedIndividual(t, db, "summary-patient@test.local")
	svc := NewAppointmentService(db)
	start := nextWeekday(time.Monday, 9, 0)

	fee := 50.0
	mk := func(sessionType models.SessionType) *models.Appointment {
		t.Helper()
		appointment, _, err := svc.CreateAppointment(AppointmentInput{
			TherapistID:    therapist.ID,
			PatientID:      patient.ID,
			StartTime:      start,
			EndTime:        start.Add(time.Hour),
			SessionType:    sessionType,
			ConsultancyFee: &fee,
		})
		if err != nil {
			t.Fatalf("CreateAppointment: %v", err)
		}
		return appointment
	}

	completed := mk(models.SessionVideo)
	if _, err := svc.CompleteAppointment(completed.ID); err != nil {
		t.Fatalf("CompleteAppointment: %v", err)
	}
	mk(models.SessionAudio)
	mk(models.SessionTest)

	gsvc := NewGroupTherapyService(db)
	if _, err := gsvc.CreateSession(GroupTherapyInput{
		Title:               "Mindfulness basics",
		Date:                time.Now().Add(48 * time.Hour),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	summary, err := svc.Summary(therapist.ID, "therapist")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalAppointments != 3 {
		t.Errorf("total = %d, want 3", summary.TotalAppointments)
	}
	if summary.AudioVideoCount != 2 {
		t.Errorf("audio/video = %d, want 2", summary.AudioVideoCount)
	}
	if summary.TestSessionCount != 1 {
		t.Errorf("test sessions = %d, want 1", summary.TestSessionCount)
	}
	if summary.GroupSessionCount != 1 {
		t.Errorf("group sessions = %d, want 1", summary.GroupSessionCount)
	}
	if summary.TotalEarnings == nil || *summary.TotalEarnings != 50 {
		t.Errorf("earnings = %v, want 50 (completed appointments only)", summary.TotalEarnings)
	}
}

func TestWeeklyScheduleBuckets(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "weekly@test.local")
	patient := seedIndividual(t, db, "weekly-patient@test.local")
	svc := NewAppointmentService(db)

	weekStart := date(2026, time.January, 4) // a Sunday
	inWeek := weekStart.Add(2*24*time.Hour + 9*time.Hour)
	outOfWeek := weekStart.AddDate(0, 0, 10)

	for _, start := range []time.Time{inWeek, outOfWeek} {
		if _, _, err := svc.CreateAppointment(AppointmentInput{
			TherapistID: therapist.ID,
			PatientID:   patient.ID,
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			SessionType: models.SessionAudio,
		}); err != nil {
			t.Fatalf("CreateAppointment: %v", err)
		}
	}

	week, err := svc.WeeklySchedule(therapist.ID, "therapist", &weekStart)
	if err != nil {
		t.Fatalf("WeeklySchedule: %v", err)
	}
	if len(week) != 7 {
		t.Fatalf("got %d buckets, want 7", len(week))
	}
	if got := len(week["2026-01-06"]); got != 1 {
		t.Errorf("2026-01-06 bucket size = %d, want 1", got)
	}
	empty := 0
	for _, bucket := range week {
		if len(bucket) == 0 {
			empty++
		}
	}
	if empty != 6 {
		t.Errorf("empty buckets = %d, want 6", empty)
	}
}

func TestAddNoteValidation(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "note@test.local")
	patient := seedIndividual(t, db, "note-patient@test.local")
	svc := NewAppointmentService(db)
	start := nextWeekday(time.Monday, 9, 0)

	appointment, _, err := svc.CreateAppointment(AppointmentInput{
		TherapistID: therapist.ID,
		PatientID:   patient.ID,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		SessionType: models.SessionAudio,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	if _, err := svc.AddNote(appointment.ID, therapist.ID, NoteInput{Type: "Gossip", Content: "x"}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("bad type err = %v, want ErrBadRequest", err)
	}
	if _, err := svc.AddNote(999, therapist.ID, NoteInput{Type: models.NoteSessionNotes, Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing appointment err = %v, want ErrNotFound", err)
	}

	if _, err := svc.AddNote(appointment.ID, therapist.ID, NoteInput{Type: models.NotePriorities, Content: "sleep routine"}); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	notes, err := svc.GetNotes(appointment.ID)
	if err != nil {
		t.Fatalf("GetNotes: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != models.NotePriorities {
		t.Errorf("notes = %+v, want one Priorities note", notes)
	}
}
