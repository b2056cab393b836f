package services

import (
	"errors"
	"testing"
	"time"
)

func futureDate() time.Time {
	return time.Now().Add(72 * time.Hour)
}

func TestCreateSessionValidation(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "gcreate@test.local")
	svc := NewGroupTherapyService(db)

	base := GroupTherapyInput{
		Title:               "Managing anxiety",
		Date:                futureDate(),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	}

	in := base
	in.Date = time.Now().Add(-time.Hour)
	if _, err := svc.CreateSession(in); !errors.Is(err, ErrBadRequest) {
		t.Errorf("past date err = %v, want ErrBadRequest", err)
	}

	in = base
	in.ParticipantCapacity = 0
	if _, err := svc.CreateSession(in); !errors.Is(err, ErrBadRequest) {
		t.Errorf("capacity 0 err = %v, want ErrBadRequest", err)
	}

	in = base
	in.ParticipantCapacity = 21
	if _, err := svc.CreateSession(in); !errors.Is(err, ErrBadRequest) {
		t.Errorf("capacity 21 err = %v, want ErrBadRequest", err)
	}

	in = base
	in.ModeratorID = 999
	if _, err := svc.CreateSession(in); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown moderator err = %v, want ErrNotFound", err)
	}

	session, err := svc.CreateSession(base)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.NumberOfSessions != 1 {
		t.Errorf("number of sessions = %d, want default 1", session.NumberOfSessions)
	}
	if session.CurrentParticipantCount() != 0 {
		t.Errorf("participant count = %d, want 0", session.CurrentParticipantCount())
	}
}

func TestJoinEnforcesCapacity(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "gjoin@test.local")
	a := seedIndividual(t, db, "a@test.local")
	b := seedIndividual(t, db, "b@test.local")
	c := seedIndividual(t, db, "c@test.local")
	svc := NewGroupTherapyService(db)

	session, err := svc.CreateSession(GroupTherapyInput{
		Title:               "Grief circle",
		Date:                futureDate(),
		ParticipantCapacity: 2,
		ModeratorID:         therapist.ID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	joined, err := svc.Join(session.ID, a.ID)
	if err != nil {
		t.Fatalf("join A: %v", err)
	}
	if joined.CurrentParticipantCount() != 1 || joined.IsFull() {
		t.Errorf("after A: count=%d full=%v, want 1/false", joined.CurrentParticipantCount(), joined.IsFull())
	}

	joined, err = svc.Join(session.ID, b.ID)
	if err != nil {
		t.Fatalf("join B: %v", err)
	}
	if joined.CurrentParticipantCount() != 2 || !joined.IsFull() {
		t.Errorf("after B: count=%d full=%v, want 2/true", joined.CurrentParticipantCount(), joined.IsFull())
	}

	if _, err := svc.Join(session.ID, c.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("join C err = %v, want ErrConflict", err)
	}

	reloaded, err := svc.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if reloaded.CurrentParticipantCount() != 2 {
		t.Errorf("count after rejected join = %d, want 2", reloaded.CurrentParticipantCount())
	}
}

func TestJoinRejectsDuplicateAndUnknown(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "gdup@test.local")
	a := seedIndividual(t, db, "dup-a@test.local")
	svc := NewGroupTherapyService(db)

	session, err := svc.CreateSession(GroupTherapyInput{
		Title:               "Sleep hygiene",
		Date:                futureDate(),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := svc.Join(session.ID, a.ID); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := svc.Join(session.ID, a.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate join err = %v, want ErrConflict", err)
	}
	if _, err := svc.Join(session.ID, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown individual err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Join(999, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown session err = %v, want ErrNotFound", err)
	}
}

func TestJoinAndLeaveRejectPastSessions(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "gpast@test.local")
	a := seedIndividual(t, db, "past-a@test.local")
	svc := NewGroupTherapyService(db)

	session, err := svc.CreateSession(GroupTherapyInput{
		Title:               "Workplace stress",
		Date:                futureDate(),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.Join(session.ID, a.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Move the session into the past behind the service's back.
	db.Model(session).Update("date", time.Now().Add(-time.Hour))

	if _, err := svc.Join(session.ID, a.ID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("join past err = %v, want ErrBadRequest", err)
	}
	if _, err := svc.Leave(session.ID, a.ID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("leave past err = %v, want ErrBadRequest", err)
	}
}

func TestLeaveRemovesParticipant(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "gleave@test.local")
	a := seedIndividual(t, db, "leave-a@test.local")
	b := seedIndividual(t, db, "leave-b@test.local")
	svc := NewGroupTherapyService(db)

	session, err := svc.CreateSession(GroupTherapyInput{
		Title:               "Parenting support",
		Date:                futureDate(),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.Join(session.ID, a.ID); err != nil {
		t.Fatalf("join A: %v", err)
	}
	if _, err := svc.Join(session.ID, b.ID); err != nil {
		t.Fatalf("join B: %v", err)
	}

	left, err := svc.Leave(session.ID, a.ID)
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if left.CurrentParticipantCount() != 1 {
		t.Errorf("count after leave = %d, want 1", left.CurrentParticipantCount())
	}
	if left.Participants[0].ID != b.ID {
		t.Errorf("remaining participant = %d, want %d", left.Participants[0].ID, b.ID)
	}

	if _, err := svc.Leave(session.ID, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("leave non-participant err = %v, want ErrNotFound", err)
	}
}

func TestUpdateSessionCapacityGuard(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "gcap@test.local")
	a := seedIndividual(t, db, "cap-a@test.local")
	b := seedIndividual(t, db, "cap-b@test.local")
	svc := NewGroupTherapyService(db)

	session, err := svc.CreateSession(GroupTherapyInput{
		Title:               "Burnout recovery",
		Date:                futureDate(),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.Join(session.ID, a.ID); err != nil {
		t.Fatalf("join A: %v", err)
	}
	if _, err := svc.Join(session.ID, b.ID); err != nil {
		t.Fatalf("join B: %v", err)
	}

	one := 1
	if _, err := svc.UpdateSession(session.ID, GroupTherapyUpdate{ParticipantCapacity: &one}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("reduce below occupancy err = %v, want ErrBadRequest", err)
	}
	reloaded, err := svc.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if reloaded.ParticipantCapacity != 5 {
		t.Errorf("capacity after rejected update = %d, want 5", reloaded.ParticipantCapacity)
	}

	two := 2
	updated, err := svc.UpdateSession(session.ID, GroupTherapyUpdate{ParticipantCapacity: &two})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if updated.ParticipantCapacity != 2 || !updated.IsFull() {
		t.Errorf("capacity=%d full=%v, want 2/true", updated.ParticipantCapacity, updated.IsFull())
	}
}

func TestUpdateSessionModeratorAndDate(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "gupd@test.local")
	other := seedTherapist(t, db, "gupd-other@test.local")
	svc := NewGroupTherapyService(db)

	session, err := svc.CreateSession(GroupTherapyInput{
		Title:               "Social confidence",
		Date:                futureDate(),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	unknown := uint(999)
	if _, err := svc.UpdateSession(session.ID, GroupTherapyUpdate{ModeratorID: &unknown}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown moderator err = %v, want ErrNotFound", err)
	}

	past := time.Now().Add(-time.Hour)
	if _, err := svc.UpdateSession(session.ID, GroupTherapyUpdate{Date: &past}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("past date err = %v, want ErrBadRequest", err)
	}

	updated, err := svc.UpdateSession(session.ID, GroupTherapyUpdate{ModeratorID: &other.ID})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if updated.ModeratorID != other.ID {
		t.Errorf("moderator = %d, want %d", updated.ModeratorID, other.ID)
	}
}

func TestDeleteSessionKeepsIndividuals(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "gdel@test.local")
	a := seedIndividual(t, db, "del-a@test.local")
	svc := NewGroupTherapyService(db)

	session, err := svc.CreateSession(GroupTherapyInput{
		Title:               "Chronic pain support",
		Date:                futureDate(),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.Join(session.ID, a.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.DeleteSession(session.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := svc.GetSession(session.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession err = %v, want ErrNotFound", err)
	}

	// The individual survives the session.
	var count int64
	db.Model(&a).Where("id = ?", a.ID).Count(&count)
	if count != 1 {
		t.Errorf("individual count = %d, want 1", count)
	}
}

func TestListSessionsFilters(t *testing.T) {
	db := newTestDB(t)
	therapist := seedTherapist(t, db, "glist@test.local")
	a := seedIndividual(t, db, "list-a@test.local")
	svc := NewGroupTherapyService(db)

	full, err := svc.CreateSession(GroupTherapyInput{
		Title:               "One-seat room",
		DiscussionTopic:     "Anxiety",
		Date:                futureDate(),
		ParticipantCapacity: 1,
		ModeratorID:         therapist.ID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.Join(full.ID, a.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.CreateSession(GroupTherapyInput{
		Title:               "Open room",
		DiscussionTopic:     "Anxiety",
		Date:                futureDate(),
		ParticipantCapacity: 5,
		ModeratorID:         therapist.ID,
	}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	sessions, total, err := svc.ListSessions(GroupTherapyFilter{Topic: "Anxiety", AvailableOnly: true})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "Open room" {
		t.Fatalf("available sessions = %d, want only the open room", len(sessions))
	}
	if total != 1 {
		t.Errorf("available total = %d, want 1", total)
	}

	// The availability filter applies before pagination, so a one-item page
	// holds the open room rather than coming back empty.
	sessions, total, err = svc.ListSessions(GroupTherapyFilter{Topic: "Anxiety", AvailableOnly: true, Page: 1, PerPage: 1})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "Open room" || total != 1 {
		t.Errorf("paged available sessions = %d (total %d), want the open room with total 1", len(sessions), total)
	}

	sessions, total, err = svc.ListSessions(GroupTherapyFilter{ModeratorID: therapist.ID})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if total != 2 || len(sessions) != 2 {
		t.Errorf("moderator sessions = %d (total %d), want 2", len(sessions), total)
	}
}
