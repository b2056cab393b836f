package services

import (
	"errors"
	"fmt"
	"time"

	"theracare_go/models"

	"gorm.io/gorm"
)

// AppointmentService is the booking coordinator: it keeps each one-on-one
// appointment and its matching availability slot mutually consistent through
// the appointment lifecycle.
type AppointmentService struct {
	db *gorm.DB
}

func NewAppointmentService(db *gorm.DB) *AppointmentService {
	return &AppointmentService{db: db}
}

// AppointmentInput is the caller-supplied shape for appointment creation.
type AppointmentInput struct {
	TherapistID    uint                      `json:"therapist_id" validate:"required"`
	PatientID      uint                      `json:"patient_id" validate:"required"`
	StartTime      time.Time                 `json:"start_time" validate:"required"`
	EndTime        time.Time                 `json:"end_time" validate:"required"`
	SessionType    models.SessionType        `json:"session_type" validate:"required"`
	Status         *models.AppointmentStatus `json:"status"`
	Duration       *int                      `json:"duration"`
	Summary        string                    `json:"summary"`
	ConsultancyFee *float64                  `json:"consultancy_fee"`
}

// CreateAppointment books a one-on-one session. If an availability slot
// matches the appointment's (therapist, weekday, start "HH:MM") key it is
// flipped to Booked in the same transaction; a slot that is already Booked
// fails the booking with a conflict. A missing slot is not an error, and the
// returned flag reports whether a slot was linked.
func (s *AppointmentService) CreateAppointment(in AppointmentInput) (*models.Appointment, bool, error) {
	if !in.SessionType.IsValid() {
		return nil, false, fmt.Errorf("%w: unknown session type %q", ErrBadRequest, in.SessionType)
	}
	if !in.StartTime.Before(in.EndTime) {
		return nil, false, fmt.Errorf("%w: start time must be before end time", ErrBadRequest)
	}

	if err := s.requireTherapist(in.TherapistID); err != nil {
		return nil, false, err
	}
	if err := s.requirePatient(in.PatientID); err != nil {
		return nil, false, err
	}

	status := models.AppointmentUpcoming
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, false, fmt.Errorf("%w: unknown appointment status %q", ErrBadRequest, *in.Status)
		}
		status = *in.Status
	}

	fee := 0.0
	if in.ConsultancyFee != nil {
		if *in.ConsultancyFee < 0 {
			return nil, false, fmt.Errorf("%w: consultancy fee cannot be negative", ErrBadRequest)
		}
		fee = *in.ConsultancyFee
	} else {
		resolved, err := s.defaultFee(in.TherapistID, in.SessionType)
		if err != nil {
			return nil, false, err
		}
		fee = resolved
	}

	appointment := models.Appointment{
		StartTime:      in.StartTime.UTC(),
		EndTime:        in.EndTime.UTC(),
		SessionType:    in.SessionType,
		Status:         status,
		Duration:       in.Duration,
		Summary:        in.Summary,
		ConsultancyFee: fee,
		TherapistID:    in.TherapistID,
		PatientID:      in.PatientID,
	}

	slotLinked := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&appointment).Error; err != nil {
			return err
		}
		slot, err := s.findMatchingSlot(tx, appointment.TherapistID, appointment.StartTime)
		if err != nil {
			return err
		}
		if slot != nil {
			if slot.Status == models.SlotBooked {
				return fmt.Errorf("%w: slot %s %s is already booked", ErrConflict, slot.DayOfWeek, slot.StartTime)
			}
			slot.Status = models.SlotBooked
			if err := tx.Save(slot).Error; err != nil {
				return err
			}
			slotLinked = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &appointment, slotLinked, nil
}

// defaultFee resolves the consultancy fee from the therapist's most recently
// created slot. Test sessions and therapists without slots default to 0.
func (s *AppointmentService) defaultFee(therapistID uint, sessionType models.SessionType) (float64, error) {
	if sessionType == models.SessionTest {
		return 0, nil
	}
	var slot models.ScheduleSlot
	err := s.db.Where("therapist_id = ?", therapistID).
		Order("created_at DESC").
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	switch sessionType {
	case models.SessionAudio:
		return slot.AudioFee, nil
	case models.SessionVideo:
		return slot.VideoFee, nil
	case models.SessionAudioVideo:
		return slot.AudioVideoFee, nil
	case models.SessionText:
		return slot.TextFee, nil
	}
	return 0, nil
}

// findMatchingSlot locates the slot for (therapist, weekday of startTime,
// "HH:MM" start). Exact-match lookup; a nil result means no slot is touched.
func (s *AppointmentService) findMatchingSlot(tx *gorm.DB, therapistID uint, startTime time.Time) (*models.ScheduleSlot, error) {
	start := startTime.UTC()
	var slot models.ScheduleSlot
	err := lockForUpdate(tx).
		Where("therapist_id = ? AND day_of_week = ? AND start_time = ?",
			therapistID, models.DayOfWeekFromTime(start), start.Format("15:04")).
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &slot, nil
}

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	Status      models.AppointmentStatus
	TherapistID uint
	PatientID   uint
	StartDate   *time.Time
	EndDate     *time.Time
	Page        int
	PerPage     int
}

// ListAppointments returns appointments matching the filter plus the total.
func (s *AppointmentService) ListAppointments(f AppointmentFilter) ([]models.Appointment, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}

	q := s.db.Model(&models.Appointment{})
	if f.Status != "" {
		if !f.Status.IsValid() {
			return nil, 0, fmt.Errorf("%w: unknown appointment status %q", ErrBadRequest, f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.TherapistID != 0 {
		q = q.Where("therapist_id = ?", f.TherapistID)
	}
	if f.PatientID != 0 {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.StartDate != nil {
		q = q.Where("start_time >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		q = q.Where("start_time <= ?", f.EndDate.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var appointments []models.Appointment
	err := q.Preload("Therapist").Preload("Patient").
		Order("start_time ASC").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&appointments).Error
	if err != nil {
		return nil, 0, err
	}
	return appointments, total, nil
}

// GetAppointment fetches one appointment with therapist, patient and notes.
func (s *AppointmentService) GetAppointment(id uint) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.db.Preload("Therapist").Preload("Patient").Preload("Notes").
		First(&appointment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &appointment, nil
}

// AppointmentUpdate carries patchable appointment fields; nil means unchanged.
type AppointmentUpdate struct {
	SessionType    *models.SessionType `json:"session_type"`
	Duration       *int                `json:"duration"`
	Summary        *string             `json:"summary"`
	ConsultancyFee *float64            `json:"consultancy_fee"`
}

// UpdateAppointment applies a partial update. Status changes go through the
// dedicated transition operations, not here.
func (s *AppointmentService) UpdateAppointment(id uint, upd AppointmentUpdate) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appointment, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: appointment %d", ErrNotFound, id)
			}
			return err
		}
		if upd.SessionType != nil {
			if !upd.SessionType.IsValid() {
				return fmt.Errorf("%w: unknown session type %q", ErrBadRequest, *upd.SessionType)
			}
			appointment.SessionType = *upd.SessionType
		}
		if upd.Duration != nil {
			appointment.Duration = upd.Duration
		}
		if upd.Summary != nil {
			appointment.Summary = *upd.Summary
		}
		if upd.ConsultancyFee != nil {
			if *upd.ConsultancyFee < 0 {
				return fmt.Errorf("%w: consultancy fee cannot be negative", ErrBadRequest)
			}
			appointment.ConsultancyFee = *upd.ConsultancyFee
		}
		return tx.Save(&appointment).Error
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// CancelAppointment marks an appointment Cancelled and frees the slot
// matching its original time window. Completed appointments cannot be
// cancelled.
func (s *AppointmentService) CancelAppointment(id uint) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&appointment, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: appointment %d", ErrNotFound, id)
			}
			return err
		}
		if appointment.Status == models.AppointmentCompleted {
			return fmt.Errorf("%w: cannot cancel a completed appointment", ErrBadRequest)
		}
		appointment.Status = models.AppointmentCancelled
		if err := tx.Save(&appointment).Error; err != nil {
			return err
		}
		return s.releaseSlot(tx, appointment.TherapistID, appointment.StartTime)
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// CompleteAppointment marks an appointment Completed. The matching slot
// stays Booked since the session actually took place. Cancelled appointments
// cannot be completed.
func (s *AppointmentService) CompleteAppointment(id uint) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&appointment, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: appointment %d", ErrNotFound, id)
			}
			return err
		}
		if appointment.Status == models.AppointmentCancelled {
			return fmt.Errorf("%w: cannot complete a cancelled appointment", ErrBadRequest)
		}
		appointment.Status = models.AppointmentCompleted
		return tx.Save(&appointment).Error
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// RescheduleAppointment moves an appointment to a new time window: the old
// matching slot is freed, the new one (if any) booked, and the status set to
// Rescheduled. Completed appointments cannot be rescheduled.
func (s *AppointmentService) RescheduleAppointment(id uint, newStart, newEnd time.Time) (*models.Appointment, bool, error) {
	if !newStart.Before(newEnd) {
		return nil, false, fmt.Errorf("%w: start time must be before end time", ErrBadRequest)
	}

	var appointment models.Appointment
	slotLinked := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&appointment, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: appointment %d", ErrNotFound, id)
			}
			return err
		}
		if appointment.Status == models.AppointmentCompleted {
			return fmt.Errorf("%w: cannot reschedule a completed appointment", ErrBadRequest)
		}

		if err := s.releaseSlot(tx, appointment.TherapistID, appointment.StartTime); err != nil {
			return err
		}

		appointment.StartTime = newStart.UTC()
		appointment.EndTime = newEnd.UTC()
		appointment.Status = models.AppointmentRescheduled
		if err := tx.Save(&appointment).Error; err != nil {
			return err
		}

		slot, err := s.findMatchingSlot(tx, appointment.TherapistID, appointment.StartTime)
		if err != nil {
			return err
		}
		if slot != nil {
			if slot.Status == models.SlotBooked {
				return fmt.Errorf("%w: slot %s %s is already booked", ErrConflict, slot.DayOfWeek, slot.StartTime)
			}
			slot.Status = models.SlotBooked
			if err := tx.Save(slot).Error; err != nil {
				return err
			}
			slotLinked = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &appointment, slotLinked, nil
}

// RemoveAppointment hard-deletes an appointment together with its notes and
// frees the matching slot.
func (s *AppointmentService) RemoveAppointment(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var appointment models.Appointment
		if err := lockForUpdate(tx).First(&appointment, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: appointment %d", ErrNotFound, id)
			}
			return err
		}
		if err := s.releaseSlot(tx, appointment.TherapistID, appointment.StartTime); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("appointment_id = ?", id).Delete(&models.Note{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&appointment).Error
	})
}

// releaseSlot flips the slot matching (therapist, weekday, start) back to
// Available. Missing slots are ignored.
func (s *AppointmentService) releaseSlot(tx *gorm.DB, therapistID uint, startTime time.Time) error {
	slot, err := s.findMatchingSlot(tx, therapistID, startTime)
	if err != nil {
		return err
	}
	if slot == nil {
		return nil
	}
	slot.Status = models.SlotAvailable
	return tx.Save(slot).Error
}

// NoteInput is the caller-supplied shape for appointment notes.
type NoteInput struct {
	Type    models.NoteType `json:"type" validate:"required"`
	Content string          `json:"content" validate:"required"`
}

// AddNote appends a note to an appointment. Notes are append-only.
func (s *AppointmentService) AddNote(appointmentID, therapistID uint, in NoteInput) (*models.Note, error) {
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown note type %q", ErrBadRequest, in.Type)
	}
	if in.Content == "" {
		return nil, fmt.Errorf("%w: note content is required", ErrBadRequest)
	}
	var count int64
	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointmentID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, appointmentID)
	}

	note := models.Note{
		Type:          in.Type,
		Content:       in.Content,
		AppointmentID: appointmentID,
		CreatedByID:   therapistID,
	}
	if err := s.db.Create(&note).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

// GetNotes lists an appointment's notes in creation order.
func (s *AppointmentService) GetNotes(appointmentID uint) ([]models.Note, error) {
	var count int64
	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointmentID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, appointmentID)
	}
	var notes []models.Note
	err := s.db.Where("appointment_id = ?", appointmentID).
		Order("created_at ASC").
		Find(&notes).Error
	return notes, err
}

// AppointmentSummary aggregates a user's session counts for dashboards.
type AppointmentSummary struct {
	TotalAppointments int64    `json:"total_appointments"`
	AudioVideoCount   int64    `json:"audio_video_count"`
	GroupSessionCount int64    `json:"group_session_count"`
	TestSessionCount  int64    `json:"test_session_count"`
	TotalEarnings     *float64 `json:"total_earnings,omitempty"`
}

// Summary computes counts for a therapist or patient. Earnings (sum of fees
// over Completed appointments) are reported for therapists only.
func (s *AppointmentService) Summary(userID uint, userType string) (*AppointmentSummary, error) {
	var q *gorm.DB
	switch userType {
	case "therapist":
		if err := s.requireTherapist(userID); err != nil {
			return nil, err
		}
		q = s.db.Model(&models.Appointment{}).Where("therapist_id = ?", userID)
	case "patient":
		if err := s.requirePatient(userID); err != nil {
			return nil, err
		}
		q = s.db.Model(&models.Appointment{}).Where("patient_id = ?", userID)
	default:
		return nil, fmt.Errorf("%w: unknown user type %q", ErrBadRequest, userType)
	}

	summary := &AppointmentSummary{}
	if err := q.Session(&gorm.Session{}).Count(&summary.TotalAppointments).Error; err != nil {
		return nil, err
	}
	err := q.Session(&gorm.Session{}).
		Where("session_type IN ?", []models.SessionType{models.SessionAudio, models.SessionVideo, models.SessionAudioVideo}).
		Count(&summary.AudioVideoCount).Error
	if err != nil {
		return nil, err
	}
	err = q.Session(&gorm.Session{}).
		Where("session_type = ?", models.SessionTest).
		Count(&summary.TestSessionCount).Error
	if err != nil {
		return nil, err
	}

	if userType == "therapist" {
		if err := s.db.Model(&models.GroupTherapy{}).
			Where("moderator_id = ?", userID).
			Count(&summary.GroupSessionCount).Error; err != nil {
			return nil, err
		}
		var earnings float64
		err := s.db.Model(&models.Appointment{}).
			Where("therapist_id = ? AND status = ?", userID, models.AppointmentCompleted).
			Select("COALESCE(SUM(consultancy_fee), 0)").
			Scan(&earnings).Error
		if err != nil {
			return nil, err
		}
		summary.TotalEarnings = &earnings
	} else {
		if err := s.db.Model(&models.GroupTherapy{}).
			Joins("JOIN group_therapy_participants gtp ON gtp.group_therapy_id = group_therapies.id").
			Where("gtp.individual_id = ?", userID).
			Count(&summary.GroupSessionCount).Error; err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// WeeklySchedule returns the user's appointments within a 7-day window,
// bucketed by calendar date with empty days included. The window defaults to
// the most recent Sunday.
func (s *AppointmentService) WeeklySchedule(userID uint, userType string, weekStart *time.Time) (map[string][]models.Appointment, error) {
	var q *gorm.DB
	switch userType {
	case "therapist":
		if err := s.requireTherapist(userID); err != nil {
			return nil, err
		}
		q = s.db.Where("therapist_id = ?", userID)
	case "patient":
		if err := s.requirePatient(userID); err != nil {
			return nil, err
		}
		q = s.db.Where("patient_id = ?", userID)
	default:
		return nil, fmt.Errorf("%w: unknown user type %q", ErrBadRequest, userType)
	}

	start := mostRecentSunday(time.Now().UTC())
	if weekStart != nil {
		start = truncateToUTCDay(*weekStart)
	}
	end := start.AddDate(0, 0, 7)

	var appointments []models.Appointment
	err := q.Preload("Therapist").Preload("Patient").
		Where("start_time >= ? AND start_time < ?", start, end).
		Order("start_time ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}

	week := make(map[string][]models.Appointment, 7)
	for i := 0; i < 7; i++ {
		week[start.AddDate(0, 0, i).Format("2006-01-02")] = []models.Appointment{}
	}
	for _, a := range appointments {
		key := a.StartTime.UTC().Format("2006-01-02")
		week[key] = append(week[key], a)
	}
	return week, nil
}

func mostRecentSunday(t time.Time) time.Time {
	day := truncateToUTCDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

func (s *AppointmentService) requireTherapist(id uint) error {
	var count int64
	if err := s.db.Model(&models.Therapist{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: therapist %d", ErrNotFound, id)
	}
	return nil
}

func (s *AppointmentService) requirePatient(id uint) error {
	var count int64
	if err := s.db.Model(&models.Individual{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: individual %d", ErrNotFound, id)
	}
	return nil
}
