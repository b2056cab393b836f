package services

import (
	"errors"
	"fmt"
	"time"

	"theracare_go/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScheduleService owns the availability store: therapist slots, their
// lifecycle, and collision handling on creation.
type ScheduleService struct {
	db *gorm.DB
}

func NewScheduleService(db *gorm.DB) *ScheduleService {
	return &ScheduleService{db: db}
}

// lockForUpdate adds a row lock inside a transaction. SQLite serializes
// writers on its own, so the clause is skipped there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// SlotInput is the caller-supplied shape for single and bulk slot creation.
type SlotInput struct {
	DayOfWeek     models.DayOfWeek `json:"day_of_week" validate:"required"`
	Date          *time.Time       `json:"date"`
	StartTime     string           `json:"start_time" validate:"required"`
	EndTime       string           `json:"end_time" validate:"required"`
	AudioFee      float64          `json:"audio_fee"`
	VideoFee      float64          `json:"video_fee"`
	AudioVideoFee float64          `json:"audio_video_fee"`
	TextFee       float64          `json:"text_fee"`
}

func (s *ScheduleService) validateSlotInput(in SlotInput) error {
	if !in.DayOfWeek.IsValid() {
		return fmt.Errorf("%w: unknown day of week %q", ErrBadRequest, in.DayOfWeek)
	}
	start, err := ParseClock(in.StartTime)
	if err != nil {
		return fmt.Errorf("%w: invalid start time %q", ErrBadRequest, in.StartTime)
	}
	end, err := ParseClock(in.EndTime)
	if err != nil {
		return fmt.Errorf("%w: invalid end time %q", ErrBadRequest, in.EndTime)
	}
	if start >= end {
		return fmt.Errorf("%w: start time must be before end time", ErrBadRequest)
	}
	return nil
}

// slotExists reports a stored collision for the uniqueness key
// (therapist, date-or-weekday, start, end). Dated slots collide on the full
// UTC timestamp; weekly slots collide on the weekday.
func (s *ScheduleService) slotExists(tx *gorm.DB, slot models.ScheduleSlot) (bool, error) {
	q := tx.Model(&models.ScheduleSlot{}).
		Where("therapist_id = ? AND start_time = ? AND end_time = ?", slot.TherapistID, slot.StartTime, slot.EndTime)
	if slot.Date != nil {
		q = q.Where("date = ?", slot.Date.UTC())
	} else {
		q = q.Where("date IS NULL AND day_of_week = ?", slot.DayOfWeek)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateSlot stores a single slot; a collision with an existing slot is a
// conflict rather than a silent duplicate.
func (s *ScheduleService) CreateSlot(therapistID uint, in SlotInput) (*models.ScheduleSlot, error) {
	if err := s.requireTherapist(therapistID); err != nil {
		return nil, err
	}
	if err := s.validateSlotInput(in); err != nil {
		return nil, err
	}

	slot := models.ScheduleSlot{
		TherapistID:   therapistID,
		DayOfWeek:     in.DayOfWeek,
		Date:          in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Status:        models.SlotAvailable,
		AudioFee:      in.AudioFee,
		VideoFee:      in.VideoFee,
		AudioVideoFee: in.AudioVideoFee,
		TextFee:       in.TextFee,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.slotExists(tx, slot)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: slot already exists for %s %s", ErrConflict, slot.DayOfWeek, slot.StartTime)
		}
		return tx.Create(&slot).Error
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// CreateSlotsBulk stores many slots, skipping collisions. When every input
// collides the whole operation fails so callers can tell nothing changed.
func (s *ScheduleService) CreateSlotsBulk(therapistID uint, inputs []SlotInput) ([]models.ScheduleSlot, error) {
	if err := s.requireTherapist(therapistID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no slots supplied", ErrBadRequest)
	}
	for _, in := range inputs {
		if err := s.validateSlotInput(in); err != nil {
			return nil, err
		}
	}

	var created []models.ScheduleSlot
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, in := range inputs {
			slot := models.ScheduleSlot{
				TherapistID:   therapistID,
				DayOfWeek:     in.DayOfWeek,
				Date:          in.Date,
				StartTime:     in.StartTime,
				EndTime:       in.EndTime,
				Status:        models.SlotAvailable,
				AudioFee:      in.AudioFee,
				VideoFee:      in.VideoFee,
				AudioVideoFee: in.AudioVideoFee,
				TextFee:       in.TextFee,
			}
			exists, err := s.slotExists(tx, slot)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := tx.Create(&slot).Error; err != nil {
				return err
			}
			created = append(created, slot)
		}
		if len(created) == 0 {
			return fmt.Errorf("%w: all supplied slots already exist", ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GenerateRange expands a date-range request and persists the result,
// skipping slots whose full UTC timestamp already exists for the therapist.
func (s *ScheduleService) GenerateRange(therapistID uint, req SlotGenerationRequest) ([]models.ScheduleSlot, error) {
	if err := s.requireTherapist(therapistID); err != nil {
		return nil, err
	}

	slots, err := GenerateSlots(therapistID, req)
	if err != nil {
		return nil, err
	}

	var created []models.ScheduleSlot
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, slot := range slots {
			exists, err := s.slotExists(tx, slot)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := tx.Create(&slot).Error; err != nil {
				return err
			}
			created = append(created, slot)
		}
		if len(created) == 0 {
			return fmt.Errorf("%w: no new slots in range", ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SlotFilter narrows slot listings.
type SlotFilter struct {
	TherapistID uint
	Status      models.SlotStatus
	DayOfWeek   models.DayOfWeek
	Page        int
	PerPage     int
}

// ListSlots returns slots matching the filter plus the unpaginated total.
func (s *ScheduleService) ListSlots(f SlotFilter) ([]models.ScheduleSlot, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}

	q := s.db.Model(&models.ScheduleSlot{})
	if f.TherapistID != 0 {
		q = q.Where("therapist_id = ?", f.TherapistID)
	}
	if f.Status != "" {
		if !f.Status.IsValid() {
			return nil, 0, fmt.Errorf("%w: unknown slot status %q", ErrBadRequest, f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.DayOfWeek != "" {
		if !f.DayOfWeek.IsValid() {
			return nil, 0, fmt.Errorf("%w: unknown day of week %q", ErrBadRequest, f.DayOfWeek)
		}
		q = q.Where("day_of_week = ?", f.DayOfWeek)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var slots []models.ScheduleSlot
	err := q.Order("date ASC, day_of_week ASC, start_time ASC").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&slots).Error
	if err != nil {
		return nil, 0, err
	}
	return slots, total, nil
}

// GetSlot fetches a single slot with its therapist preloaded.
func (s *ScheduleService) GetSlot(id uint) (*models.ScheduleSlot, error) {
	var slot models.ScheduleSlot
	if err := s.db.Preload("Therapist").First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: slot %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &slot, nil
}

// SlotsByTherapist lists all slots of one therapist.
func (s *ScheduleService) SlotsByTherapist(therapistID uint) ([]models.ScheduleSlot, error) {
	if err := s.requireTherapist(therapistID); err != nil {
		return nil, err
	}
	var slots []models.ScheduleSlot
	err := s.db.Where("therapist_id = ?", therapistID).
		Order("date ASC, day_of_week ASC, start_time ASC").
		Find(&slots).Error
	return slots, err
}

// SlotsByTherapistDateRange lists a therapist's dated slots within [from, to].
func (s *ScheduleService) SlotsByTherapistDateRange(therapistID uint, from, to time.Time) ([]models.ScheduleSlot, error) {
	if err := s.requireTherapist(therapistID); err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: start date is after end date", ErrBadRequest)
	}
	var slots []models.ScheduleSlot
	err := s.db.Where("therapist_id = ? AND date IS NOT NULL AND date BETWEEN ? AND ?",
		therapistID, from.UTC(), to.UTC()).
		Order("date ASC, start_time ASC").
		Find(&slots).Error
	return slots, err
}

// SlotUpdate carries the patchable slot fields; nil means unchanged.
type SlotUpdate struct {
	DayOfWeek     *models.DayOfWeek `json:"day_of_week"`
	StartTime     *string           `json:"start_time"`
	EndTime       *string           `json:"end_time"`
	AudioFee      *float64          `json:"audio_fee"`
	VideoFee      *float64          `json:"video_fee"`
	AudioVideoFee *float64          `json:"audio_video_fee"`
	TextFee       *float64          `json:"text_fee"`
}

// UpdateSlot applies a partial update, re-validating the time window.
func (s *ScheduleService) UpdateSlot(id uint, upd SlotUpdate) (*models.ScheduleSlot, error) {
	var slot models.ScheduleSlot
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&slot, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: slot %d", ErrNotFound, id)
			}
			return err
		}

		if upd.DayOfWeek != nil {
			if !upd.DayOfWeek.IsValid() {
				return fmt.Errorf("%w: unknown day of week %q", ErrBadRequest, *upd.DayOfWeek)
			}
			slot.DayOfWeek = *upd.DayOfWeek
		}
		if upd.StartTime != nil {
			slot.StartTime = *upd.StartTime
		}
		if upd.EndTime != nil {
			slot.EndTime = *upd.EndTime
		}
		start, err := ParseClock(slot.StartTime)
		if err != nil {
			return fmt.Errorf("%w: invalid start time %q", ErrBadRequest, slot.StartTime)
		}
		end, err := ParseClock(slot.EndTime)
		if err != nil {
			return fmt.Errorf("%w: invalid end time %q", ErrBadRequest, slot.EndTime)
		}
		if start >= end {
			return fmt.Errorf("%w: start time must be before end time", ErrBadRequest)
		}

		if upd.AudioFee != nil {
			slot.AudioFee = *upd.AudioFee
		}
		if upd.VideoFee != nil {
			slot.VideoFee = *upd.VideoFee
		}
		if upd.AudioVideoFee != nil {
			slot.AudioVideoFee = *upd.AudioVideoFee
		}
		if upd.TextFee != nil {
			slot.TextFee = *upd.TextFee
		}

		return tx.Save(&slot).Error
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// UpdateSlotStatus flips a slot's availability state directly.
func (s *ScheduleService) UpdateSlotStatus(id uint, status models.SlotStatus) (*models.ScheduleSlot, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown slot status %q", ErrBadRequest, status)
	}
	var slot models.ScheduleSlot
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&slot, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: slot %d", ErrNotFound, id)
			}
			return err
		}
		slot.Status = status
		return tx.Save(&slot).Error
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// DeleteSlot removes a slot outright.
func (s *ScheduleService) DeleteSlot(id uint) error {
	res := s.db.Unscoped().Delete(&models.ScheduleSlot{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}
	return nil
}

// ConsultancyFees reports the per-session-type fee schedule a new
// appointment with this therapist would default to: the fees of the
// therapist's most recently created slot, or zeros when none exist.
type ConsultancyFees struct {
	AudioFee      float64 `json:"audio_fee"`
	VideoFee      float64 `json:"video_fee"`
	AudioVideoFee float64 `json:"audio_video_fee"`
	TextFee       float64 `json:"text_fee"`
}

func (s *ScheduleService) GetConsultancyFees(therapistID uint) (*ConsultancyFees, error) {
	if err := s.requireTherapist(therapistID); err != nil {
		return nil, err
	}
	var slot models.ScheduleSlot
	err := s.db.Where("therapist_id = ?", therapistID).
		Order("created_at DESC").
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ConsultancyFees{}, nil
		}
		return nil, err
	}
	return &ConsultancyFees{
		AudioFee:      slot.AudioFee,
		VideoFee:      slot.VideoFee,
		AudioVideoFee: slot.AudioVideoFee,
		TextFee:       slot.TextFee,
	}, nil
}

func (s *ScheduleService) requireTherapist(id uint) error {
	var count int64
	if err := s.db.Model(&models.Therapist{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: therapist %d", ErrNotFound, id)
	}
	return nil
}
