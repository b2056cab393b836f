package services

import (
	"errors"
	"fmt"
	"time"

	"theracare_go/models"

	"gorm.io/gorm"
)

// GroupTherapyService manages fixed-capacity group sessions: lifecycle,
// capacity-safe membership, and moderator assignment.
type GroupTherapyService struct {
	db *gorm.DB
}

func NewGroupTherapyService(db *gorm.DB) *GroupTherapyService {
	return &GroupTherapyService{db: db}
}

const (
	minGroupCapacity = 1
	maxGroupCapacity = 20
)

// GroupTherapyInput is the caller-supplied shape for session creation.
type GroupTherapyInput struct {
	Title               string    `json:"title" validate:"required"`
	NumberOfSessions    int       `json:"number_of_sessions"`
	DiscussionTopic     string    `json:"discussion_topic"`
	AboutTheSession     string    `json:"about_the_session"`
	Date                time.Time `json:"date" validate:"required"`
	SessionPrice        float64   `json:"session_price"`
	ParticipantCapacity int       `json:"participant_capacity" validate:"required"`
	ModeratorID         uint      `json:"moderator_id" validate:"required"`
}

// CreateSession registers a future group session with an empty participant
// set.
func (s *GroupTherapyService) CreateSession(in GroupTherapyInput) (*models.GroupTherapy, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	if in.ParticipantCapacity < minGroupCapacity || in.ParticipantCapacity > maxGroupCapacity {
		return nil, fmt.Errorf("%w: participant capacity must be between %d and %d", ErrBadRequest, minGroupCapacity, maxGroupCapacity)
	}
	if !in.Date.After(time.Now()) {
		return nil, fmt.Errorf("%w: session date must be in the future", ErrBadRequest)
	}
	if err := s.requireModerator(in.ModeratorID); err != nil {
		return nil, err
	}

	sessions := in.NumberOfSessions
	if sessions < 1 {
		sessions = 1
	}

	session := models.GroupTherapy{
		Title:               in.Title,
		NumberOfSessions:    sessions,
		DiscussionTopic:     in.DiscussionTopic,
		AboutTheSession:     in.AboutTheSession,
		Date:                in.Date.UTC(),
		SessionPrice:        in.SessionPrice,
		ParticipantCapacity: in.ParticipantCapacity,
		ModeratorID:         in.ModeratorID,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// GroupTherapyFilter narrows session listings. Results are always restricted
// to future sessions.
type GroupTherapyFilter struct {
	Topic         string
	ModeratorID   uint
	AvailableOnly bool
	Page          int
	PerPage       int
}

// ListSessions returns future sessions matching the filter plus the total.
func (s *GroupTherapyService) ListSessions(f GroupTherapyFilter) ([]models.GroupTherapy, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}

	q := s.db.Model(&models.GroupTherapy{}).Where("date > ?", time.Now().UTC())
	if f.Topic != "" {
		q = q.Where("discussion_topic = ?", f.Topic)
	}
	if f.ModeratorID != 0 {
		q = q.Where("moderator_id = ?", f.ModeratorID)
	}
	if f.AvailableOnly {
		// Filter on the live participant count so total and page boundaries
		// reflect open sessions, not all sessions.
		q = q.Where("participant_capacity > (SELECT COUNT(*) FROM group_therapy_participants WHERE group_therapy_id = group_therapies.id)")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.GroupTherapy
	err := q.Preload("Moderator").Preload("Participants").
		Order("date ASC").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// GetSession fetches one session with moderator and participants.
func (s *GroupTherapyService) GetSession(id uint) (*models.GroupTherapy, error) {
	var session models.GroupTherapy
	err := s.db.Preload("Moderator").Preload("Participants").First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: group session %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &session, nil
}

// GroupTherapyUpdate carries patchable session fields; nil means unchanged.
type GroupTherapyUpdate struct {
	Title               *string    `json:"title"`
	NumberOfSessions    *int       `json:"number_of_sessions"`
	DiscussionTopic     *string    `json:"discussion_topic"`
	AboutTheSession     *string    `json:"about_the_session"`
	Date                *time.Time `json:"date"`
	SessionPrice        *float64   `json:"session_price"`
	ParticipantCapacity *int       `json:"participant_capacity"`
	ModeratorID         *uint      `json:"moderator_id"`
}

// UpdateSession applies a partial update. Capacity can never drop below the
// current participant count.
func (s *GroupTherapyService) UpdateSession(id uint, upd GroupTherapyUpdate) (*models.GroupTherapy, error) {
	var session models.GroupTherapy
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Preload("Participants").First(&session, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group session %d", ErrNotFound, id)
			}
			return err
		}

		if upd.ModeratorID != nil && *upd.ModeratorID != session.ModeratorID {
			if err := s.requireModerator(*upd.ModeratorID); err != nil {
				return err
			}
			session.ModeratorID = *upd.ModeratorID
		}
		if upd.Date != nil {
			if !upd.Date.After(time.Now()) {
				return fmt.Errorf("%w: session date must be in the future", ErrBadRequest)
			}
			session.Date = upd.Date.UTC()
		}
		if upd.ParticipantCapacity != nil {
			capacity := *upd.ParticipantCapacity
			if capacity < minGroupCapacity || capacity > maxGroupCapacity {
				return fmt.Errorf("%w: participant capacity must be between %d and %d", ErrBadRequest, minGroupCapacity, maxGroupCapacity)
			}
			if capacity < session.CurrentParticipantCount() {
				return fmt.Errorf("%w: capacity cannot drop below current participant count %d", ErrBadRequest, session.CurrentParticipantCount())
			}
			session.ParticipantCapacity = capacity
		}
		if upd.Title != nil {
			session.Title = *upd.Title
		}
		if upd.NumberOfSessions != nil {
			session.NumberOfSessions = *upd.NumberOfSessions
		}
		if upd.DiscussionTopic != nil {
			session.DiscussionTopic = *upd.DiscussionTopic
		}
		if upd.AboutTheSession != nil {
			session.AboutTheSession = *upd.AboutTheSession
		}
		if upd.SessionPrice != nil {
			session.SessionPrice = *upd.SessionPrice
		}

		return tx.Omit("Participants").Save(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Join appends an individual to a session's participant set. The session row
// is locked so concurrent joins serialize and the loser sees the conflict.
func (s *GroupTherapyService) Join(sessionID, individualID uint) (*models.GroupTherapy, error) {
	var session models.GroupTherapy
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Preload("Participants").First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group session %d", ErrNotFound, sessionID)
			}
			return err
		}
		if !session.Date.After(time.Now()) {
			return fmt.Errorf("%w: session has already started", ErrBadRequest)
		}
		if session.IsFull() {
			return fmt.Errorf("%w: session is full", ErrConflict)
		}

		var individual models.Individual
		if err := tx.First(&individual, individualID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: individual %d", ErrNotFound, individualID)
			}
			return err
		}
		for _, p := range session.Participants {
			if p.ID == individualID {
				return fmt.Errorf("%w: individual %d already joined", ErrConflict, individualID)
			}
		}

		if err := tx.Model(&session).Association("Participants").Append(&individual); err != nil {
			return err
		}
		session.Participants = append(session.Participants, individual)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Leave removes an individual from a session's participant set.
func (s *GroupTherapyService) Leave(sessionID, individualID uint) (*models.GroupTherapy, error) {
	var session models.GroupTherapy
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Preload("Participants").First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group session %d", ErrNotFound, sessionID)
			}
			return err
		}
		if !session.Date.After(time.Now()) {
			return fmt.Errorf("%w: session has already started", ErrBadRequest)
		}

		idx := -1
		for i, p := range session.Participants {
			if p.ID == individualID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: individual %d is not a participant", ErrNotFound, individualID)
		}

		if err := tx.Model(&session).Association("Participants").Delete(&session.Participants[idx]); err != nil {
			return err
		}
		session.Participants = append(session.Participants[:idx], session.Participants[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session outright. Participant links go with it;
// the individuals themselves are untouched.
func (s *GroupTherapyService) DeleteSession(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var session models.GroupTherapy
		if err := tx.First(&session, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group session %d", ErrNotFound, id)
			}
			return err
		}
		if err := tx.Model(&session).Association("Participants").Clear(); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&session).Error
	})
}

func (s *GroupTherapyService) requireModerator(id uint) error {
	var count int64
	if err := s.db.Model(&models.Therapist{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: therapist %d", ErrNotFound, id)
	}
	return nil
}
