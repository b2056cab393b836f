package utils

import (
	"strings"
	"time"

	"theracare_go/models"
)

// Compact representations used across APIs
type UserShort struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

type Sender struct {
	Type string `json:"type"` // "system" or "user"
	ID   *uint  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Recipient struct {
	Type string `json:"type"` // "user", "role", etc.
	ID   uint   `json:"id"`
}

type NotificationDTO struct {
	ID        uint       `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	UserID    uint       `json:"user_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	User      UserShort  `json:"user"`
	Sender    Sender     `json:"sender"`
	Recipient Recipient  `json:"recipient"`
}

// ToNotificationDTO maps a models.Notification to the compact DTO.
// Assumptions: caller has preloaded User and its profile when possible.
func ToNotificationDTO(n models.Notification) NotificationDTO {
	var us UserShort

	switch {
	case n.User.Therapist != nil:
		us = UserShort{
			ID:        n.User.ID,
			FirstName: n.User.Therapist.FirstName,
			LastName:  n.User.Therapist.LastName,
			Role:      string(n.User.Role),
		}
	case n.User.Individual != nil:
		us = UserShort{
			ID:        n.User.ID,
			FirstName: n.User.Individual.FirstName,
			LastName:  n.User.Individual.LastName,
			Role:      string(n.User.Role),
		}
	default:
		// Fallback: use user name or email local-part if no profile exists
		name := n.User.UserName
		if name == "" && n.User.Email != "" {
			parts := strings.Split(n.User.Email, "@")
			name = parts[0]
		}
		parts := strings.Fields(name)
		firstName := ""
		lastName := ""
		if len(parts) > 0 {
			firstName = parts[0]
		}
		if len(parts) > 1 {
			lastName = strings.Join(parts[1:], " ")
		}
		us = UserShort{ID: n.User.ID, FirstName: firstName, LastName: lastName, Role: string(n.User.Role)}
	}

	// Sender: models don't track created_by; default to system.
	sender := Sender{Type: "system", Name: "Notification Service"}

	recipient := Recipient{Type: "user", ID: n.UserID}

	return NotificationDTO{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		User:      us,
		Sender:    sender,
		Recipient: recipient,
	}
}
