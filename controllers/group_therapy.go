package controllers

import (
	"fmt"

	"theracare_go/database"
	"theracare_go/middleware"
	"theracare_go/models"
	"theracare_go/services"
	notifsvc "theracare_go/services/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type GroupTherapyController struct {
	svc    *services.GroupTherapyService
	notifs *notifsvc.Service
}

func NewGroupTherapyController() *GroupTherapyController {
	return &GroupTherapyController{
		svc:    services.NewGroupTherapyService(database.DB),
		notifs: notifsvc.NewService(),
	}
}

// resolveIndividualID returns the explicit ID when given, otherwise the
// individual profile of the authenticated user.
func resolveIndividualID(c *fiber.Ctx, explicit uint) (uint, error) {
	if explicit != 0 {
		return explicit, nil
	}
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return 0, err
	}
	var individual models.Individual
	if err := database.DB.Where("user_id = ?", user.ID).First(&individual).Error; err != nil {
		return 0, err
	}
	return individual.ID, nil
}

func (gc *GroupTherapyController) notifyModerator(session *models.GroupTherapy, title, message, typ string) {
	var moderator models.Therapist
	if err := database.DB.First(&moderator, session.ModeratorID).Error; err != nil {
		return
	}
	n := notifsvc.QueuedWithData(title, message, typ, fiber.Map{
		"group_therapy_id": session.ID,
		"date":             session.Date,
	}, "normal")
	if err := gc.notifs.EnqueueOrCreate([]uint{moderator.UserID}, n); err != nil {
		logrus.WithError(err).Warn("Failed to enqueue group therapy notification")
	}
}

// CreateGroupSession registers a future group-therapy session
func (gc *GroupTherapyController) CreateGroupSession(c *fiber.Ctx) error {
	var in services.GroupTherapyInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := gc.svc.CreateSession(in)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "group_therapy", session.ID, fiber.Map{
		"title":        session.Title,
		"moderator_id": session.ModeratorID,
		"capacity":     session.ParticipantCapacity,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Group session created successfully",
		"group_therapy": session,
	})
}

// GetGroupSessions lists upcoming sessions with filters
func (gc *GroupTherapyController) GetGroupSessions(c *fiber.Ctx) error {
	filter := services.GroupTherapyFilter{
		Topic:         c.Query("topic"),
		ModeratorID:   queryUint(c, "moderator_id"),
		AvailableOnly: c.QueryBool("available", false),
		Page:          c.QueryInt("page", 1),
		PerPage:       c.QueryInt("limit", 20),
	}

	sessions, total, err := gc.svc.ListSessions(filter)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"group_therapies": sessions,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.PerPage,
			"total": total,
		},
	})
}

// GetGroupSession returns a single session with moderator and participants
func (gc *GroupTherapyController) GetGroupSession(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group session ID"})
	}

	session, err := gc.svc.GetSession(id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"group_therapy":             session,
		"current_participant_count": session.CurrentParticipantCount(),
		"is_full":                   session.IsFull(),
	})
}

// UpdateGroupSession applies a partial update, guarding capacity
func (gc *GroupTherapyController) UpdateGroupSession(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group session ID"})
	}

	var upd services.GroupTherapyUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := gc.svc.UpdateSession(id, upd)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "group_therapy", session.ID, nil)

	return c.JSON(fiber.Map{
		"message":       "Group session updated successfully",
		"group_therapy": session,
	})
}

// JoinGroupSession adds an individual to a session's participant set
func (gc *GroupTherapyController) JoinGroupSession(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group session ID"})
	}

	var req struct {
		IndividualID uint `json:"individual_id"`
	}
	// Body is optional: default to the caller's own individual profile
	_ = c.BodyParser(&req)

	individualID, err := resolveIndividualID(c, req.IndividualID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Individual not resolved"})
	}

	session, err := gc.svc.Join(id, individualID)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "group_therapy", session.ID, fiber.Map{
		"action":        "join",
		"individual_id": individualID,
	})

	gc.notifyModerator(session, "Participant joined",
		fmt.Sprintf("A participant joined %q (%d/%d seats taken)",
			session.Title, session.CurrentParticipantCount(), session.ParticipantCapacity),
		"info")

	return c.JSON(fiber.Map{
		"message":                   "Joined group session successfully",
		"group_therapy":             session,
		"current_participant_count": session.CurrentParticipantCount(),
		"is_full":                   session.IsFull(),
	})
}

// LeaveGroupSession removes an individual from a session's participant set
func (gc *GroupTherapyController) LeaveGroupSession(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group session ID"})
	}
	individualID, err := parseIDParam(c, "individualId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid individual ID"})
	}

	session, err := gc.svc.Leave(id, individualID)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "group_therapy", session.ID, fiber.Map{
		"action":        "leave",
		"individual_id": individualID,
	})

	gc.notifyModerator(session, "Participant left",
		fmt.Sprintf("A participant left %q (%d/%d seats taken)",
			session.Title, session.CurrentParticipantCount(), session.ParticipantCapacity),
		"info")

	return c.JSON(fiber.Map{
		"message":                   "Left group session successfully",
		"group_therapy":             session,
		"current_participant_count": session.CurrentParticipantCount(),
	})
}

// DeleteGroupSession removes a session and its membership rows
func (gc *GroupTherapyController) DeleteGroupSession(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group session ID"})
	}

	if err := gc.svc.DeleteSession(id); err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "DELETE", "group_therapy", id, nil)

	return c.JSON(fiber.Map{"message": "Group session deleted successfully"})
}
