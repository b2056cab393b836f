package controllers

import (
	"time"

	"theracare_go/database"
	"theracare_go/middleware"
	"theracare_go/models"
	"theracare_go/services"

	"github.com/gofiber/fiber/v2"
)

type ScheduleController struct {
	svc *services.ScheduleService
}

func NewScheduleController() *ScheduleController {
	return &ScheduleController{svc: services.NewScheduleService(database.DB)}
}

// resolveTherapistID returns the explicit ID when given, otherwise the
// therapist profile of the authenticated user.
func resolveTherapistID(c *fiber.Ctx, explicit uint) (uint, error) {
	if explicit != 0 {
		return explicit, nil
	}
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return 0, err
	}
	var therapist models.Therapist
	if err := database.DB.Where("user_id = ?", user.ID).First(&therapist).Error; err != nil {
		return 0, err
	}
	return therapist.ID, nil
}

// CreateSchedule creates a single availability slot
func (sc *ScheduleController) CreateSchedule(c *fiber.Ctx) error {
	var req struct {
		TherapistID uint `json:"therapist_id"`
		services.SlotInput
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	therapistID, err := resolveTherapistID(c, req.TherapistID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Therapist not resolved"})
	}

	slot, err := sc.svc.CreateSlot(therapistID, req.SlotInput)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "schedules", slot.ID, fiber.Map{
		"therapist_id": therapistID,
		"day_of_week":  slot.DayOfWeek,
		"start_time":   slot.StartTime,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Slot created successfully",
		"schedule": slot,
	})
}

// CreateSchedulesBulk creates several slots at once, skipping duplicates
func (sc *ScheduleController) CreateSchedulesBulk(c *fiber.Ctx) error {
	var req struct {
		TherapistID uint                 `json:"therapist_id"`
		Slots       []services.SlotInput `json:"slots"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req.Slots) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No slots provided"})
	}

	therapistID, err := resolveTherapistID(c, req.TherapistID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Therapist not resolved"})
	}

	created, err := sc.svc.CreateSlotsBulk(therapistID, req.Slots)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "schedules", 0, fiber.Map{
		"therapist_id": therapistID,
		"requested":    len(req.Slots),
		"created":      len(created),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Slots created successfully",
		"schedules": created,
		"created":   len(created),
		"skipped":   len(req.Slots) - len(created),
	})
}

// CreateSchedulesRange expands a date range into slots and persists the
// non-colliding ones
func (sc *ScheduleController) CreateSchedulesRange(c *fiber.Ctx) error {
	var req struct {
		TherapistID  uint               `json:"therapist_id"`
		StartDate    string             `json:"start_date"` // "2006-01-02"
		EndDate      string             `json:"end_date"`
		Weekdays     []models.DayOfWeek `json:"weekdays"`
		StartTime    string             `json:"start_time"` // "HH:MM"
		EndTime      string             `json:"end_time"`
		SlotDuration int                `json:"slot_duration"` // minutes
		Gap          int                `json:"gap_between_slots"`
		services.SlotFees
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start_date, expected YYYY-MM-DD"})
	}
	endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, time.UTC)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid end_date, expected YYYY-MM-DD"})
	}

	therapistID, err := resolveTherapistID(c, req.TherapistID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Therapist not resolved"})
	}

	created, err := sc.svc.GenerateRange(therapistID, services.SlotGenerationRequest{
		StartDate:    startDate,
		EndDate:      endDate,
		Weekdays:     req.Weekdays,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		SlotDuration: req.SlotDuration,
		Gap:          req.Gap,
		Fees:         req.SlotFees,
	})
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "schedules", 0, fiber.Map{
		"therapist_id": therapistID,
		"start_date":   req.StartDate,
		"end_date":     req.EndDate,
		"created":      len(created),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Slots generated successfully",
		"schedules": created,
		"created":   len(created),
	})
}

// GetSchedules lists slots with optional filters
func (sc *ScheduleController) GetSchedules(c *fiber.Ctx) error {
	filter := services.SlotFilter{
		TherapistID: queryUint(c, "therapist_id"),
		Status:      models.SlotStatus(c.Query("status")),
		DayOfWeek:   models.DayOfWeek(c.Query("day_of_week")),
		Page:        c.QueryInt("page", 1),
		PerPage:     c.QueryInt("limit", 20),
	}

	slots, total, err := sc.svc.ListSlots(filter)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"schedules": slots,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.PerPage,
			"total": total,
		},
	})
}

// GetSchedule returns a single slot with its therapist
func (sc *ScheduleController) GetSchedule(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}

	slot, err := sc.svc.GetSlot(id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"schedule": slot})
}

// GetTherapistSchedules returns all slots of one therapist
func (sc *ScheduleController) GetTherapistSchedules(c *fiber.Ctx) error {
	therapistID, err := parseIDParam(c, "therapistId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid therapist ID"})
	}

	slots, err := sc.svc.SlotsByTherapist(therapistID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"schedules": slots})
}

// GetTherapistSchedulesByDateRange returns dated slots within [start, end]
func (sc *ScheduleController) GetTherapistSchedulesByDateRange(c *fiber.Ctx) error {
	therapistID, err := parseIDParam(c, "therapistId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid therapist ID"})
	}

	start, err := time.ParseInLocation("2006-01-02", c.Query("start_date"), time.UTC)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start_date, expected YYYY-MM-DD"})
	}
	end, err := time.ParseInLocation("2006-01-02", c.Query("end_date"), time.UTC)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid end_date, expected YYYY-MM-DD"})
	}

	slots, err := sc.svc.SlotsByTherapistDateRange(therapistID, start, end.Add(24*time.Hour))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"schedules": slots})
}

// GetConsultancyFees returns the fee schedule of a therapist's latest slot
func (sc *ScheduleController) GetConsultancyFees(c *fiber.Ctx) error {
	therapistID, err := parseIDParam(c, "therapistId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid therapist ID"})
	}

	fees, err := sc.svc.GetConsultancyFees(therapistID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"fees": fees})
}

// UpdateSchedule applies a partial slot update
func (sc *ScheduleController) UpdateSchedule(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}

	var upd services.SlotUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	slot, err := sc.svc.UpdateSlot(id, upd)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "schedules", slot.ID, nil)

	return c.JSON(fiber.Map{
		"message":  "Slot updated successfully",
		"schedule": slot,
	})
}

// UpdateScheduleStatus sets a slot's status
func (sc *ScheduleController) UpdateScheduleStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}

	var req struct {
		Status models.SlotStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	slot, err := sc.svc.UpdateSlotStatus(id, req.Status)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "schedules", slot.ID, fiber.Map{
		"status": slot.Status,
	})

	return c.JSON(fiber.Map{
		"message":  "Slot status updated successfully",
		"schedule": slot,
	})
}

// DeleteSchedule removes a slot
func (sc *ScheduleController) DeleteSchedule(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}

	if err := sc.svc.DeleteSlot(id); err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "DELETE", "schedules", id, nil)

	return c.JSON(fiber.Map{"message": "Slot deleted successfully"})
}
