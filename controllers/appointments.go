package controllers

import (
	"fmt"
	"time"

	"theracare_go/database"
	"theracare_go/middleware"
	"theracare_go/models"
	"theracare_go/services"
	notifsvc "theracare_go/services/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

type AppointmentController struct {
	svc    *services.AppointmentService
	notifs *notifsvc.Service
}

func NewAppointmentController() *AppointmentController {
	return &AppointmentController{
		svc:    services.NewAppointmentService(database.DB),
		notifs: notifsvc.NewService(),
	}
}

// notifyParties sends a notification to the therapist and patient user
// accounts behind an appointment. Failures are logged, never surfaced.
func (ac *AppointmentController) notifyParties(appointment *models.Appointment, title, message, typ string) {
	var therapist models.Therapist
	var patient models.Individual
	var userIDs []uint
	if err := database.DB.First(&therapist, appointment.TherapistID).Error; err == nil {
		userIDs = append(userIDs, therapist.UserID)
	}
	if err := database.DB.First(&patient, appointment.PatientID).Error; err == nil {
		userIDs = append(userIDs, patient.UserID)
	}
	if len(userIDs) == 0 {
		return
	}
	n := notifsvc.QueuedWithData(title, message, typ, fiber.Map{
		"appointment_id": appointment.ID,
		"start_time":     appointment.StartTime,
	}, "normal", "popup")
	if err := ac.notifs.EnqueueOrCreate(userIDs, n); err != nil {
		logrus.WithError(err).Warn("Failed to enqueue appointment notification")
	}
}

// CreateAppointment books a one-on-one session
func (ac *AppointmentController) CreateAppointment(c *fiber.Ctx) error {
	var in services.AppointmentInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	appointment, slotLinked, err := ac.svc.CreateAppointment(in)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "appointments", appointment.ID, fiber.Map{
		"therapist_id": appointment.TherapistID,
		"patient_id":   appointment.PatientID,
		"slot_linked":  slotLinked,
	})

	ac.notifyParties(appointment, "Appointment booked",
		fmt.Sprintf("Appointment #%d booked for %s", appointment.ID,
			appointment.StartTime.UTC().Format("Mon, 02 Jan 2006 15:04 MST")),
		"success")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Appointment created successfully",
		"appointment": appointment,
		"slot_linked": slotLinked,
	})
}

// GetAppointments lists appointments with optional filters
func (ac *AppointmentController) GetAppointments(c *fiber.Ctx) error {
	filter := services.AppointmentFilter{
		Status:      models.AppointmentStatus(c.Query("status")),
		TherapistID: queryUint(c, "therapist_id"),
		PatientID:   queryUint(c, "patient_id"),
		Page:        c.QueryInt("page", 1),
		PerPage:     c.QueryInt("limit", 20),
	}
	if v := c.Query("start_date"); v != "" {
		if d, err := time.ParseInLocation("2006-01-02", v, time.UTC); err == nil {
			filter.StartDate = &d
		}
	}
	if v := c.Query("end_date"); v != "" {
		if d, err := time.ParseInLocation("2006-01-02", v, time.UTC); err == nil {
			end := d.Add(24 * time.Hour)
			filter.EndDate = &end
		}
	}

	appointments, total, err := ac.svc.ListAppointments(filter)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"appointments": appointments,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.PerPage,
			"total": total,
		},
	})
}

// GetAppointmentSummary returns dashboard counts for a therapist or patient
func (ac *AppointmentController) GetAppointmentSummary(c *fiber.Ctx) error {
	userID := queryUint(c, "user_id")
	userType := c.Query("user_type", "therapist")
	if userID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	summary, err := ac.svc.Summary(userID, userType)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"summary": summary})
}

// GetWeeklySchedule returns a 7-day bucketed view of a user's appointments
func (ac *AppointmentController) GetWeeklySchedule(c *fiber.Ctx) error {
	userID, err := parseIDParam(c, "userId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	userType := c.Query("user_type", "therapist")

	var weekStart *time.Time
	if v := c.Query("start_date"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start_date, expected YYYY-MM-DD"})
		}
		weekStart = &d
	}

	week, err := ac.svc.WeeklySchedule(userID, userType, weekStart)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"weekly_schedule": week})
}

// ExportAppointments streams an XLSX report of appointments
func (ac *AppointmentController) ExportAppointments(c *fiber.Ctx) error {
	filter := services.AppointmentFilter{
		Status:      models.AppointmentStatus(c.Query("status")),
		TherapistID: queryUint(c, "therapist_id"),
		PatientID:   queryUint(c, "patient_id"),
		Page:        1,
		PerPage:     100,
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{"ID", "Start Time", "End Time", "Session Type", "Status",
		"Therapist", "Patient", "Fee", "Duration (min)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for {
		appointments, _, err := ac.svc.ListAppointments(filter)
		if err != nil {
			return serviceError(c, err)
		}
		for _, a := range appointments {
			duration := 0
			if a.Duration != nil {
				duration = *a.Duration
			}
			values := []interface{}{
				a.ID,
				a.StartTime.UTC().Format("2006-01-02 15:04"),
				a.EndTime.UTC().Format("2006-01-02 15:04"),
				string(a.SessionType),
				string(a.Status),
				fmt.Sprintf("%s %s", a.Therapist.FirstName, a.Therapist.LastName),
				fmt.Sprintf("%s %s", a.Patient.FirstName, a.Patient.LastName),
				a.ConsultancyFee,
				duration,
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				f.SetCellValue(sheet, cell, v)
			}
			row++
		}
		if len(appointments) < filter.PerPage {
			break
		}
		filter.Page++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		logrus.WithError(err).Error("Failed to build appointments export")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build export"})
	}

	filename := fmt.Sprintf("appointments_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(buf.Bytes())
}

// GetAppointment returns one appointment with therapist, patient and notes
func (ac *AppointmentController) GetAppointment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	appointment, err := ac.svc.GetAppointment(id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"appointment": appointment})
}

// UpdateAppointment applies a partial update (no status transitions here)
func (ac *AppointmentController) UpdateAppointment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	var upd services.AppointmentUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	appointment, err := ac.svc.UpdateAppointment(id, upd)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", appointment.ID, nil)

	return c.JSON(fiber.Map{
		"message":     "Appointment updated successfully",
		"appointment": appointment,
	})
}

// CancelAppointment cancels an appointment and frees its slot
func (ac *AppointmentController) CancelAppointment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	appointment, err := ac.svc.CancelAppointment(id)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", appointment.ID, fiber.Map{
		"status": appointment.Status,
	})

	ac.notifyParties(appointment, "Appointment cancelled",
		fmt.Sprintf("Appointment #%d has been cancelled", appointment.ID), "warning")

	return c.JSON(fiber.Map{
		"message":     "Appointment cancelled successfully",
		"appointment": appointment,
	})
}

// CompleteAppointment marks an appointment completed
func (ac *AppointmentController) CompleteAppointment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	appointment, err := ac.svc.CompleteAppointment(id)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", appointment.ID, fiber.Map{
		"status": appointment.Status,
	})

	return c.JSON(fiber.Map{
		"message":     "Appointment completed successfully",
		"appointment": appointment,
	})
}

// RescheduleAppointment moves an appointment to a new time window
func (ac *AppointmentController) RescheduleAppointment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	var req struct {
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	appointment, slotLinked, err := ac.svc.RescheduleAppointment(id, req.StartTime, req.EndTime)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", appointment.ID, fiber.Map{
		"status":      appointment.Status,
		"start_time":  appointment.StartTime,
		"slot_linked": slotLinked,
	})

	ac.notifyParties(appointment, "Appointment rescheduled",
		fmt.Sprintf("Appointment #%d moved to %s", appointment.ID,
			appointment.StartTime.UTC().Format("Mon, 02 Jan 2006 15:04 MST")),
		"info")

	return c.JSON(fiber.Map{
		"message":     "Appointment rescheduled successfully",
		"appointment": appointment,
		"slot_linked": slotLinked,
	})
}

// DeleteAppointment hard-deletes an appointment, its notes, and frees its slot
func (ac *AppointmentController) DeleteAppointment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	if err := ac.svc.RemoveAppointment(id); err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "DELETE", "appointments", id, nil)

	return c.JSON(fiber.Map{"message": "Appointment deleted successfully"})
}

// AddNote appends a therapist note to an appointment
func (ac *AppointmentController) AddNote(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	var req struct {
		TherapistID uint `json:"therapist_id"`
		services.NoteInput
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	therapistID, err := resolveTherapistID(c, req.TherapistID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Therapist not resolved"})
	}

	note, err := ac.svc.AddNote(id, therapistID, req.NoteInput)
	if err != nil {
		return serviceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "notes", note.ID, fiber.Map{
		"appointment_id": id,
		"type":           note.Type,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Note added successfully",
		"note":    note,
	})
}

// GetNotes lists an appointment's notes, newest first
func (ac *AppointmentController) GetNotes(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	notes, err := ac.svc.GetNotes(id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"notes": notes})
}
