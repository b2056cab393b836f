package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"theracare_go/models"
)

// ReminderScheduler sends appointment and group-session reminders on a cron
// schedule.
type ReminderScheduler struct {
	db   *gorm.DB
	cron *cron.Cron
}

func NewReminderScheduler(db *gorm.DB) *ReminderScheduler {
	return &ReminderScheduler{db: db, cron: cron.New()}
}

// Start registers the jobs and runs the cron loop in its own goroutine.
// Upcoming-session checks run every 15 minutes; the daily digest goes out at
// 07:00.
func (rs *ReminderScheduler) Start() error {
	if _, err := rs.cron.AddFunc("@every 15m", rs.CheckUpcomingAppointments); err != nil {
		return err
	}
	if _, err := rs.cron.AddFunc("0 7 * * *", rs.SendDailyDigest); err != nil {
		return err
	}
	rs.cron.Start()
	logrus.Info("Reminder scheduler started")
	return nil
}

// Stop halts the cron loop, waiting for running jobs.
func (rs *ReminderScheduler) Stop() {
	ctx := rs.cron.Stop()
	<-ctx.Done()
}

// CheckUpcomingAppointments notifies both parties of appointments starting
// in roughly 30 and 60 minutes.
func (rs *ReminderScheduler) CheckUpcomingAppointments() {
	now := time.Now().UTC()

	reminders := []struct {
		minutes int
		label   string
	}{
		{30, "30 minutes"},
		{60, "1 hour"},
	}

	for _, reminder := range reminders {
		target := now.Add(time.Duration(reminder.minutes) * time.Minute)

		// ±5 minute window around the target so 15-minute ticks don't miss.
		var appointments []models.Appointment
		err := rs.db.Preload("Therapist").Preload("Patient").
			Where("start_time BETWEEN ? AND ? AND status IN ?",
				target.Add(-5*time.Minute), target.Add(5*time.Minute),
				[]models.AppointmentStatus{models.AppointmentUpcoming, models.AppointmentRescheduled}).
			Find(&appointments).Error
		if err != nil {
			logrus.WithError(err).Error("Failed to check upcoming appointments")
			continue
		}

		for _, appointment := range appointments {
			if rs.reminderAlreadySent(appointment.ID, reminder.minutes) {
				continue
			}
			rs.sendUpcomingReminder(appointment, reminder.label)
		}
	}
}

func (rs *ReminderScheduler) reminderAlreadySent(appointmentID uint, minutes int) bool {
	var count int64
	err := rs.db.Model(&models.Notification{}).
		Where("title = ? AND message LIKE ? AND created_at > ?",
			"Upcoming Session",
			fmt.Sprintf("%%appointment #%d%%in %d minutes%%", appointmentID, minutes),
			time.Now().Add(-2*time.Hour)).
		Count(&count).Error
	if err != nil {
		return false
	}
	return count > 0
}

func (rs *ReminderScheduler) sendUpcomingReminder(appointment models.Appointment, label string) {
	minutes := 60
	if label == "30 minutes" {
		minutes = 30
	}
	message := fmt.Sprintf("Your %s appointment #%d will start in %d minutes at %s",
		appointment.SessionType, appointment.ID, minutes, appointment.StartTime.Format("15:04"))

	recipients := []uint{appointment.Therapist.UserID, appointment.Patient.UserID}
	for _, userID := range recipients {
		if userID == 0 {
			continue
		}
		notification := models.Notification{
			UserID:  userID,
			Title:   "Upcoming Session",
			Message: message,
			Type:    "info",
		}
		if err := rs.db.Create(&notification).Error; err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to create reminder notification")
		}
	}

	logrus.WithFields(logrus.Fields{
		"appointment_id": appointment.ID,
		"lead":           label,
	}).Info("Sent upcoming session reminders")
}

// SendDailyDigest sends each therapist and patient a summary of today's
// appointments and group sessions.
func (rs *ReminderScheduler) SendDailyDigest() {
	today := truncateToUTCDay(time.Now().UTC())
	tomorrow := today.AddDate(0, 0, 1)

	var appointments []models.Appointment
	err := rs.db.Preload("Therapist").Preload("Patient").
		Where("start_time >= ? AND start_time < ? AND status IN ?",
			today, tomorrow,
			[]models.AppointmentStatus{models.AppointmentUpcoming, models.AppointmentRescheduled}).
		Order("start_time ASC").
		Find(&appointments).Error
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch appointments for daily digest")
		return
	}

	perUser := make(map[uint][]models.Appointment)
	for _, appointment := range appointments {
		if id := appointment.Therapist.UserID; id != 0 {
			perUser[id] = append(perUser[id], appointment)
		}
		if id := appointment.Patient.UserID; id != 0 {
			perUser[id] = append(perUser[id], appointment)
		}
	}

	for userID, todays := range perUser {
		message := "Today's sessions:\n"
		for _, appointment := range todays {
			message += fmt.Sprintf("- %s session at %s\n",
				appointment.SessionType, appointment.StartTime.Format("15:04"))
		}
		notification := models.Notification{
			UserID:  userID,
			Title:   "Daily Schedule",
			Message: message,
			Type:    "info",
		}
		if err := rs.db.Create(&notification).Error; err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to create daily digest")
		}
	}

	rs.notifyGroupSessionsToday(today, tomorrow)
}

func (rs *ReminderScheduler) notifyGroupSessionsToday(from, to time.Time) {
	var sessions []models.GroupTherapy
	err := rs.db.Preload("Moderator").Preload("Participants").
		Where("date >= ? AND date < ?", from, to).
		Find(&sessions).Error
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch group sessions for daily digest")
		return
	}

	for _, session := range sessions {
		message := fmt.Sprintf("Group session '%s' is today at %s",
			session.Title, session.Date.Format("15:04"))

		recipients := []uint{session.Moderator.UserID}
		for _, participant := range session.Participants {
			recipients = append(recipients, participant.UserID)
		}
		for _, userID := range recipients {
			if userID == 0 {
				continue
			}
			notification := models.Notification{
				UserID:  userID,
				Title:   "Group Session Today",
				Message: message,
				Type:    "info",
			}
			if err := rs.db.Create(&notification).Error; err != nil {
				logrus.WithError(err).WithField("user_id", userID).Error("Failed to create group session reminder")
			}
		}
	}
}
