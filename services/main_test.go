package services

import (
	"fmt"
	"testing"
	"time"

	"theracare_go/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Therapist{},
		&models.Individual{},
		&models.ScheduleSlot{},
		&models.Appointment{},
		&models.Note{},
		&models.GroupTherapy{},
		&models.Notification{},
		&models.ActivityLog{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedTherapist(t *testing.T, db *gorm.DB, email string) models.Therapist {
	t.Helper()
	user := models.User{Email: email, Password: "x", Role: models.RoleTherapist, Status: "active"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed therapist user: %v", err)
	}
	therapist := models.Therapist{UserID: user.ID, FirstName: "Test", LastName: "Therapist"}
	if err := db.Create(&therapist).Error; err != nil {
		t.Fatalf("seed therapist: %v", err)
	}
	return therapist
}

func seedIndividual(t *testing.T, db *gorm.DB, email string) models.Individual {
	t.Helper()
	user := models.User{Email: email, Password: "x", Role: models.RoleIndividual, Status: "active"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed individual user: %v", err)
	}
	individual := models.Individual{UserID: user.ID, FirstName: "Test", LastName: "Patient"}
	if err := db.Create(&individual).Error; err != nil {
		t.Fatalf("seed individual: %v", err)
	}
	return individual
}

func seedSlot(t *testing.T, db *gorm.DB, therapistID uint, day models.DayOfWeek, start, end string) models.ScheduleSlot {
	t.Helper()
	slot := models.ScheduleSlot{
		TherapistID:   therapistID,
		DayOfWeek:     day,
		StartTime:     start,
		EndTime:       end,
		Status:        models.SlotAvailable,
		AudioFee:      40,
		VideoFee:      55,
		AudioVideoFee: 60,
		TextFee:       25,
	}
	if err := db.Create(&slot).Error; err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	return slot
}

// nextWeekday returns the next occurrence of day at hour:minute UTC, always
// in the future.
func nextWeekday(day time.Weekday, hour, minute int) time.Time {
	now := time.Now().UTC()
	d := now.AddDate(0, 0, 1)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}
