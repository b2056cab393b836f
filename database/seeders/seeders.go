package seeders

import (
	"encoding/json"
	"log"
	"theracare_go/database"
	"theracare_go/models"
	"theracare_go/utils"
	"time"
)

// SeedAll runs all seeders
func SeedAll() {
	log.Println("Starting database seeding...")

	SeedCompanies()
	SeedUsers()
	SeedTherapists()
	SeedIndividuals()
	SeedScheduleSlots()

	log.Println("Database seeding completed successfully!")
}

// SeedCompanies seeds the companies table
func SeedCompanies() {
	var count int64
	database.DB.Model(&models.Company{}).Count(&count)
	if count > 0 {
		log.Println("Companies already seeded, skipping...")
		return
	}

	companies := []models.Company{
		{
			BaseModel: models.BaseModel{ID: 1, CreatedAt: time.Date(2025, 8, 15, 2, 28, 56, 0, time.UTC)},
			Name:      "Northwind Logistics",
			Website:   "https://northwind.example.com",
			Industry:  "Logistics",
			Address:   "120 Harbor Way, Rotterdam",
		},
	}

	for _, company := range companies {
		if err := database.DB.Create(&company).Error; err != nil {
			log.Printf("Error seeding company %s: %v", company.Name, err)
		}
	}

	log.Println("Companies seeded successfully")
}

// SeedUsers seeds the users table
func SeedUsers() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	// Hash the default password
	hashedPassword, _ := utils.HashPassword("password123")

	users := []models.User{
		{
			BaseModel:     models.BaseModel{ID: 1, CreatedAt: time.Date(2025, 8, 15, 2, 28, 56, 0, time.UTC)},
			Email:         "admin@theracare.app",
			Password:      hashedPassword,
			UserName:      "admin",
			Phone:         "0812345678",
			Role:          models.RoleAdmin,
			Status:        "active",
			EmailVerified: true,
		},
		{
			BaseModel:     models.BaseModel{ID: 2, CreatedAt: time.Date(2025, 8, 15, 2, 28, 56, 0, time.UTC)},
			Email:         "sarah.osei@theracare.app",
			Password:      hashedPassword,
			UserName:      "sarah_osei",
			Phone:         "0812345679",
			Role:          models.RoleTherapist,
			Status:        "active",
			EmailVerified: true,
		},
		{
			BaseModel:     models.BaseModel{ID: 3, CreatedAt: time.Date(2025, 8, 15, 2, 28, 56, 0, time.UTC)},
			Email:         "alice.wilson@gmail.com",
			Password:      hashedPassword,
			UserName:      "alice_w",
			Phone:         "0891234567",
			Role:          models.RoleIndividual,
			Status:        "active",
			EmailVerified: true,
		},
	}

	for _, user := range users {
		if err := database.DB.Create(&user).Error; err != nil {
			log.Printf("Error seeding user %s: %v", user.Email, err)
		}
	}

	log.Println("Users seeded successfully")
}

// SeedTherapists seeds the therapists table
func SeedTherapists() {
	var count int64
	database.DB.Model(&models.Therapist{}).Count(&count)
	if count > 0 {
		log.Println("Therapists already seeded, skipping...")
		return
	}

	expertise, _ := json.Marshal([]string{"CBT", "Trauma", "Anxiety"})

	therapists := []models.Therapist{
		{
			BaseModel:      models.BaseModel{ID: 1, CreatedAt: time.Date(2025, 8, 15, 2, 28, 57, 0, time.UTC)},
			UserID:         2,
			FirstName:      "Sarah",
			LastName:       "Osei",
			Age:            38,
			GenderIdentity: "female",
			Nationality:    "Ghanaian",
			Title:          "Clinical Psychologist",
			Specialization: "Cognitive Behavioural Therapy",
			Expertise:      expertise,
			Verified:       true,
		},
	}

	for _, therapist := range therapists {
		if err := database.DB.Create(&therapist).Error; err != nil {
			log.Printf("Error seeding therapist with UserID %d: %v", therapist.UserID, err)
		}
	}

	log.Println("Therapists seeded successfully")
}

// SeedIndividuals seeds the individuals table
func SeedIndividuals() {
	var count int64
	database.DB.Model(&models.Individual{}).Count(&count)
	if count > 0 {
		log.Println("Individuals already seeded, skipping...")
		return
	}

	reasons, _ := json.Marshal([]string{"Stress", "Work-life balance"})

	individuals := []models.Individual{
		{
			BaseModel:        models.BaseModel{ID: 1, CreatedAt: time.Date(2025, 8, 15, 2, 28, 57, 0, time.UTC)},
			UserID:           3,
			FirstName:        "Alice",
			LastName:         "Wilson",
			Age:              25,
			GenderIdentity:   "female",
			ReasonForTherapy: reasons,
		},
	}

	for _, individual := range individuals {
		if err := database.DB.Create(&individual).Error; err != nil {
			log.Printf("Error seeding individual with UserID %d: %v", individual.UserID, err)
		}
	}

	log.Println("Individuals seeded successfully")
}

// SeedScheduleSlots seeds a small weekly availability set for the demo therapist
func SeedScheduleSlots() {
	var count int64
	database.DB.Model(&models.ScheduleSlot{}).Count(&count)
	if count > 0 {
		log.Println("Schedule slots already seeded, skipping...")
		return
	}

	slots := []models.ScheduleSlot{
		{
			BaseModel:     models.BaseModel{ID: 1, CreatedAt: time.Date(2025, 8, 15, 2, 28, 58, 0, time.UTC)},
			TherapistID:   1,
			DayOfWeek:     models.Monday,
			StartTime:     "09:00",
			EndTime:       "10:00",
			Status:        models.SlotAvailable,
			AudioFee:      40,
			VideoFee:      55,
			AudioVideoFee: 60,
			TextFee:       25,
		},
		{
			BaseModel:     models.BaseModel{ID: 2, CreatedAt: time.Date(2025, 8, 15, 2, 28, 58, 0, time.UTC)},
			TherapistID:   1,
			DayOfWeek:     models.Monday,
			StartTime:     "10:00",
			EndTime:       "11:00",
			Status:        models.SlotAvailable,
			AudioFee:      40,
			VideoFee:      55,
			AudioVideoFee: 60,
			TextFee:       25,
		},
		{
			BaseModel:     models.BaseModel{ID: 3, CreatedAt: time.Date(2025, 8, 15, 2, 28, 58, 0, time.UTC)},
			TherapistID:   1,
			DayOfWeek:     models.Wednesday,
			StartTime:     "14:00",
			EndTime:       "15:00",
			Status:        models.SlotAvailable,
			AudioFee:      40,
			VideoFee:      55,
			AudioVideoFee: 60,
			TextFee:       25,
		},
	}

	for _, slot := range slots {
		if err := database.DB.Create(&slot).Error; err != nil {
			log.Printf("Error seeding slot %s %s: %v", slot.DayOfWeek, slot.StartTime, err)
		}
	}

	log.Println("Schedule slots seeded successfully")
}
