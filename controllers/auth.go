package controllers

import (
	"strings"
	"time"

	"theracare_go/config"
	"theracare_go/database"
	"theracare_go/middleware"
	"theracare_go/models"
	"theracare_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthController struct{}

// issueOTP stores a fresh verification code on the user. Actual email
// delivery is handled outside this service; the issued code is only logged.
func issueOTP(tx *gorm.DB, user *models.User) error {
	otp, err := utils.GenerateOTP(6)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(config.AppConfig.OTPExpiresIn)
	if err := tx.Model(user).Updates(map[string]interface{}{
		"otp":            otp,
		"otp_expires_at": expiresAt,
	}).Error; err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"email":      user.Email,
		"expires_at": expiresAt,
	}).Info("Verification code issued")
	return nil
}

func emailTaken(email string) bool {
	var count int64
	database.DB.Model(&models.User{}).Where("email = ?", email).Count(&count)
	return count > 0
}

type signupBase struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	UserName string `json:"user_name"`
	Phone    string `json:"phone"`
}

func (sb *signupBase) normalize() {
	sb.Email = strings.ToLower(strings.TrimSpace(sb.Email))
}

func (sb *signupBase) validate(c *fiber.Ctx) error {
	if sb.Email == "" || !strings.Contains(sb.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid email is required"})
	}
	if len(sb.Password) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Password must be at least 6 characters"})
	}
	if emailTaken(sb.Email) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already registered"})
	}
	return nil
}

func (sb *signupBase) buildUser(role models.UserRole) (*models.User, error) {
	hashed, err := utils.HashPassword(sb.Password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Email:    sb.Email,
		Password: hashed,
		UserName: sb.UserName,
		Phone:    sb.Phone,
		Role:     role,
		Status:   "active",
	}, nil
}

// SignupIndividual registers a new individual (patient) account
func (ac *AuthController) SignupIndividual(c *fiber.Ctx) error {
	var req struct {
		signupBase
		FirstName           string      `json:"first_name"`
		LastName            string      `json:"last_name"`
		Age                 int         `json:"age"`
		GenderIdentity      string      `json:"gender_identity"`
		TherapistPreference models.JSON `json:"therapist_preference"`
		ReasonForTherapy    models.JSON `json:"reason_for_therapy"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.normalize()
	if resp := req.validate(c); resp != nil {
		return resp
	}

	user, err := req.buildUser(models.RoleIndividual)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		individual := models.Individual{
			UserID:              user.ID,
			FirstName:           req.FirstName,
			LastName:            req.LastName,
			Age:                 req.Age,
			GenderIdentity:      req.GenderIdentity,
			TherapistPreference: req.TherapistPreference,
			ReasonForTherapy:    req.ReasonForTherapy,
		}
		if err := tx.Create(&individual).Error; err != nil {
			return err
		}
		return issueOTP(tx, user)
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create account"})
	}

	middleware.LogActivity(c, "CREATE", "users", user.ID, fiber.Map{
		"email": user.Email,
		"role":  user.Role,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created. A verification code has been sent to your email",
		"user_id": user.ID,
	})
}

// SignupTherapist registers a new therapist account with its profile
func (ac *AuthController) SignupTherapist(c *fiber.Ctx) error {
	var req struct {
		signupBase
		FirstName      string      `json:"first_name"`
		LastName       string      `json:"last_name"`
		Age            int         `json:"age"`
		GenderIdentity string      `json:"gender_identity"`
		Nationality    string      `json:"nationality"`
		Title          string      `json:"title"`
		Specialization string      `json:"specialization"`
		Expertise      models.JSON `json:"expertise"`
		CareerJourney  string      `json:"career_journey"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.normalize()
	if resp := req.validate(c); resp != nil {
		return resp
	}

	user, err := req.buildUser(models.RoleTherapist)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		therapist := models.Therapist{
			UserID:         user.ID,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			Age:            req.Age,
			GenderIdentity: req.GenderIdentity,
			Nationality:    req.Nationality,
			Title:          req.Title,
			Specialization: req.Specialization,
			Expertise:      req.Expertise,
			CareerJourney:  req.CareerJourney,
		}
		if err := tx.Create(&therapist).Error; err != nil {
			return err
		}
		return issueOTP(tx, user)
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create account"})
	}

	middleware.LogActivity(c, "CREATE", "users", user.ID, fiber.Map{
		"email": user.Email,
		"role":  user.Role,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created. A verification code has been sent to your email",
		"user_id": user.ID,
	})
}

// SignupCompany registers a company account together with its company record
func (ac *AuthController) SignupCompany(c *fiber.Ctx) error {
	var req struct {
		signupBase
		CompanyName string `json:"company_name"`
		Website     string `json:"website"`
		Industry    string `json:"industry"`
		Address     string `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.normalize()
	if resp := req.validate(c); resp != nil {
		return resp
	}
	if req.CompanyName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "company_name is required"})
	}

	user, err := req.buildUser(models.RoleCompany)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		company := models.Company{
			Name:     req.CompanyName,
			Website:  req.Website,
			Industry: req.Industry,
			Address:  req.Address,
		}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		user.CompanyID = &company.ID
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return issueOTP(tx, user)
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create account"})
	}

	middleware.LogActivity(c, "CREATE", "users", user.ID, fiber.Map{
		"email": user.Email,
		"role":  user.Role,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created. A verification code has been sent to your email",
		"user_id": user.ID,
	})
}

// VerifyOTP confirms the email verification code
func (ac *AuthController) VerifyOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}
	if user.EmailVerified {
		return c.JSON(fiber.Map{"message": "Email already verified"})
	}
	if user.OTP == "" || user.OTP != req.OTP {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid verification code"})
	}
	if user.OTPExpiresAt == nil || time.Now().After(*user.OTPExpiresAt) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Verification code expired"})
	}

	if err := database.DB.Model(&user).Updates(map[string]interface{}{
		"email_verified": true,
		"otp":            "",
		"otp_expires_at": nil,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to verify email"})
	}

	middleware.LogActivity(c, "UPDATE", "users", user.ID, fiber.Map{
		"action": "email_verified",
	})

	return c.JSON(fiber.Map{"message": "Email verified successfully"})
}

// ResendOTP issues a fresh verification code
func (ac *AuthController) ResendOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}
	if user.EmailVerified {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email already verified"})
	}

	if err := issueOTP(database.DB, &user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue verification code"})
	}

	return c.JSON(fiber.Map{"message": "A new verification code has been sent to your email"})
}

// Login authenticates a verified user and returns a JWT token
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := database.DB.Where("email = ? AND status = ?", email, "active").First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}
	if err := utils.CheckPassword(req.Password, user.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}
	if !user.EmailVerified {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Email not verified"})
	}

	token, err := middleware.GenerateToken(&user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	database.DB.Preload("Therapist").Preload("Individual").Preload("Company").First(&user, user.ID)

	middleware.LogActivity(c, "LOGIN", "auth", user.ID, fiber.Map{
		"email": user.Email,
		"role":  user.Role,
	})

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// Logout invalidates the current JWT via the Redis blacklist
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid authorization header"})
	}

	expiresAt := time.Now().Add(config.AppConfig.JWTExpiresIn)
	if claims, err := middleware.GetCurrentClaims(c); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	middleware.BlacklistToken(tokenString, expiresAt)

	if user, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(c, "LOGOUT", "auth", user.ID, fiber.Map{"email": user.Email})
	}

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// GetProfile returns the current user's account with its role profile
func (ac *AuthController) GetProfile(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	database.DB.Preload("Therapist").Preload("Individual").Preload("Company").First(user, user.ID)

	return c.JSON(fiber.Map{"user": user})
}

// ChangePassword lets an authenticated user rotate their password
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=6"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := utils.CheckPassword(req.CurrentPassword, user.Password); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Current password is incorrect"})
	}
	if len(req.NewPassword) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Password must be at least 6 characters"})
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}
	if err := database.DB.Model(user).Update("password", hashed).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update password"})
	}

	middleware.LogActivity(c, "UPDATE", "users", user.ID, fiber.Map{
		"action": "password_change",
	})

	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

// ForgotPassword issues a reset token. The response never reveals whether
// the email exists.
func (ac *AuthController) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err == nil {
		token := uuid.NewString()
		expiresAt := time.Now().Add(1 * time.Hour)
		if err := database.DB.Model(&user).Updates(map[string]interface{}{
			"reset_password_token":      token,
			"reset_password_expires_at": expiresAt,
		}).Error; err == nil {
			logrus.WithFields(logrus.Fields{
				"email":      user.Email,
				"expires_at": expiresAt,
			}).Info("Password reset token issued")
		}
	}

	return c.JSON(fiber.Map{
		"message": "If that email is registered, a reset link has been sent",
	})
}

// ResetPassword sets a new password using a valid reset token
func (ac *AuthController) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=6"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req.NewPassword) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Password must be at least 6 characters"})
	}

	var user models.User
	if err := database.DB.Where("reset_password_token = ? AND reset_password_expires_at > ?",
		req.Token, time.Now()).First(&user).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or expired reset token"})
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	if err := database.DB.Model(&user).Updates(map[string]interface{}{
		"password":                  hashed,
		"reset_password_token":      "",
		"reset_password_expires_at": nil,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reset password"})
	}

	middleware.LogActivity(c, "UPDATE", "users", user.ID, fiber.Map{
		"action": "password_reset",
	})

	return c.JSON(fiber.Map{"message": "Password reset successfully"})
}
