package routes

import (
	"theracare_go/controllers"
	"theracare_go/middleware"
	"theracare_go/services"
	"theracare_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, wsHub *websocket.Hub) {
	// Initialize controllers
	authController := &controllers.AuthController{}
	userController := &controllers.UserController{}
	companyController := &controllers.CompanyController{}
	scheduleController := controllers.NewScheduleController()
	appointmentController := controllers.NewAppointmentController()
	groupTherapyController := controllers.NewGroupTherapyController()
	notificationController := controllers.NewNotificationController()
	logController := controllers.NewLogController()
	healthController := controllers.NewHealthController(services.NewHealthService("", ""))
	wsController := controllers.NewWebSocketController(wsHub)

	// Health check (no auth)
	app.Get("/health", healthController.GetHealthStatus)

	// API group
	api := app.Group("/api")

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/signup/individual", authController.SignupIndividual)
	auth.Post("/signup/therapist", authController.SignupTherapist)
	auth.Post("/signup/company", authController.SignupCompany)
	auth.Post("/verify-otp", authController.VerifyOTP)
	auth.Post("/resend-otp", authController.ResendOTP)
	auth.Post("/login", authController.Login)
	auth.Post("/forgot-password", authController.ForgotPassword)
	auth.Post("/reset-password", authController.ResetPassword)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware())

	// Profile routes (authenticated users)
	protected.Get("/profile", authController.GetProfile)
	protected.Put("/profile/password", authController.ChangePassword)
	protected.Post("/auth/logout", authController.Logout)

	// Therapist directory (any authenticated user)
	protected.Get("/therapists", userController.GetTherapists)

	// User management routes
	users := protected.Group("/users")
	users.Get("/", middleware.RequireAdmin(), userController.GetUsers)
	users.Get("/:id", middleware.RequireAdmin(), userController.GetUser)
	users.Patch("/:id/status", middleware.RequireAdmin(), userController.UpdateUserStatus)
	users.Delete("/:id", middleware.RequireAdmin(), userController.DeleteUser)
	users.Post("/:id/avatar", userController.UploadAvatar) // Users can upload their own avatar

	// Company management routes
	companies := protected.Group("/companies")
	companies.Get("/", companyController.GetCompanies)
	companies.Get("/:id", companyController.GetCompany)
	companies.Get("/:id/members", middleware.RequireAdmin(), companyController.GetCompanyMembers)
	companies.Post("/", middleware.RequireAdmin(), companyController.CreateCompany)
	companies.Patch("/:id", middleware.RequireAdmin(), companyController.UpdateCompany)
	companies.Delete("/:id", middleware.RequireAdmin(), companyController.DeleteCompany)

	// Availability slot routes
	schedules := protected.Group("/schedules")
	schedules.Post("/", middleware.RequireTherapistOrAdmin(), scheduleController.CreateSchedule)
	schedules.Post("/bulk", middleware.RequireTherapistOrAdmin(), scheduleController.CreateSchedulesBulk)
	schedules.Post("/range", middleware.RequireTherapistOrAdmin(), scheduleController.CreateSchedulesRange)
	schedules.Get("/", scheduleController.GetSchedules)
	schedules.Get("/therapist/:therapistId", scheduleController.GetTherapistSchedules)
	schedules.Get("/therapist/:therapistId/date-range", scheduleController.GetTherapistSchedulesByDateRange)
	schedules.Get("/fees/:therapistId", scheduleController.GetConsultancyFees)
	schedules.Get("/:id", scheduleController.GetSchedule)
	schedules.Patch("/:id", middleware.RequireTherapistOrAdmin(), scheduleController.UpdateSchedule)
	schedules.Post("/update-status/:id", middleware.RequireTherapistOrAdmin(), scheduleController.UpdateScheduleStatus)
	schedules.Delete("/:id", middleware.RequireTherapistOrAdmin(), scheduleController.DeleteSchedule)

	// Appointment routes
	appointments := protected.Group("/appointments")
	appointments.Post("/", appointmentController.CreateAppointment)
	appointments.Get("/", appointmentController.GetAppointments)
	appointments.Get("/summary", appointmentController.GetAppointmentSummary)
	appointments.Get("/export", middleware.RequireTherapistOrAdmin(), appointmentController.ExportAppointments)
	appointments.Get("/weekly-schedule/:userId", appointmentController.GetWeeklySchedule)

	// Group therapy session routes (registered before /:id to keep the
	// literal path segment from being captured as an appointment ID)
	groupTherapy := appointments.Group("/group-therapy")
	groupTherapy.Post("/", middleware.RequireTherapistOrAdmin(), groupTherapyController.CreateGroupSession)
	groupTherapy.Get("/", groupTherapyController.GetGroupSessions)
	groupTherapy.Get("/:id", groupTherapyController.GetGroupSession)
	groupTherapy.Patch("/:id", middleware.RequireTherapistOrAdmin(), groupTherapyController.UpdateGroupSession)
	groupTherapy.Post("/:id/join", groupTherapyController.JoinGroupSession)
	groupTherapy.Delete("/:id/leave/:individualId", groupTherapyController.LeaveGroupSession)
	groupTherapy.Delete("/:id", middleware.RequireTherapistOrAdmin(), groupTherapyController.DeleteGroupSession)

	appointments.Get("/:id", appointmentController.GetAppointment)
	appointments.Patch("/:id", appointmentController.UpdateAppointment)
	appointments.Delete("/:id", appointmentController.DeleteAppointment)
	appointments.Post("/:id/cancel", appointmentController.CancelAppointment)
	appointments.Post("/:id/complete", middleware.RequireTherapistOrAdmin(), appointmentController.CompleteAppointment)
	appointments.Post("/:id/reschedule", appointmentController.RescheduleAppointment)
	appointments.Post("/:id/notes", middleware.RequireTherapistOrAdmin(), appointmentController.AddNote)
	appointments.Get("/:id/notes", appointmentController.GetNotes)

	// Notification routes
	notifications := protected.Group("/notifications")
	notifications.Get("/", notificationController.GetNotifications)
	notifications.Get("/unread-count", notificationController.GetUnreadCount)
	notifications.Post("/", middleware.RequireAdmin(), notificationController.CreateNotification)
	notifications.Patch("/mark-all-read", notificationController.MarkAllAsRead)
	notifications.Patch("/:id/read", notificationController.MarkAsRead)
	notifications.Delete("/:id", notificationController.DeleteNotification)

	// Log management routes (admin only)
	logs := protected.Group("/logs", middleware.RequireAdmin())
	logs.Get("/", logController.GetLogs)
	logs.Get("/stats", logController.GetLogStats)
	logs.Get("/export", logController.ExportLogs)
	logs.Get("/archives", logController.GetArchivedLogs)
	logs.Get("/archives/:id/download", logController.DownloadArchivedLogs)
	logs.Post("/flush-cache", logController.FlushCachedLogs)
	logs.Delete("/old", logController.DeleteOldLogs)
	logs.Get("/:id", logController.GetLog)

	// WebSocket stats
	ws := protected.Group("/ws")
	ws.Get("/stats", middleware.RequireAdmin(), wsController.GetWebSocketStats)

	// WebSocket connection endpoint - use websocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", wsController.WebSocketHandler())
}
