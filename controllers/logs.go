package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"theracare_go/database"
	"theracare_go/middleware"
	"theracare_go/models"
	"theracare_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LogController struct {
	archive *services.LogArchiveService
}

func NewLogController() *LogController {
	return &LogController{archive: services.NewLogArchiveService()}
}

// LogResponse represents a log entry response
type LogResponse struct {
	ID         uint                   `json:"id"`
	UserID     uint                   `json:"user_id"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID uint                   `json:"resource_id"`
	Details    map[string]interface{} `json:"details"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent"`
	CreatedAt  time.Time              `json:"created_at"`
	User       *UserBasicInfo         `json:"user,omitempty"`
}

type UserBasicInfo struct {
	ID       uint   `json:"id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func toLogResponse(log models.ActivityLog) LogResponse {
	resp := LogResponse{
		ID:         log.ID,
		UserID:     log.UserID,
		Action:     log.Action,
		Resource:   log.Resource,
		ResourceID: log.ResourceID,
		IPAddress:  log.IPAddress,
		UserAgent:  log.UserAgent,
		CreatedAt:  log.CreatedAt,
	}
	if len(log.Details) > 0 {
		var details map[string]interface{}
		if err := json.Unmarshal(log.Details, &details); err == nil {
			resp.Details = details
		}
	}
	if log.User.ID > 0 {
		resp.User = &UserBasicInfo{
			ID:       log.User.ID,
			UserName: log.User.UserName,
			Email:    log.User.Email,
			Role:     string(log.User.Role),
		}
	}
	return resp
}

// GetLogs retrieves paginated activity logs with filters (admin only)
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := database.DB.Model(&models.ActivityLog{}).Preload("User")

	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if resource := c.Query("resource"); resource != "" {
		query = query.Where("resource = ?", resource)
	}
	if startDate := c.Query("start_date"); startDate != "" {
		if parsedDate, err := time.Parse("2006-01-02", startDate); err == nil {
			query = query.Where("created_at >= ?", parsedDate)
		}
	}
	if endDate := c.Query("end_date"); endDate != "" {
		if parsedDate, err := time.Parse("2006-01-02", endDate); err == nil {
			query = query.Where("created_at <= ?", parsedDate.Add(24*time.Hour))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logrus.WithError(err).Error("Failed to count logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve logs count"})
	}

	var activityLogs []models.ActivityLog
	if err := query.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&activityLogs).Error; err != nil {
		logrus.WithError(err).Error("Failed to retrieve logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve logs"})
	}

	logs := make([]LogResponse, len(activityLogs))
	for i, log := range activityLogs {
		logs[i] = toLogResponse(log)
	}

	return c.JSON(fiber.Map{
		"logs":        logs,
		"total":       total,
		"page":        page,
		"limit":       limit,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
	})
}

// GetLog retrieves a single log entry by ID
func (lc *LogController) GetLog(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid log ID"})
	}

	var activityLog models.ActivityLog
	if err := database.DB.Preload("User").First(&activityLog, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Log not found"})
		}
		logrus.WithError(err).Error("Failed to retrieve log")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve log"})
	}

	return c.JSON(toLogResponse(activityLog))
}

// GetLogStats provides aggregate logging statistics (admin only)
func (lc *LogController) GetLogStats(c *fiber.Ctx) error {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	thisWeek := today.AddDate(0, 0, -int(today.Weekday()))

	var stats struct {
		Total             int64            `json:"total"`
		TotalToday        int64            `json:"total_today"`
		TotalThisWeek     int64            `json:"total_this_week"`
		ActionBreakdown   map[string]int64 `json:"action_breakdown"`
		ResourceBreakdown map[string]int64 `json:"resource_breakdown"`
	}
	stats.ActionBreakdown = make(map[string]int64)
	stats.ResourceBreakdown = make(map[string]int64)

	database.DB.Model(&models.ActivityLog{}).Count(&stats.Total)
	database.DB.Model(&models.ActivityLog{}).Where("created_at >= ?", today).Count(&stats.TotalToday)
	database.DB.Model(&models.ActivityLog{}).Where("created_at >= ?", thisWeek).Count(&stats.TotalThisWeek)

	var actionStats []struct {
		Action string
		Count  int64
	}
	database.DB.Model(&models.ActivityLog{}).
		Select("action, COUNT(*) as count").
		Group("action").
		Find(&actionStats)
	for _, stat := range actionStats {
		stats.ActionBreakdown[stat.Action] = stat.Count
	}

	var resourceStats []struct {
		Resource string
		Count    int64
	}
	database.DB.Model(&models.ActivityLog{}).
		Select("resource, COUNT(*) as count").
		Group("resource").
		Find(&resourceStats)
	for _, stat := range resourceStats {
		stats.ResourceBreakdown[stat.Resource] = stat.Count
	}

	return c.JSON(fiber.Map{"stats": stats})
}

// ExportLogs exports activity logs to CSV (admin only)
func (lc *LogController) ExportLogs(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename=activity_logs.csv")

	query := database.DB.Model(&models.ActivityLog{}).Preload("User")

	if startDate := c.Query("start_date"); startDate != "" {
		if parsedDate, err := time.Parse("2006-01-02", startDate); err == nil {
			query = query.Where("created_at >= ?", parsedDate)
		}
	}
	if endDate := c.Query("end_date"); endDate != "" {
		if parsedDate, err := time.Parse("2006-01-02", endDate); err == nil {
			query = query.Where("created_at <= ?", parsedDate.Add(24*time.Hour))
		}
	}

	var logs []models.ActivityLog
	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		logrus.WithError(err).Error("Failed to retrieve logs for export")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve logs for export"})
	}

	csvContent := "ID,User ID,User Name,Role,Action,Resource,Resource ID,IP Address,Created At,Details\n"
	for _, log := range logs {
		userName := ""
		role := ""
		if log.User.ID > 0 {
			userName = log.User.UserName
			role = string(log.User.Role)
		}
		details := ""
		if len(log.Details) > 0 {
			details = string(log.Details)
		}
		csvContent += fmt.Sprintf("%d,%d,%s,%s,%s,%s,%d,%s,%s,\"%s\"\n",
			log.ID, log.UserID, userName, role,
			log.Action, log.Resource, log.ResourceID,
			log.IPAddress, log.CreatedAt.Format("2006-01-02 15:04:05"), details,
		)
	}

	return c.SendString(csvContent)
}

// DeleteOldLogs removes logs older than the given number of days (admin only)
func (lc *LogController) DeleteOldLogs(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid days parameter"})
	}

	cutoffDate := time.Now().AddDate(0, 0, -days)
	result := database.DB.Where("created_at < ?", cutoffDate).Delete(&models.ActivityLog{})
	if result.Error != nil {
		logrus.WithError(result.Error).Error("Failed to delete old logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete old logs"})
	}

	middleware.LogActivity(c, "DELETE", "activity_logs", 0, fiber.Map{
		"deleted_count": result.RowsAffected,
		"cutoff_date":   cutoffDate,
	})

	return c.JSON(fiber.Map{
		"message":       "Old logs deleted successfully",
		"deleted_count": result.RowsAffected,
		"cutoff_date":   cutoffDate,
	})
}

// FlushCachedLogs flushes the Redis log buffer into the database (admin only)
func (lc *LogController) FlushCachedLogs(c *fiber.Ctx) error {
	if err := lc.archive.FlushCachedLogsToDatabase(); err != nil {
		logrus.WithError(err).Error("Failed to flush cached logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to flush cached logs"})
	}

	return c.JSON(fiber.Map{"message": "Cached logs flushed to database"})
}

// GetArchivedLogs lists completed S3 log archives (admin only)
func (lc *LogController) GetArchivedLogs(c *fiber.Ctx) error {
	archives, err := lc.archive.GetArchivedLogs()
	if err != nil {
		logrus.WithError(err).Error("Failed to list log archives")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list log archives"})
	}

	return c.JSON(fiber.Map{"archives": archives})
}

// DownloadArchivedLogs streams one archived log bundle from S3 (admin only)
func (lc *LogController) DownloadArchivedLogs(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid archive ID"})
	}

	body, fileName, err := lc.archive.DownloadArchivedLogs(id)
	if err != nil {
		logrus.WithError(err).Error("Failed to download log archive")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Archive not available"})
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read archive"})
	}

	c.Set("Content-Type", "application/zip")
	c.Set("Content-Disposition", "attachment; filename="+fileName)
	return c.Send(data)
}
