package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"theracare_go/config"
	"theracare_go/database"
	"theracare_go/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	logQueueKey        = "logs:queue"
	archiveKeyPrefix   = "audit/archives"
	minArchiveAgeDays  = 7
	archiveAgeDays     = 30
	flushBatchSize     = 500
	archiveBatchSize   = 1000
	flushCacheWindow   = 24 * time.Hour
	archiveDescription = "TheraCare audit trail archive"
)

// LogArchiveService moves activity logs through their lifecycle: Redis write
// cache -> database -> zipped S3 archive.
type LogArchiveService struct {
	redisClient *redis.Client
	awsConfig   aws.Config
	cron        *cron.Cron
}

// ArchivedLog is the flattened representation written into archive files.
type ArchivedLog struct {
	ID         uint           `json:"id"`
	UserID     uint           `json:"user_id"`
	UserName   string         `json:"user_name,omitempty"`
	UserRole   string         `json:"user_role,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID uint           `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewLogArchiveService() *LogArchiveService {
	region := ""
	if config.AppConfig != nil {
		region = config.AppConfig.AWSRegion
	}
	cfg, err := awscfg.LoadDefaultConfig(context.Background(), awscfg.WithRegion(region))
	if err != nil {
		logrus.WithError(err).Warn("Failed to load AWS config; archive uploads will fail until configured")
	}
	return &LogArchiveService{
		redisClient: database.GetRedisClient(),
		awsConfig:   cfg,
		cron:        cron.New(),
	}
}

// FlushCachedLogsToDatabase drains cache entries older than the cache window
// from Redis into the activity_logs table. Entries are inserted in batches;
// only successfully stored entries are removed from the cache.
func (las *LogArchiveService) FlushCachedLogsToDatabase() error {
	if las.redisClient == nil {
		return fmt.Errorf("redis client not available")
	}

	ctx := context.Background()
	cutoff := time.Now().Add(-flushCacheWindow)

	keys, err := las.redisClient.ZRangeByScore(ctx, logQueueKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read log queue: %v", err)
	}
	if len(keys) == 0 {
		return nil
	}
	logrus.Infof("Flushing %d cached activity logs", len(keys))

	var (
		batch      []models.ActivityLog
		batchKeys  []string
		flushed    int
		errorCount int
	)
	commit := func() {
		if len(batch) == 0 {
			return
		}
		if err := database.DB.CreateInBatches(batch, flushBatchSize).Error; err != nil {
			logrus.WithError(err).Error("Failed to store cached activity logs")
			errorCount += len(batch)
		} else {
			pipe := las.redisClient.Pipeline()
			pipe.Del(ctx, batchKeys...)
			pipe.ZRem(ctx, logQueueKey, toAnySlice(batchKeys)...)
			if _, err := pipe.Exec(ctx); err != nil {
				logrus.WithError(err).Warn("Failed to prune flushed log cache entries")
			}
			flushed += len(batch)
		}
		batch = batch[:0]
		batchKeys = batchKeys[:0]
	}

	for _, key := range keys {
		raw, err := las.redisClient.Get(ctx, key).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				logrus.WithError(err).Errorf("Failed to read cached log %s", key)
				errorCount++
			}
			continue
		}
		var entry models.ActivityLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.WithError(err).Errorf("Malformed cached log %s", key)
			errorCount++
			continue
		}
		batch = append(batch, entry)
		batchKeys = append(batchKeys, key)
		if len(batch) >= flushBatchSize {
			commit()
		}
	}
	commit()

	logrus.Infof("Flushed %d activity logs to database, %d errors", flushed, errorCount)
	return nil
}

// ArchiveOldLogs zips database logs older than daysOld, uploads the archive
// to S3 and deletes the archived rows. The archive window is recorded in a
// LogArchive row for the admin download endpoints.
func (las *LogArchiveService) ArchiveOldLogs(daysOld int) error {
	if daysOld < minArchiveAgeDays {
		return fmt.Errorf("minimum archive age is %d days", minArchiveAgeDays)
	}
	cutoff := time.Now().AddDate(0, 0, -daysOld)

	logs, err := las.collectArchivable(cutoff)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	oldest := logs[0].CreatedAt
	newest := logs[len(logs)-1].CreatedAt
	for _, l := range logs {
		if l.CreatedAt.Before(oldest) {
			oldest = l.CreatedAt
		}
		if l.CreatedAt.After(newest) {
			newest = l.CreatedAt
		}
	}
	logrus.Infof("Archiving %d activity logs from %s to %s",
		len(logs), oldest.Format("2006-01-02"), newest.Format("2006-01-02"))

	fileName := fmt.Sprintf("audit_logs_%s_%s.zip",
		oldest.Format("20060102"), newest.Format("20060102"))
	zipBuffer, err := buildArchiveZip(logs, fileName, oldest, newest)
	if err != nil {
		return fmt.Errorf("failed to build archive: %v", err)
	}

	s3Key := fmt.Sprintf("%s/%d/%02d/%s",
		archiveKeyPrefix, cutoff.Year(), cutoff.Month(), fileName)
	if err := las.uploadToS3(s3Key, zipBuffer); err != nil {
		return fmt.Errorf("failed to upload archive to S3: %v", err)
	}
	logrus.Infof("Uploaded archive %s", s3Key)

	result := database.DB.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete archived logs: %v", result.Error)
	}
	logrus.Infof("Deleted %d archived activity logs", result.RowsAffected)

	metadata := models.LogArchive{
		FileName:    fileName,
		S3Key:       s3Key,
		StartDate:   oldest,
		EndDate:     newest,
		RecordCount: len(logs),
		FileSize:    int64(zipBuffer.Len()),
		Status:      "completed",
	}
	if err := database.DB.Create(&metadata).Error; err != nil {
		logrus.WithError(err).Error("Failed to save archive metadata")
	}
	return nil
}

// collectArchivable pages through activity logs older than the cutoff and
// flattens them with their user for the archive files.
func (las *LogArchiveService) collectArchivable(cutoff time.Time) ([]ArchivedLog, error) {
	var out []ArchivedLog
	for offset := 0; ; offset += archiveBatchSize {
		var page []models.ActivityLog
		err := database.DB.
			Preload("User").
			Where("created_at < ?", cutoff).
			Order("created_at ASC").
			Limit(archiveBatchSize).
			Offset(offset).
			Find(&page).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch logs for archiving: %v", err)
		}
		if len(page) == 0 {
			return out, nil
		}
		for _, entry := range page {
			a := ArchivedLog{
				ID:         entry.ID,
				UserID:     entry.UserID,
				Action:     entry.Action,
				Resource:   entry.Resource,
				ResourceID: entry.ResourceID,
				IPAddress:  entry.IPAddress,
				UserAgent:  entry.UserAgent,
				CreatedAt:  entry.CreatedAt,
			}
			if len(entry.Details) > 0 {
				var details map[string]any
				if err := json.Unmarshal(entry.Details, &details); err == nil {
					a.Details = details
				}
			}
			if entry.User.ID > 0 {
				a.UserName = entry.User.UserName
				a.UserRole = string(entry.User.Role)
			}
			out = append(out, a)
		}
	}
}

// buildArchiveZip packs the logs as JSON and CSV next to a manifest.
func buildArchiveZip(logs []ArchivedLog, fileName string, oldest, newest time.Time) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	jsonFile, err := zw.Create("audit_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(jsonFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"export_date":  time.Now().UTC(),
		"record_count": len(logs),
		"logs":         logs,
	}); err != nil {
		return nil, err
	}

	csvFile, err := zw.Create("audit_logs.csv")
	if err != nil {
		return nil, err
	}
	cw := csv.NewWriter(csvFile)
	if err := cw.Write([]string{
		"ID", "User ID", "User Name", "Role", "Action", "Resource",
		"Resource ID", "IP Address", "Created At", "Details",
	}); err != nil {
		return nil, err
	}
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		if err := cw.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.UserID), 10),
			l.UserName,
			l.UserRole,
			l.Action,
			l.Resource,
			strconv.FormatUint(uint64(l.ResourceID), 10),
			l.IPAddress,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		}); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}

	manifestFile, err := zw.Create("manifest.json")
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(manifestFile).Encode(map[string]any{
		"file_name":    fileName,
		"created_at":   time.Now().UTC(),
		"record_count": len(logs),
		"date_range": map[string]any{
			"start": oldest,
			"end":   newest,
		},
		"description": archiveDescription,
	}); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (las *LogArchiveService) bucketName() string {
	if config.AppConfig == nil {
		return ""
	}
	return config.AppConfig.S3BucketName
}

func (las *LogArchiveService) uploadToS3(key string, data *bytes.Buffer) error {
	bucket := las.bucketName()
	if las.awsConfig.Region == "" || bucket == "" {
		return fmt.Errorf("S3 archive storage not configured")
	}
	client := s3.NewFromConfig(las.awsConfig)
	_, err := client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data.Bytes()),
		ContentType: aws.String("application/zip"),
	})
	return err
}

func (las *LogArchiveService) downloadFromS3(key string) (io.ReadCloser, error) {
	bucket := las.bucketName()
	if las.awsConfig.Region == "" || bucket == "" {
		return nil, fmt.Errorf("S3 archive storage not configured")
	}
	client := s3.NewFromConfig(las.awsConfig)
	result, err := client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// GetArchivedLogs lists archive metadata, newest first.
func (las *LogArchiveService) GetArchivedLogs() ([]models.LogArchive, error) {
	var archives []models.LogArchive
	err := database.DB.Order("created_at DESC").Find(&archives).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve archives: %v", err)
	}
	return archives, nil
}

// DownloadArchivedLogs streams one archive back from S3.
func (las *LogArchiveService) DownloadArchivedLogs(archiveID uint) (io.ReadCloser, string, error) {
	var archive models.LogArchive
	if err := database.DB.First(&archive, archiveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("archive not found")
		}
		return nil, "", fmt.Errorf("failed to retrieve archive: %v", err)
	}
	reader, err := las.downloadFromS3(archive.S3Key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download archive from S3: %v", err)
	}
	return reader, archive.FileName, nil
}

// StartLogMaintenanceScheduler runs the flush hourly and the S3 archival once
// a day at 03:00.
func (las *LogArchiveService) StartLogMaintenanceScheduler() {
	if _, err := las.cron.AddFunc("@hourly", func() {
		if err := las.FlushCachedLogsToDatabase(); err != nil {
			logrus.WithError(err).Warn("log cache flush failed")
		}
	}); err != nil {
		logrus.WithError(err).Error("Failed to schedule log cache flush")
	}
	if _, err := las.cron.AddFunc("0 3 * * *", func() {
		if err := las.ArchiveOldLogs(archiveAgeDays); err != nil {
			logrus.WithError(err).Warn("log archival failed")
		}
	}); err != nil {
		logrus.WithError(err).Error("Failed to schedule log archival")
	}
	las.cron.Start()
}

func toAnySlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
