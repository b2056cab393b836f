package storage

import (
	"bytes"
	"fmt"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"theracare_go/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// AvatarStore keeps profile images in S3 under a per-role prefix, one current
// object per account. Re-uploading replaces the previous object.
type AvatarStore struct {
	client *s3.S3
	bucket string
	region string
}

func NewAvatarStore() (*AvatarStore, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AppConfig.AWSRegion),
		Credentials: credentials.NewStaticCredentials(
			config.AppConfig.AWSAccessKeyID,
			config.AppConfig.AWSSecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}
	return &AvatarStore{
		client: s3.New(sess),
		bucket: config.AppConfig.S3BucketName,
		region: config.AppConfig.AWSRegion,
	}, nil
}

// RoleFolder maps an account role to its avatar key prefix.
func RoleFolder(role string) string {
	switch role {
	case "therapist":
		return "avatars/therapists"
	case "individual":
		return "avatars/individuals"
	case "company":
		return "avatars/companies"
	default:
		return "avatars/staff"
	}
}

// Upload stores an avatar under <roleFolder>/<userID>/ and returns its public
// URL. Images are converted to WebP when the cwebp binary is available.
// previousURL, when non-empty, names the object being replaced; it is removed
// after the new upload succeeds, best-effort.
func (a *AvatarStore) Upload(file *multipart.FileHeader, roleFolder string, userID uint, previousURL string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %v", err)
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %v", err)
	}

	ext := fileExtension(file.Filename)
	body := raw
	if converted, ok := toWebP(raw); ok {
		body = converted
		ext = "webp"
	}

	key := fmt.Sprintf("%s/%d/%s.%s", roleFolder, userID, uuid.New().String()[:16], ext)
	_, err = a.client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(avatarContentType(ext)),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %v", err)
	}

	if previousURL != "" {
		// Stale avatars are junk, not data; a failed delete is not an error.
		_ = a.Delete(previousURL)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, key), nil
}

// Delete removes the object behind a previously returned avatar URL.
func (a *AvatarStore) Delete(fileURL string) error {
	key := keyFromURL(fileURL)
	if key == "" {
		return fmt.Errorf("invalid file URL")
	}
	_, err := a.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	return err
}

func fileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 1 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// toWebP converts an image through the external cwebp tool, avoiding a cgo
// dependency on libwebp. The second return is false when cwebp is absent or
// conversion fails, in which case the caller keeps the original bytes.
func toWebP(imageBytes []byte) ([]byte, bool) {
	cwebpPath, err := exec.LookPath("cwebp")
	if err != nil {
		return nil, false
	}

	inFile, err := os.CreateTemp("", "avatar-in-*")
	if err != nil {
		return nil, false
	}
	defer func() {
		inFile.Close()
		os.Remove(inFile.Name())
	}()
	if _, err := inFile.Write(imageBytes); err != nil {
		return nil, false
	}

	outFile, err := os.CreateTemp("", "avatar-out-*.webp")
	if err != nil {
		return nil, false
	}
	outFile.Close()
	defer os.Remove(outFile.Name())

	if err := exec.Command(cwebpPath, "-q", "80", inFile.Name(), "-o", outFile.Name()).Run(); err != nil {
		return nil, false
	}
	out, err := os.ReadFile(outFile.Name())
	if err != nil {
		return nil, false
	}
	return out, true
}

// avatarContentType covers the image formats accepted for profile pictures.
func avatarContentType(extension string) string {
	switch strings.ToLower(extension) {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// keyFromURL recovers the object key from a public S3 URL, e.g.
// https://bucket.s3.region.amazonaws.com/avatars/therapists/7/abc.webp
func keyFromURL(url string) string {
	parts := strings.Split(url, ".amazonaws.com/")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
