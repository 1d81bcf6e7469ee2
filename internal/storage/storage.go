package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

var ErrObjectNotFound = errors.New("object not found in storage")

// FileStorage defines the interface for object storage operations.
// Uploads and downloads go directly between the client and the provider.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// ObjectSize returns the stored size of objectKey, or ErrObjectNotFound.
	ObjectSize(ctx context.Context, objectKey string) (int64, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

var videoExtensions = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"video/x-msvideo": ".avi",
}

// IsVideoContentType accepts any video/* media type.
func IsVideoContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "video/") && len(contentType) > len("video/")
}

// NewExerciseVideoKey returns a fresh object key under the exercise's prefix.
func NewExerciseVideoKey(exerciseHex, contentType string) string {
	return "exercises/" + exerciseHex + "/" + uuid.NewString() + videoExtensions[contentType]
}

// KeyBelongsToExercise reports whether objectKey was issued for the exercise.
func KeyBelongsToExercise(objectKey, exerciseHex string) bool {
	return strings.HasPrefix(objectKey, "exercises/"+exerciseHex+"/")
}
