// Package gcs stages uploaded statements and receipts in a Cloud
// Storage bucket before parsing. Raw files are kept so a failed run
// can be replayed without asking the user to re-upload.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Storage is the staging surface the pipeline depends on. Satisfied by
// *Client and by test fakes.
type Storage interface {
	Upload(ctx context.Context, objectName string, data []byte) (string, error)
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
}

// Client stages objects in one bucket. Application Default Credentials
// are assumed.
type Client struct {
	bucket string
}

func New(bucket string) *Client {
	return &Client{bucket: bucket}
}

// Upload writes data under objectName and returns the gs:// URI.
func (c *Client) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("gcs upload: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(c.bucket).Object(objectName).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs upload: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs upload: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", c.bucket, objectName), nil
}

// Fetch downloads the object bytes behind a gs:// URI.
func (c *Client) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs fetch: create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs fetch: reading bytes: %w", err)
	}
	return data, nil
}

// ObjectName builds a collision-free staging path for a user upload:
// uploads/<user>/<date>/<uuid>-<filename>.
func ObjectName(userID int64, filename string) string {
	return fmt.Sprintf("uploads/%d/%s/%s-%s",
		userID, time.Now().Format("2006-01-02"), uuid.NewString(), path.Base(filename))
}

// FilenameFromURI extracts the trailing filename from a gs:// URI.
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
