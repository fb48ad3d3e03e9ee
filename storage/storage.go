// Package storage keeps uploaded rulebook documents in a local directory or
// an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Get for a missing key
var ErrObjectNotFound = errors.New("object not found")

// Storage stores opaque objects by key
type Storage interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Type is the storage backend
type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// Config selects and configures a backend
type Config struct {
	Type         Type
	LocalPath    string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string // S3 compatible endpoint such as MinIO; empty for AWS
	AWSAccessKey string
	AWSSecretKey string
}

// New creates the configured backend
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	case TypeS3:
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ConfigFromEnv reads STORAGE_TYPE, STORAGE_LOCAL_PATH, AWS_S3_BUCKET,
// AWS_REGION, AWS_S3_ENDPOINT, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY
func ConfigFromEnv() (Config, error) {
	cfg := Config{Type: Type(os.Getenv("STORAGE_TYPE"))}
	if cfg.Type == "" {
		cfg.Type = TypeLocal
	}

	switch cfg.Type {
	case TypeLocal:
		cfg.LocalPath = os.Getenv("STORAGE_LOCAL_PATH")
		if cfg.LocalPath == "" {
			cfg.LocalPath = "./storage/rulebooks"
		}
	case TypeS3:
		cfg.S3Bucket = os.Getenv("AWS_S3_BUCKET")
		if cfg.S3Bucket == "" {
			return Config{}, errors.New("AWS_S3_BUCKET environment variable is required for S3 storage")
		}
		cfg.S3Region = os.Getenv("AWS_REGION")
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1"
		}
		cfg.S3Endpoint = os.Getenv("AWS_S3_ENDPOINT")
		cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	default:
		return Config{}, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
	return cfg, nil
}

// RulebookKey is the object key of an uploaded rulebook: rules/{id}-{name}
func RulebookKey(id uuid.UUID, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "." || name == "" {
		name = "rulebook"
	}
	return fmt.Sprintf("rules/%s-%s", id, name)
}

// ContentType guesses the MIME type of a rulebook from its extension
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}
