// Package storage archives rendered broadcast content, either in an S3
// bucket or under a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/config"
)

// Sentinel errors.
var (
	ErrDisabled = errors.New("archive storage disabled")
	ErrNotFound = errors.New("archived object not found")
	ErrBadKey   = errors.New("invalid object key")
)

// Storage stores archive objects by key.
type Storage struct {
	cfg    config.ArchiveConfig
	s3     ObjectAPI
	bucket string
	prefix string
}

// New creates a Storage for cfg.Type "s3", "local" or "" (disabled).
func New(ctx context.Context, cfg config.ArchiveConfig) (*Storage, error) {
	s := &Storage{cfg: cfg, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}

	switch cfg.Type {
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("archive bucket is required for s3 storage")
		}
		client, err := newS3Client(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("initializing S3 storage: %w", err)
		}
		s.s3 = client

	case "local":
		if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}

	case "", "none":
	default:
		return nil, fmt.Errorf("unknown archive storage type %q", cfg.Type)
	}
	return s, nil
}

// NewWithS3 creates an S3-backed Storage around an existing client.
func NewWithS3(api ObjectAPI, bucket, prefix string) *Storage {
	return &Storage{
		cfg:    config.ArchiveConfig{Type: "s3", Bucket: bucket, Prefix: prefix},
		s3:     api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Enabled reports whether objects are persisted anywhere.
func (s *Storage) Enabled() bool {
	return s != nil && (s.cfg.Type == "s3" || s.cfg.Type == "local")
}

// CampaignKey is the archive key of a broadcast's rendered HTML.
func CampaignKey(campaignID string, sentAt time.Time) string {
	return fmt.Sprintf("campaigns/%s/%s.html", sentAt.UTC().Format("2006/01"), campaignID)
}

// Put writes data under key.
func (s *Storage) Put(ctx context.Context, key, contentType string, data []byte) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if err := checkKey(key); err != nil {
		return err
	}
	if s.cfg.Type == "s3" {
		return s.putS3(ctx, s.fullKey(key), contentType, data)
	}
	return s.putLocal(key, data)
}

// Get reads the object under key.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if s.cfg.Type == "s3" {
		return s.getS3(ctx, s.fullKey(key))
	}
	return s.getLocal(key)
}

func (s *Storage) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *Storage) putLocal(key string, data []byte) error {
	p := filepath.Join(s.cfg.LocalPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("writing archive file: %w", err)
	}
	return nil
}

func (s *Storage) getLocal(key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.cfg.LocalPath, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading archive file: %w", err)
	}
	return data, nil
}

// checkKey rejects keys that could escape the archive root.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return nil
}
