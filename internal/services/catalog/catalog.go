package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nvr-worker-go/internal/models"
)

var ErrNotFound = errors.New("recording not found")

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Recording is one uploaded file.
type Recording struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	SegmentID string    `json:"segment_id" gorm:"size:36;index"`
	CameraID  string    `json:"camera_id" gorm:"size:128;index:idx_camera_time"`
	FileType  string    `json:"file_type" gorm:"size:16"`
	Bucket    string    `json:"bucket" gorm:"size:128"`
	ObjectKey string    `json:"object_key" gorm:"size:512"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp" gorm:"index:idx_camera_time"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	CameraID string
	FileType string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Catalog indexes uploaded recordings in SQLite so they can be found later.
type Catalog struct {
	db *gorm.DB
}

// Open opens (creating if needed) the catalog database at path. ":memory:"
// gives a private in-memory database.
func Open(path string) (*Catalog, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&Recording{}); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Add stores an uploaded file and returns its catalog entry.
func (c *Catalog) Add(ctx context.Context, rec models.OutputRecord, bucket, key string, size int64) (*Recording, error) {
	entry := &Recording{
		ID:        uuid.NewString(),
		SegmentID: rec.SegmentID,
		CameraID:  rec.CameraID,
		FileType:  rec.FileType.String(),
		Bucket:    bucket,
		ObjectKey: key,
		Size:      size,
		Timestamp: rec.Timestamp.UTC(),
	}
	if err := c.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("add recording: %w", err)
	}
	return entry, nil
}

// List returns matching recordings, newest first.
func (c *Catalog) List(ctx context.Context, f Filter) ([]Recording, error) {
	query := c.db.WithContext(ctx).Model(&Recording{})
	if f.CameraID != "" {
		query = query.Where("camera_id = ?", f.CameraID)
	}
	if f.FileType != "" {
		query = query.Where("file_type = ?", f.FileType)
	}
	if !f.Since.IsZero() {
		query = query.Where("timestamp >= ?", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		query = query.Where("timestamp < ?", f.Until.UTC())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var out []Recording
	if err := query.Order("timestamp DESC").Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return out, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*Recording, error) {
	var out Recording
	err := c.db.WithContext(ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return &out, nil
}

func (c *Catalog) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&Recording{}).Count(&n).Error
	return n, err
}

func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
