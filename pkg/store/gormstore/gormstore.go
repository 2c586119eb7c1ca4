// Package gormstore is a MySQL blob store built on GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wilhg/workshop/pkg/store"
)

// Option allows configuring DB connection.
type Option func(*config)

type config struct {
	Logger logger.Interface
}

// WithLogger sets a custom GORM logger.
func WithLogger(l logger.Interface) Option { return func(c *config) { c.Logger = l } }

// Open connects to MySQL with dsn, migrates the blob table and returns a store.
func Open(dsn string, opts ...Option) (*Store, error) {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	gormCfg := &gorm.Config{SkipDefaultTransaction: true}
	if cfg.Logger != nil {
		gormCfg.Logger = cfg.Logger
	}
	db, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&BlobModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return New(db), nil
}

// New wraps an open DB without migrating.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// BlobModel is one stored blob.
type BlobModel struct {
	Path      string    `gorm:"primaryKey;type:varchar(512)"`
	Data      []byte    `gorm:"type:longblob;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (BlobModel) TableName() string { return "snapshot_blobs" }

// Store implements store.BlobStore using GORM.
type Store struct{ db *gorm.DB }

// Put inserts or replaces the blob at key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if !store.ValidKey(key) {
		return fmt.Errorf("gormstore: invalid key %q", key)
	}
	if data == nil {
		data = []byte{}
	}
	m := BlobModel{Path: key, Data: data}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get fetches the blob at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var m BlobModel
	err := s.db.WithContext(ctx).Where("path = ?", key).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return m.Data, nil
}

// Delete removes the blob at key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("path = ?", key).Delete(&BlobModel{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns keys under prefix ordered by path.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := s.db.WithContext(ctx).
		Model(&BlobModel{}).
		Where("path LIKE ?", escapeLike(prefix)+"%").
		Order("path").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	// default MySQL collations compare case-insensitively
	keys := paths[:0]
	for _, p := range paths {
		if strings.HasPrefix(p, prefix) {
			keys = append(keys, p)
		}
	}
	return keys, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
