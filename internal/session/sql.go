package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"feedsync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sessionRow is the single-row table backing SQLPersister.
type sessionRow struct {
	Key       string `gorm:"primaryKey;size:191"`
	Payload   string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (sessionRow) TableName() string {
	return "client_sessions"
}

// SQLPersister stores the record in a SQL table through gorm.
type SQLPersister struct {
	db  *gorm.DB
	key string
}

// NewSQLPersister migrates the session table and returns a persister.
func NewSQLPersister(ctx context.Context, db *gorm.DB, key string) (*SQLPersister, error) {
	if err := db.WithContext(ctx).AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate session table: %w", err)
	}
	return newSQLPersister(db, key), nil
}

func newSQLPersister(db *gorm.DB, key string) *SQLPersister {
	return &SQLPersister{db: db, key: key}
}

func (s *SQLPersister) Load(ctx context.Context) (*models.SessionRecord, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("key = ?", s.key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var rec models.SessionRecord
	if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

func (s *SQLPersister) Save(ctx context.Context, rec *models.SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	row := sessionRow{Key: s.key, Payload: string(raw), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLPersister) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("key = ?", s.key).Delete(&sessionRow{}).Error; err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLPersister) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
