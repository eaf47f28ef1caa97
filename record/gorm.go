package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foodlog"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// GormStore is the SQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Open opens (and migrates) the sqlite database at dsn.
func Open(ctx context.Context, dsn string) (*GormStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", foodlog.ErrStorage, err)
	}
	if err := ensureSQLiteDirectory(dsn); err != nil {
		return nil, fmt.Errorf("%w: ensure sqlite directory: %w", foodlog.ErrStorage, err)
	}

	db, err := gorm.Open(gormsqlite.Open(withPragmas(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %w", foodlog.ErrStorage, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: get sql db: %w", foodlog.ErrStorage, err)
	}
	// sqlite serializes writers anyway; one connection also keeps :memory: coherent.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&foodLog{}, &foodIngredient{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: auto migrate: %w", foodlog.ErrStorage, err)
	}

	slog.Info("RECORD: Database opened", "dsn", dsn)
	return NewGormStore(db), nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

func ensureSQLiteDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || strings.Contains(candidate, ":memory:") {
		return nil
	}
	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = candidate[len("file:"):]
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", foodlog.ErrStorage, op, err)
}

func (s *GormStore) CreatePendingLog(ctx context.Context, ownerID int64, mediaRef string) (int64, error) {
	row := foodLog{
		OwnerID:   ownerID,
		MediaRef:  mediaRef,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Omit("Ingredients").Create(&row).Error; err != nil {
		return 0, storageErr("create food log", err)
	}
	return row.ID, nil
}

func (s *GormStore) InsertIngredient(ctx context.Context, entry IngredientEntry) (int64, error) {
	entry.WeightGrams = RoundWeight(entry.WeightGrams)
	if err := entry.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", foodlog.ErrValidation, err)
	}

	row := foodIngredient{
		LogID:       entry.LogID,
		Name:        entry.Name,
		Kcal:        entry.Kcal,
		WeightGrams: entry.WeightGrams,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&foodLog{}).Where("id = ?", entry.LogID).Count(&n).Error; err != nil {
			return storageErr("check food log", err)
		}
		if n == 0 {
			return fmt.Errorf("food log %d: %w", entry.LogID, ErrNotFound)
		}
		if err := tx.Create(&row).Error; err != nil {
			return storageErr("insert ingredient", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *GormStore) GetLog(ctx context.Context, id int64) (IngestionRecord, error) {
	var row foodLog
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return IngestionRecord{}, fmt.Errorf("food log %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return IngestionRecord{}, storageErr("get food log", err)
	}
	return mapLog(row), nil
}

func (s *GormStore) CountIngredients(ctx context.Context, logID int64) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&foodIngredient{}).Where("log_id = ?", logID).Count(&n).Error; err != nil {
		return 0, storageErr("count ingredients", err)
	}
	return int(n), nil
}

func (s *GormStore) SetConfidence(ctx context.Context, id int64, confidence int) (bool, error) {
	if !ValidConfidence(confidence) {
		return false, fmt.Errorf("%w: %w", foodlog.ErrValidation, ErrInvalidConfidence)
	}
	res := s.db.WithContext(ctx).Model(&foodLog{}).Where("id = ?", id).Update("confidence", confidence)
	if res.Error != nil {
		return false, storageErr("set confidence", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) ListIngredients(ctx context.Context, logID int64) ([]IngredientEntry, error) {
	var rows []foodIngredient
	if err := s.db.WithContext(ctx).Where("log_id = ?", logID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, storageErr("list ingredients", err)
	}
	out := make([]IngredientEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapIngredient(r))
	}
	return out, nil
}

func (s *GormStore) ListLogsByOwner(ctx context.Context, ownerID int64) ([]IngestionRecord, error) {
	var rows []foodLog
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, storageErr("list food logs", err)
	}
	out := make([]IngestionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapLog(r))
	}
	return out, nil
}

func (s *GormStore) DeleteLog(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("log_id = ?", id).Delete(&foodIngredient{}).Error; err != nil {
			return storageErr("delete ingredients", err)
		}
		res := tx.Where("id = ?", id).Delete(&foodLog{})
		if res.Error != nil {
			return storageErr("delete food log", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
