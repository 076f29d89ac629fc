package repo

import (
	"Narrator/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversionRepository — доступ к истории преобразований.
type ConversionRepository interface {
	Create(ctx context.Context, c *model.Conversion) error
	// CreateSharingBlob сохраняет запись, ссылающуюся на уже существующий blob.
	// Если blob успели удалить — gorm.ErrRecordNotFound.
	CreateSharingBlob(ctx context.Context, c *model.Conversion) error
	GetByID(ctx context.Context, id string) (*model.Conversion, error)
	// FindCompletedByHash ищет последнее успешное преобразование с тем же ключом кэша.
	FindCompletedByHash(ctx context.Context, hash string) (*model.Conversion, error)
	ListRecent(ctx context.Context, limit int) ([]model.Conversion, error)
	// DeleteOlderThan удаляет записи, созданные раньше before, и blob'ы, на которые больше никто не ссылается.
	DeleteOlderThan(ctx context.Context, before time.Time) (conversions int64, blobs int64, err error)
}

type conversionRepo struct {
	db *gorm.DB
}

// NewConversionRepository создаёт реализацию репозитория для Conversion.
func NewConversionRepository(db *gorm.DB) ConversionRepository {
	return &conversionRepo{db: db}
}

func (r *conversionRepo) Create(ctx context.Context, c *model.Conversion) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conversionRepo) CreateSharingBlob(ctx context.Context, c *model.Conversion) error {
	if c.BlobID == nil {
		return errors.New("blob id is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// блокировка blob'а до коммита: очистка ждёт и затем видит новую ссылку
		var b model.Blob
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id").
			First(&b, "id = ?", *c.BlobID).Error; err != nil {
			return err
		}
		return tx.Omit("Blob").Create(c).Error
	})
}

func (r *conversionRepo) GetByID(ctx context.Context, id string) (*model.Conversion, error) {
	var c model.Conversion
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversionRepo) FindCompletedByHash(ctx context.Context, hash string) (*model.Conversion, error) {
	var c model.Conversion
	err := r.db.WithContext(ctx).
		Where("content_hash = ? AND status = ? AND blob_id IS NOT NULL", hash, model.StatusCompleted).
		Order("created_at DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversionRepo) ListRecent(ctx context.Context, limit int) ([]model.Conversion, error) {
	var out []model.Conversion
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversionRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, int64, error) {
	var deleted, blobsDeleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []model.Conversion
		if err := tx.Select("id", "blob_id").Where("created_at < ?", before.UTC()).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]string, 0, len(expired))
		var candidates []string
		for _, c := range expired {
			ids = append(ids, c.ID)
			if c.BlobID != nil {
				candidates = append(candidates, *c.BlobID)
			}
		}
		res := tx.Where("id IN ?", ids).Delete(&model.Conversion{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		if len(candidates) == 0 {
			return nil
		}

		// blob может разделяться несколькими записями (кэш). Кандидатов блокируем,
		// а ссылки проверяем тем же запросом, что и удаляет.
		var locked []string
		if err := tx.Model(&model.Blob{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", candidates).
			Pluck("id", &locked).Error; err != nil {
			return err
		}
		if len(locked) == 0 {
			return nil
		}
		res = tx.Where("id IN ?", locked).
			Where("NOT EXISTS (SELECT 1 FROM conversions WHERE conversions.blob_id = blobs.id)").
			Delete(&model.Blob{})
		if res.Error != nil {
			return res.Error
		}
		blobsDeleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, blobsDeleted, nil
}
