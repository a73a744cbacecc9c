package repository

import (
	"context"

	"github.com/Alecckie/randa-web-sub001/internal/advertiser/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const advertiserColumns = `id, name, email, phone, status, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, advertiser *domain.Advertiser) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO advertisers (`+advertiserColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		advertiser.ID,
		advertiser.Name,
		advertiser.Email,
		advertiser.Phone,
		advertiser.Status,
		advertiser.CreatedAt,
		advertiser.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Advertiser, error) {
	var item domain.Advertiser
	err := db.WithContext(ctx).Raw(
		`SELECT `+advertiserColumns+` FROM advertisers WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, limit int) ([]domain.Advertiser, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Advertiser
	err := db.WithContext(ctx).Raw(
		`SELECT `+advertiserColumns+` FROM advertisers ORDER BY created_at DESC LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
