package repository

import (
	"context"

	"gorm.io/gorm"

	"beatstore/internal/model"
)

type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	Update(ctx context.Context, track *model.Track) error
	// Delete removes the track and its price tiers. Order items keep their
	// nullable track reference.
	Delete(ctx context.Context, id string) error

	FindByID(ctx context.Context, id string) (*model.Track, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*model.Track, error)
	ListAll(ctx context.Context) ([]*model.Track, error)

	FindPrices(ctx context.Context, priceIDs []string) ([]*model.TrackPrice, error)
	AddPlayCount(ctx context.Context, trackID string, delta int64) error
}

type trackRepoImpl struct {
	db *gorm.DB
}

func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &trackRepoImpl{db: db}
}

func (r *trackRepoImpl) Create(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Create(track).Error
}

// Update rewrites the track and replaces its price tiers wholesale; tiers no
// longer present are removed rather than orphaned.
func (r *trackRepoImpl) Update(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", track.ID).Delete(&model.TrackPrice{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(track).Error
	})
}

func (r *trackRepoImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&model.TrackPrice{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&model.Track{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *trackRepoImpl) FindByID(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).
		Preload("Prices").
		Where("id = ?", id).
		First(&track).Error

	if err != nil {
		return nil, err
	}

	return &track, nil
}

func (r *trackRepoImpl) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).
		Preload("Prices").
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tracks).Error

	if err != nil {
		return nil, err
	}

	return tracks, nil
}

func (r *trackRepoImpl) ListAll(ctx context.Context) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).Find(&tracks).Error
	if err != nil {
		return nil, err
	}

	return tracks, nil
}

func (r *trackRepoImpl) FindPrices(ctx context.Context, priceIDs []string) ([]*model.TrackPrice, error) {
	var prices []*model.TrackPrice
	err := r.db.WithContext(ctx).
		Where("id IN ?", priceIDs).
		Find(&prices).Error

	if err != nil {
		return nil, err
	}

	return prices, nil
}

func (r *trackRepoImpl) AddPlayCount(ctx context.Context, trackID string, delta int64) error {
	return r.db.WithContext(ctx).Model(&model.Track{}).
		Where("id = ?", trackID).
		UpdateColumn("play_count", gorm.Expr("play_count + ?", delta)).Error
}
