package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"beatstore/internal/dto"
	"beatstore/internal/model"
	"beatstore/internal/repository"
)

const (
	playCountKeyPrefix = "track:plays:"
	playCountDirtySet  = "track:plays:dirty"
)

var (
	ErrInvalidTrackStatus = errors.New("track status must be draft or published")
	ErrTrackNotFound      = errors.New("track not found")
)

type TrackService interface {
	ListPublished(ctx context.Context, limit, offset int) ([]*model.Track, error)
	GetPublished(ctx context.Context, id string) (*model.Track, error)

	// RecordPlay bumps the redis play counter; the database column catches up
	// when SyncPlayCounts runs.
	RecordPlay(ctx context.Context, trackID string) error
	SyncPlayCounts(ctx context.Context) error

	Create(ctx context.Context, ownerID string, req *dto.TrackCreateRequest) (*model.Track, error)
	Update(ctx context.Context, id string, req *dto.TrackUpdateRequest) (*model.Track, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Track, error)
	// ListAll includes drafts; admin surface only.
	ListAll(ctx context.Context) ([]*model.Track, error)
}

type trackServiceImpl struct {
	trackRepo repository.TrackRepository
	rdb       *redis.Client
}

func NewTrackService(trackRepo repository.TrackRepository, rdb *redis.Client) TrackService {
	return &trackServiceImpl{
		trackRepo: trackRepo,
		rdb:       rdb,
	}
}

func (s *trackServiceImpl) ListPublished(ctx context.Context, limit, offset int) ([]*model.Track, error) {
	return s.trackRepo.ListByStatus(ctx, model.TrackStatusPublished, limit, offset)
}

func (s *trackServiceImpl) GetPublished(ctx context.Context, id string) (*model.Track, error) {
	track, err := s.trackRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrackNotFound
		}
		return nil, err
	}
	// drafts stay invisible on the public catalog
	if track.Status != model.TrackStatusPublished {
		return nil, ErrTrackNotFound
	}
	return track, nil
}

func (s *trackServiceImpl) RecordPlay(ctx context.Context, trackID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, playCountKeyPrefix+trackID)
	pipe.SAdd(ctx, playCountDirtySet, trackID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record play for track %s: %w", trackID, err)
	}
	return nil
}

// SyncPlayCounts drains the dirty set and folds the buffered counters into
// tracks.play_count. A counter is removed from redis before the database
// write; a crash between the two loses at most one flush window of plays.
func (s *trackServiceImpl) SyncPlayCounts(ctx context.Context) error {
	trackIDs, err := s.rdb.SMembers(ctx, playCountDirtySet).Result()
	if err != nil {
		return fmt.Errorf("read dirty play counters: %w", err)
	}

	for _, trackID := range trackIDs {
		val, err := s.rdb.GetDel(ctx, playCountKeyPrefix+trackID).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				s.rdb.SRem(ctx, playCountDirtySet, trackID)
				continue
			}
			log.Printf("read play counter for track %s: %v", trackID, err)
			continue
		}

		if val > 0 {
			if err := s.trackRepo.AddPlayCount(ctx, trackID, val); err != nil {
				log.Printf("flush %d plays for track %s: %v", val, trackID, err)
				// push the count back so the next sync retries it
				s.rdb.IncrBy(ctx, playCountKeyPrefix+trackID, val)
				continue
			}
		}

		s.rdb.SRem(ctx, playCountDirtySet, trackID)
	}

	return nil
}

func (s *trackServiceImpl) Create(ctx context.Context, ownerID string, req *dto.TrackCreateRequest) (*model.Track, error) {
	status := req.Status
	if status == "" {
		status = model.TrackStatusDraft
	}
	if status != model.TrackStatusDraft && status != model.TrackStatusPublished {
		return nil, ErrInvalidTrackStatus
	}

	track := &model.Track{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Name:        req.Name,
		Artist:      req.Artist,
		Description: req.Description,
		Duration:    req.Duration,
		AudioURL:    req.AudioURL,
		CoverURL:    req.CoverURL,
		Status:      status,
	}
	for _, p := range req.Prices {
		track.Prices = append(track.Prices, model.TrackPrice{
			ID:            uuid.NewString(),
			TrackID:       track.ID,
			LicenseType:   p.LicenseType,
			Amount:        p.Amount,
			Currency:      p.Currency,
			StripePriceID: p.StripePriceID,
		})
	}

	if err := s.trackRepo.Create(ctx, track); err != nil {
		return nil, fmt.Errorf("store track in db: %w", err)
	}

	return track, nil
}

func (s *trackServiceImpl) Update(ctx context.Context, id string, req *dto.TrackUpdateRequest) (*model.Track, error) {
	track, err := s.trackRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		track.Name = *req.Name
	}
	if req.Artist != nil {
		track.Artist = *req.Artist
	}
	if req.Description != nil {
		track.Description = *req.Description
	}
	if req.Duration != nil {
		track.Duration = *req.Duration
	}
	if req.AudioURL != nil {
		track.AudioURL = *req.AudioURL
	}
	if req.CoverURL != nil {
		track.CoverURL = *req.CoverURL
	}
	if req.Status != nil {
		if *req.Status != model.TrackStatusDraft && *req.Status != model.TrackStatusPublished {
			return nil, ErrInvalidTrackStatus
		}
		track.Status = *req.Status
	}
	if req.Prices != nil {
		prices := make([]model.TrackPrice, 0, len(req.Prices))
		for _, p := range req.Prices {
			prices = append(prices, model.TrackPrice{
				ID:            uuid.NewString(),
				TrackID:       track.ID,
				LicenseType:   p.LicenseType,
				Amount:        p.Amount,
				Currency:      p.Currency,
				StripePriceID: p.StripePriceID,
			})
		}
		track.Prices = prices
	}

	if err := s.trackRepo.Update(ctx, track); err != nil {
		return nil, fmt.Errorf("update track in db: %w", err)
	}

	return track, nil
}

func (s *trackServiceImpl) Delete(ctx context.Context, id string) error {
	return s.trackRepo.Delete(ctx, id)
}

func (s *trackServiceImpl) Get(ctx context.Context, id string) (*model.Track, error) {
	return s.trackRepo.FindByID(ctx, id)
}

func (s *trackServiceImpl) ListAll(ctx context.Context) ([]*model.Track, error) {
	return s.trackRepo.ListAll(ctx)
}
