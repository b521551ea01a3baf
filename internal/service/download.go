package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"beatstore/internal/repository"
)

const downloadTokenTTL = 15 * time.Minute

var (
	ErrNotPurchased         = errors.New("track not purchased")
	ErrInvalidDownloadToken = errors.New("invalid download token")
)

// DownloadService issues and resolves short-lived signed URLs for purchased
// audio. The token stands in for the object store's own presigned URLs; the
// audio URL itself never leaves the server unsigned.
type DownloadService interface {
	CreateDownloadToken(ctx context.Context, userID, trackID string) (token string, ttl time.Duration, err error)
	ResolveDownloadToken(ctx context.Context, token string) (audioURL string, err error)
}

type downloadServiceImpl struct {
	orderRepo repository.OrderRepository
	trackRepo repository.TrackRepository
	secret    []byte
	now       func() time.Time
}

func NewDownloadService(orderRepo repository.OrderRepository, trackRepo repository.TrackRepository, jwtSecret string) DownloadService {
	return &downloadServiceImpl{
		orderRepo: orderRepo,
		trackRepo: trackRepo,
		secret:    []byte(jwtSecret),
		now:       time.Now,
	}
}

func (s *downloadServiceImpl) CreateDownloadToken(ctx context.Context, userID, trackID string) (string, time.Duration, error) {
	owns, err := s.orderRepo.UserOwnsPaidTrack(ctx, userID, trackID)
	if err != nil {
		return "", 0, fmt.Errorf("check track ownership: %w", err)
	}
	if !owns {
		return "", 0, ErrNotPurchased
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub": trackID,
		"typ": "download",
		"iat": now.Unix(),
		"exp": now.Add(downloadTokenTTL).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign download token: %w", err)
	}

	return token, downloadTokenTTL, nil
}

func (s *downloadServiceImpl) ResolveDownloadToken(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidDownloadToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != "download" {
		return "", ErrInvalidDownloadToken
	}
	trackID, _ := claims["sub"].(string)
	if trackID == "" {
		return "", ErrInvalidDownloadToken
	}

	track, err := s.trackRepo.FindByID(ctx, trackID)
	if err != nil {
		return "", fmt.Errorf("resolve track for download: %w", err)
	}

	return track.AudioURL, nil
}
