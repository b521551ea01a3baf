package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"beatstore/internal/dto"
	"beatstore/internal/middleware"
	"beatstore/internal/service"
)

type TrackHandler struct {
	trackService    service.TrackService
	downloadService service.DownloadService
}

func NewTrackHandler(trackService service.TrackService, downloadService service.DownloadService) *TrackHandler {
	return &TrackHandler{
		trackService:    trackService,
		downloadService: downloadService,
	}
}

func (h *TrackHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	limit, offset := pagination(c)
	tracks, err := h.trackService.ListPublished(ctx, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tracks)
}

func (h *TrackHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	track, err := h.trackService.GetPublished(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrTrackNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "track not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, track)
}

func (h *TrackHandler) RecordPlay(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.trackService.RecordPlay(ctx, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *TrackHandler) CreateDownload(c echo.Context) error {
	ctx := c.Request().Context()

	user := middleware.UserFromContext(c)
	token, ttl, err := h.downloadService.CreateDownloadToken(ctx, user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotPurchased) {
			return echo.NewHTTPError(http.StatusForbidden, "track not purchased")
		}
		return err
	}

	return c.JSON(http.StatusOK, &dto.DownloadResponse{
		DownloadURL: "/api/downloads/" + token,
		ExpiresIn:   int64(ttl.Seconds()),
	})
}

func (h *TrackHandler) ResolveDownload(c echo.Context) error {
	ctx := c.Request().Context()

	audioURL, err := h.downloadService.ResolveDownloadToken(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidDownloadToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired download link")
		}
		return err
	}

	return c.Redirect(http.StatusFound, audioURL)
}

func pagination(c echo.Context) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
