package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"beatstore/internal/dto"
	"beatstore/internal/middleware"
	"beatstore/internal/repository"
	"beatstore/internal/service"
)

type AdminHandler struct {
	trackService service.TrackService
	orderRepo    repository.OrderRepository
}

func NewAdminHandler(trackService service.TrackService, orderRepo repository.OrderRepository) *AdminHandler {
	return &AdminHandler{
		trackService: trackService,
		orderRepo:    orderRepo,
	}
}

// ---- tracks ----

func (h *AdminHandler) ListTracks(c echo.Context) error {
	ctx := c.Request().Context()

	tracks, err := h.trackService.ListAll(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tracks)
}

func (h *AdminHandler) CreateTrack(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.TrackCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.Name == "" || req.Artist == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and artist are required")
	}

	user := middleware.UserFromContext(c)
	track, err := h.trackService.Create(ctx, user.ID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTrackStatus) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusCreated, track)
}

func (h *AdminHandler) GetTrack(c echo.Context) error {
	ctx := c.Request().Context()

	track, err := h.trackService.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "track not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, track)
}

func (h *AdminHandler) UpdateTrack(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.TrackUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	track, err := h.trackService.Update(ctx, c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "track not found")
		}
		if errors.Is(err, service.ErrInvalidTrackStatus) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusOK, track)
}

func (h *AdminHandler) DeleteTrack(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.trackService.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "track not found")
		}
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ---- orders ----

func (h *AdminHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	limit, offset := pagination(c)
	orders, err := h.orderRepo.List(ctx, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *AdminHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderRepo.FindByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, order)
}

// UpdateOrderNotes touches the one admin-writable order field. Status stays
// webhook-only.
func (h *AdminHandler) UpdateOrderNotes(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.OrderNotesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.orderRepo.UpdateNotes(ctx, c.Param("id"), req.Notes); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
