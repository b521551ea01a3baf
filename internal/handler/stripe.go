package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"beatstore/internal/dto"
	"beatstore/internal/middleware"
	"beatstore/internal/service"
)

type StripeHandler struct {
	stripeService service.StripeService
}

func NewStripeHandler(stripeService service.StripeService) *StripeHandler {
	return &StripeHandler{stripeService: stripeService}
}

func (h *StripeHandler) CartCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CartCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	var userID string
	if user := middleware.UserFromContext(c); user != nil {
		userID = user.ID
	}

	result, err := h.stripeService.CreateCartCheckout(ctx, userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrPriceNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "some track prices not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *StripeHandler) TrackCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.TrackCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	var userID string
	if user := middleware.UserFromContext(c); user != nil {
		userID = user.ID
	}

	result, err := h.stripeService.CreateTrackCheckout(ctx, userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrPriceNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "track price not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *StripeHandler) CheckoutStatus(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.stripeService.GetCheckoutStatus(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "checkout session not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Webhook is the processor's delivery endpoint. Bad signatures and malformed
// envelopes come back 400 with no side effects; everything the dispatcher
// accepts is acked 200 so the processor does not retry-storm.
func (h *StripeHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.stripeService.HandleWebhook(ctx, c.Request().Header, body)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) || errors.Is(err, service.ErrMalformedEvent) {
			log.Printf("webhook rejected: %v", err)
			return c.NoContent(http.StatusBadRequest)
		}
		return err
	}

	return c.NoContent(http.StatusOK)
}
