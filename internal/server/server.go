package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"beatstore/internal/handler"
	"beatstore/internal/middleware"
)

type Server struct {
	echo          *echo.Echo
	auth          *middleware.Auth
	stripeHandler *handler.StripeHandler
	trackHandler  *handler.TrackHandler
	adminHandler  *handler.AdminHandler
}

func NewServer(
	auth *middleware.Auth,
	stripeHandler *handler.StripeHandler,
	trackHandler *handler.TrackHandler,
	adminHandler *handler.AdminHandler,
) *Server {
	e := echo.New()

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:          e,
		auth:          auth,
		stripeHandler: stripeHandler,
		trackHandler:  trackHandler,
		adminHandler:  adminHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- public catalog --------
	api.GET("/tracks", s.trackHandler.List)
	api.GET("/tracks/:id", s.trackHandler.Get)
	api.POST("/tracks/:id/play", s.trackHandler.RecordPlay)
	api.GET("/downloads/:token", s.trackHandler.ResolveDownload)
	api.GET("/tracks/:id/download", s.trackHandler.CreateDownload, s.auth.Required())

	// -------- checkout --------
	checkout := api.Group("/checkout", s.auth.Optional())
	checkout.POST("/cart", s.stripeHandler.CartCheckout)
	checkout.POST("/track", s.stripeHandler.TrackCheckout)
	checkout.GET("/sessions/:id", s.stripeHandler.CheckoutStatus)

	// -------- stripe webhooks --------
	api.POST("/stripe/webhook", s.stripeHandler.Webhook)

	// -------- admin --------
	admin := api.Group("/admin", s.auth.Required(), s.auth.AdminOnly())
	admin.GET("/tracks", s.adminHandler.ListTracks)
	admin.POST("/tracks", s.adminHandler.CreateTrack)
	admin.GET("/tracks/:id", s.adminHandler.GetTrack)
	admin.PUT("/tracks/:id", s.adminHandler.UpdateTrack)
	admin.DELETE("/tracks/:id", s.adminHandler.DeleteTrack)
	admin.GET("/orders", s.adminHandler.ListOrders)
	admin.GET("/orders/:id", s.adminHandler.GetOrder)
	admin.PUT("/orders/:id/notes", s.adminHandler.UpdateOrderNotes)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
