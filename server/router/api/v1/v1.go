// Package v1 exposes the REST surface: the message endpoint the chat
// gateway calls, and read-mostly admin endpoints for the dashboard.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/fankam/depanneo/internal/profile"
	apperrors "github.com/fankam/depanneo/server/internal/errors"
	"github.com/fankam/depanneo/server/events"
	"github.com/fankam/depanneo/server/middleware"
	"github.com/fankam/depanneo/server/service/dialog"
	"github.com/fankam/depanneo/store"
)

// MessageEngine processes one inbound chat message.
type MessageEngine interface {
	HandleMessage(ctx context.Context, userKey, message string) (*dialog.TurnResult, error)
}

// APIV1Service registers and serves the v1 REST routes.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Engine  MessageEngine
	Bus     *events.EventBus

	rateLimiter *middleware.RateLimiter
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(p *profile.Profile, st *store.Store, engine MessageEngine, bus *events.EventBus) *APIV1Service {
	return &APIV1Service{
		Profile:     p,
		Store:       st,
		Engine:      engine,
		Bus:         bus,
		rateLimiter: middleware.NewRateLimiter(),
	}
}

// RateLimiter exposes the per-user limiter so the cleanup runner can prune it.
func (s *APIV1Service) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Register mounts the v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	group := e.Group("/api/v1")
	group.Use(echomw.CORS())

	group.POST("/messages", s.handleMessage)
	group.GET("/requests", s.listRequests)
	group.GET("/requests/:uid", s.getRequest)
	group.GET("/providers", s.listProviders)
	group.PUT("/providers/:id/availability", s.updateProviderAvailability)
	group.GET("/events", s.listEvents)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorJSON maps engine error codes onto HTTP statuses.
func errorJSON(c echo.Context, err error) error {
	code := apperrors.GetCodeFromError(err, apperrors.ErrCodeStoreUnavailable)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case apperrors.ErrCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}
	return c.JSON(status, errorResponse{Code: string(code), Message: err.Error()})
}
