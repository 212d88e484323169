package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type messageRequest struct {
	// UserKey is the stable chat identity, e.g. "whatsapp:+237699000001".
	UserKey string `json:"user_key"`
	Message string `json:"message"`
	// Channel and MediaRefs come with the gateway payload. The channel is
	// informational; media is accepted but not processed.
	Channel   string   `json:"channel,omitempty"`
	MediaRefs []string `json:"media_refs,omitempty"`
}

type messageResponse struct {
	Reply      string   `json:"reply"`
	Action     string   `json:"action"`
	Phase      string   `json:"phase"`
	Suggested  []string `json:"suggested_replies,omitempty"`
	RequestUID string   `json:"request_uid,omitempty"`
}

func (s *APIV1Service) handleMessage(c echo.Context) error {
	var body messageRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_ARGUMENT", Message: "malformed request body"})
	}
	if body.UserKey == "" || body.Message == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_ARGUMENT", Message: "user_key and message are required"})
	}
	if !s.rateLimiter.Allow(body.UserKey) {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many messages, slow down"})
	}
	if len(body.MediaRefs) > 0 {
		slog.Debug("ignoring media attachments",
			"user_key", body.UserKey,
			"channel", body.Channel,
			"count", len(body.MediaRefs))
	}

	result, err := s.Engine.HandleMessage(c.Request().Context(), body.UserKey, body.Message)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{
		Reply:      result.Reply,
		Action:     string(result.Action),
		Phase:      string(result.Phase),
		Suggested:  result.Suggested,
		RequestUID: result.RequestUID,
	})
}
