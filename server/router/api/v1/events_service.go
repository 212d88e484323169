package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// listEvents returns recent engine events from the ring buffer, newest last.
// The dashboard polls this to show escalations and exhausted notifications.
func (s *APIV1Service) listEvents(c echo.Context) error {
	limit := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_ARGUMENT", Message: "limit must be a non-negative integer"})
		}
		limit = n
	}
	return c.JSON(http.StatusOK, s.Bus.Recent(limit))
}
