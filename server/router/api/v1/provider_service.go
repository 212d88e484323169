package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fankam/depanneo/store"
)

type providerResponse struct {
	ID              int32    `json:"id"`
	Name            string   `json:"name"`
	Phone           string   `json:"phone"`
	Categories      []string `json:"categories"`
	Zone            string   `json:"zone"`
	CoverageZones   []string `json:"coverage_zones,omitempty"`
	Rating          float64  `json:"rating"`
	AvgResponseMins float64  `json:"avg_response_mins"`
	Available       bool     `json:"available"`
}

func toProviderResponse(p *store.Provider) providerResponse {
	return providerResponse{
		ID:              p.ID,
		Name:            p.Name,
		Phone:           p.Phone,
		Categories:      p.Categories,
		Zone:            p.Zone,
		CoverageZones:   p.CoverageZones,
		Rating:          p.Rating,
		AvgResponseMins: p.AvgResponseMins,
		Available:       p.Available,
	}
}

func (s *APIV1Service) listProviders(c echo.Context) error {
	find := &store.FindProvider{}
	if category := c.QueryParam("category"); category != "" {
		find.Category = &category
	}
	if availableParam := c.QueryParam("available"); availableParam != "" {
		available := availableParam == "true"
		find.Available = &available
	}

	providers, err := s.Store.ListProviders(c.Request().Context(), find)
	if err != nil {
		return errorJSON(c, err)
	}

	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, toProviderResponse(p))
	}
	return c.JSON(http.StatusOK, out)
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (s *APIV1Service) updateProviderAvailability(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_ARGUMENT", Message: "provider id must be an integer"})
	}

	var body availabilityRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_ARGUMENT", Message: "malformed request body"})
	}

	provider, err := s.Store.UpdateProvider(c.Request().Context(), &store.UpdateProvider{
		ID:        int32(id),
		Available: &body.Available,
	})
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "provider not found"})
	}
	return c.JSON(http.StatusOK, toProviderResponse(provider))
}
