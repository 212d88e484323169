package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fankam/depanneo/store"
)

type requestResponse struct {
	UID                string `json:"uid"`
	UserKey            string `json:"user_key"`
	Category           string `json:"category"`
	Location           string `json:"location"`
	Description        string `json:"description"`
	Urgency            string `json:"urgency,omitempty"`
	Status             string `json:"status"`
	AssignedProviderID *int32 `json:"assigned_provider_id,omitempty"`
	CreatedTs          int64  `json:"created_ts"`
	UpdatedTs          int64  `json:"updated_ts"`
}

func toRequestResponse(r *store.ServiceRequest) requestResponse {
	return requestResponse{
		UID:                r.UID,
		UserKey:            r.UserKey,
		Category:           r.Category,
		Location:           r.Location,
		Description:        r.Description,
		Urgency:            r.Urgency,
		Status:             string(r.Status),
		AssignedProviderID: r.AssignedProviderID,
		CreatedTs:          r.CreatedTs,
		UpdatedTs:          r.UpdatedTs,
	}
}

const defaultListLimit = 50

func (s *APIV1Service) listRequests(c echo.Context) error {
	find := &store.FindServiceRequest{}

	if userKey := c.QueryParam("user_key"); userKey != "" {
		find.UserKey = &userKey
	}
	if statusParam := c.QueryParam("status"); statusParam != "" {
		status := store.RequestStatus(statusParam)
		find.Status = &status
	}
	if c.QueryParam("open") == "true" {
		find.OpenOnly = true
	}
	limit := defaultListLimit
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_ARGUMENT", Message: "limit must be a positive integer"})
		}
		limit = n
	}
	find.Limit = &limit

	requests, err := s.Store.ListServiceRequests(c.Request().Context(), find)
	if err != nil {
		return errorJSON(c, err)
	}

	out := make([]requestResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, toRequestResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) getRequest(c echo.Context) error {
	uid := c.Param("uid")
	requests, err := s.Store.ListServiceRequests(c.Request().Context(), &store.FindServiceRequest{UID: &uid})
	if err != nil {
		return errorJSON(c, err)
	}
	if len(requests) == 0 {
		return c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "request not found"})
	}
	return c.JSON(http.StatusOK, toRequestResponse(requests[0]))
}
