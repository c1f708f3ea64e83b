package handlers

import (
	"encoding/json"
	"net/http"

	"hookbin/internal/engine/hooks"
	"hookbin/internal/pkg/errors"
)

type EndpointHandler struct {
	endpoints *hooks.EndpointRepository
	service   *hooks.Service
}

func NewEndpointHandler(endpoints *hooks.EndpointRepository, service *hooks.Service) *EndpointHandler {
	return &EndpointHandler{endpoints: endpoints, service: service}
}

type createEndpointRequest struct {
	Name string `json:"name"`
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := principal(r)

	var req createEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		req.Name = "unnamed endpoint"
	}

	endpoint := &hooks.Endpoint{Name: req.Name}
	if err := h.endpoints.Create(endpoint, user.ID); err != nil {
		errors.WriteFromError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(endpoint)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	user := principal(r)

	endpoints, err := h.endpoints.ListForUser(user.ID)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	if endpoints == nil {
		endpoints = []*hooks.Endpoint{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Endpoints []*hooks.Endpoint `json:"endpoints"`
	}{endpoints})
}

type addEndpointUserRequest struct {
	UserID int64 `json:"user_id"`
}

// AddUser grants another user access to the endpoint. Only a current member
// may extend the authorized set.
func (h *EndpointHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	user := principal(r)

	endpointID, ok := pathID(r, "endpoint_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Endpoint id must be an integer", nil)
		return
	}

	var req addEndpointUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "user_id is required", nil)
		return
	}

	if err := h.service.AuthorizeEndpoint(r.Context(), user, endpointID); err != nil {
		errors.WriteFromError(w, err)
		return
	}

	if err := h.endpoints.AddUser(endpointID, req.UserID); err != nil {
		errors.WriteFromError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveUser revokes a user's access to the endpoint.
func (h *EndpointHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	user := principal(r)

	endpointID, ok := pathID(r, "endpoint_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Endpoint id must be an integer", nil)
		return
	}
	userID, ok := pathID(r, "user_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "User id must be an integer", nil)
		return
	}

	if err := h.service.AuthorizeEndpoint(r.Context(), user, endpointID); err != nil {
		errors.WriteFromError(w, err)
		return
	}

	if err := h.endpoints.RemoveUser(endpointID, userID); err != nil {
		errors.WriteFromError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
