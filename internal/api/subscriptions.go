package api

import (
	"encoding/json"
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/v5"

	"github.com/mailfan/mailfan/internal/model"
)

// CreateSubscriptionRequest is the body of POST /api/v1/subscriptions
type CreateSubscriptionRequest struct {
	ListID     string `json:"list_id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Alias      string `json:"alias"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ListID == "" {
		s.sendError(w, http.StatusBadRequest, "list_id is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		s.sendError(w, http.StatusBadRequest, "email is invalid")
		return
	}

	list, err := s.stores.Lists.GetByID(r.Context(), req.ListID)
	if err != nil {
		s.logger.Error("failed to get list", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get list")
		return
	}
	if list == nil {
		s.sendError(w, http.StatusNotFound, "list not found")
		return
	}

	sub := &model.Subscription{
		ListID:     req.ListID,
		Email:      req.Email,
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		Alias:      req.Alias,
	}
	if err := s.stores.Subscriptions.Create(r.Context(), sub); err != nil {
		s.logger.Error("failed to create subscription", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	// Recount runs detached; a failure there never fails the subscribe.
	s.counter.RecountAsync(sub.ListID)

	s.sendJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.stores.Subscriptions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get subscription", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		s.sendError(w, http.StatusNotFound, "subscription not found")
		return
	}
	s.sendJSON(w, http.StatusOK, sub)
}
