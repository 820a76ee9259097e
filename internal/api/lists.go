package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mailfan/mailfan/internal/model"
)

// CreateListRequest is the body of POST /api/v1/lists
type CreateListRequest struct {
	Name       string `json:"name"`
	Source     string `json:"source"`
	From       string `json:"from"`
	TemplateID string `json:"template_id"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req CreateListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.From == "" {
		s.sendError(w, http.StatusBadRequest, "from is required")
		return
	}

	list := &model.List{
		Name:       req.Name,
		Source:     req.Source,
		From:       req.From,
		TemplateID: req.TemplateID,
	}
	if err := s.stores.Lists.Create(r.Context(), list); err != nil {
		s.logger.Error("failed to create list", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to create list")
		return
	}

	s.sendJSON(w, http.StatusCreated, list)
}

func (s *Server) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.stores.Lists.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list lists", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list lists")
		return
	}
	s.sendJSON(w, http.StatusOK, lists)
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := s.stores.Lists.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get list", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get list")
		return
	}
	if list == nil {
		s.sendError(w, http.StatusNotFound, "list not found")
		return
	}
	s.sendJSON(w, http.StatusOK, list)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.stores.Items.ListByList(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to list items", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	s.sendJSON(w, http.StatusOK, items)
}
