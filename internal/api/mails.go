package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mailfan/mailfan/internal/model"
)

// CreateMailRequest is the body of POST /api/v1/mails
type CreateMailRequest struct {
	ListID  string            `json:"list_id"`
	Subject string            `json:"subject"`
	Content string            `json:"content"`
	Data    map[string]string `json:"data"`
}

// handleCreateMail creates the mail and fans it out before responding. The
// response is sent only after every per-subscriber task create has been
// attempted; tasks created before an error stay created.
func (s *Server) handleCreateMail(w http.ResponseWriter, r *http.Request) {
	var req CreateMailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ListID == "" {
		s.sendError(w, http.StatusBadRequest, "list_id is required")
		return
	}
	if req.Subject == "" {
		s.sendError(w, http.StatusBadRequest, "subject is required")
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

	m := &model.Mail{
		ListID:  req.ListID,
		Subject: req.Subject,
		Content: req.Content,
		Data:    req.Data,
	}
	if err := s.stores.Mails.Create(r.Context(), m); err != nil {
		s.logger.Error("failed to create mail", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to create mail")
		return
	}

	if err := s.fanout.FanOut(r.Context(), m); err != nil {
		s.logger.Error("fan-out failed", "mail_id", m.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to fan out mail")
		return
	}

	s.sendJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMail(w http.ResponseWriter, r *http.Request) {
	m, err := s.stores.Mails.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get mail", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get mail")
		return
	}
	if m == nil {
		s.sendError(w, http.StatusNotFound, "mail not found")
		return
	}
	s.sendJSON(w, http.StatusOK, m)
}

func (s *Server) handleListMails(w http.ResponseWriter, r *http.Request) {
	listID := r.URL.Query().Get("list_id")
	if listID == "" {
		s.sendError(w, http.StatusBadRequest, "list_id is required")
		return
	}

	mails, err := s.stores.Mails.ListByList(r.Context(), listID)
	if err != nil {
		s.logger.Error("failed to list mails", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list mails")
		return
	}
	s.sendJSON(w, http.StatusOK, mails)
}
