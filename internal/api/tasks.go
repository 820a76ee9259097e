package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mailfan/mailfan/internal/model"
	"github.com/mailfan/mailfan/internal/store"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TaskFilter{
		ListID: q.Get("list_id"),
		MailID: q.Get("mail_id"),
		Status: model.TaskStatus(q.Get("status")),
	}

	tasks, err := s.stores.Tasks.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list tasks", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	s.sendJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.stores.Tasks.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get task", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if task == nil {
		s.sendError(w, http.StatusNotFound, "task not found")
		return
	}
	s.sendJSON(w, http.StatusOK, task)
}
