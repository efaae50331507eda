package api

import (
	"net/http"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/service"
)

type actionsRequest struct {
	Actions []action.Raw `json:"actions"`
}

type clearResponse struct {
	Removed int64 `json:"removed"`
}

func (s *Server) respondItems(w http.ResponseWriter, items []*models.ShoppingListItem) {
	if items == nil {
		items = []*models.ShoppingListItem{}
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	items, err := s.svc.GetItems(r.Context(), caller, r.PathValue("groupID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondItems(w, items)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	in := service.ItemInput{Amount: 1}
	if !s.decodeJSON(w, r, &in) {
		return
	}

	item, err := s.svc.AddItem(r.Context(), caller, r.PathValue("groupID"), in)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	removed, err := s.svc.ClearCompleted(r.Context(), caller, r.PathValue("groupID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, clearResponse{Removed: removed})
}

func (s *Server) handleExecuteActions(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	var req actionsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	items, err := s.svc.ExecuteActions(r.Context(), caller, r.PathValue("groupID"), req.Actions)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondItems(w, items)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	var in service.ItemUpdate
	if !s.decodeJSON(w, r, &in) {
		return
	}

	item, err := s.svc.UpdateItem(r.Context(), caller, r.PathValue("itemID"), in)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	item, err := s.svc.ToggleComplete(r.Context(), caller, r.PathValue("itemID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	if err := s.svc.DeleteItem(r.Context(), caller, r.PathValue("itemID")); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondNoContent(w)
}
