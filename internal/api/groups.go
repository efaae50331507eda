package api

import (
	"net/http"

	"github.com/Kerhoff/CartBot/internal/models"
	"github.com/Kerhoff/CartBot/internal/service"
)

type inviteCodeResponse struct {
	InviteCode string `json:"invite_code"`
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

type transferRequest struct {
	ToGroupID string `json:"to_group_id"`
}

type transferResponse struct {
	Moved int `json:"moved"`
}

func (s *Server) handleGetMyGroups(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	groups, err := s.svc.GetMyGroups(r.Context(), caller)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if groups == nil {
		groups = []*models.GroupSummary{}
	}
	s.respondJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	var in service.GroupInput
	if !s.decodeJSON(w, r, &in) {
		return
	}

	group, err := s.svc.CreateGroup(r.Context(), caller, in)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handlePersonalGroup(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	group, err := s.svc.EnsurePersonalGroup(r.Context(), caller)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	details, err := s.svc.GetGroupDetails(r.Context(), caller, r.PathValue("groupID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, details)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	var in service.GroupInput
	if !s.decodeJSON(w, r, &in) {
		return
	}

	group, err := s.svc.UpdateGroup(r.Context(), caller, r.PathValue("groupID"), in)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	if err := s.svc.DeleteGroup(r.Context(), caller, r.PathValue("groupID")); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondNoContent(w)
}

func (s *Server) handleGenerateInviteCode(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	code, err := s.svc.GenerateInviteCode(r.Context(), caller, r.PathValue("groupID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, inviteCodeResponse{InviteCode: code})
}

func (s *Server) handleRegenerateInviteCode(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	code, err := s.svc.RegenerateInviteCode(r.Context(), caller, r.PathValue("groupID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, inviteCodeResponse{InviteCode: code})
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	if err := s.svc.LeaveGroup(r.Context(), caller, r.PathValue("groupID")); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondNoContent(w)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	var req transferRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	moved, err := s.svc.TransferShoppingList(r.Context(), caller, r.PathValue("groupID"), req.ToGroupID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, transferResponse{Moved: moved})
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	err := s.svc.RemoveMember(r.Context(), caller, r.PathValue("groupID"), r.PathValue("userID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondNoContent(w)
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	var req roleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	err := s.svc.UpdateRole(r.Context(), caller, r.PathValue("groupID"), r.PathValue("userID"), req.Role)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondNoContent(w)
}

// ---------------------------------------------------------------------------
// Invites
// ---------------------------------------------------------------------------

func (s *Server) handleValidateInvite(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	preview, err := s.svc.ValidateInviteCode(r.Context(), caller, r.PathValue("code"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, preview)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, caller service.Caller) {
	group, err := s.svc.JoinViaCode(r.Context(), caller, r.PathValue("code"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, group)
}
