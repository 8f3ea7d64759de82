package api

import (
	"net/http"
	"strings"

	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/internal/domain/roster"
)

type playerPatchRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type avatarRequest struct {
	AvatarRef string `json:"avatar_ref"`
}

type activityRequest struct {
	Name   string   `json:"name"`
	Points *float64 `json:"points"`
}

type activityPatchRequest struct {
	Name   *string  `json:"name"`
	Points *float64 `json:"points"`
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players := s.deps.Players(r.Context())
	if players == nil {
		players = []model.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handlePatchPlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_player"
	var req playerPatchRequest
	if !s.decode(w, r, op, &req) {
		return
	}
	p, err := s.deps.UpdatePlayer(r.Context(), s.gate(w, r), r.PathValue("id"), roster.PlayerPatch{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePutAvatar records the external reference of an uploaded avatar.
// Uploading the image itself is the job of the asset store.
func (s *Server) handlePutAvatar(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_avatar"
	var req avatarRequest
	if !s.decode(w, r, op, &req) {
		return
	}
	p, err := s.deps.SetPlayerAvatar(r.Context(), s.gate(w, r), r.PathValue("id"), strings.TrimSpace(req.AvatarRef))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	activities := s.deps.Activities(r.Context())
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

func (s *Server) handlePostActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_activity"
	var req activityRequest
	if !s.decode(w, r, op, &req) {
		return
	}
	if req.Points == nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op+": missing points", ErrBadRequest))
		return
	}
	a, err := s.deps.AddActivity(r.Context(), s.gate(w, r), req.Name, *req.Points)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handlePatchActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_activity"
	var req activityPatchRequest
	if !s.decode(w, r, op, &req) {
		return
	}
	a, err := s.deps.UpdateActivity(r.Context(), s.gate(w, r), r.PathValue("id"), roster.ActivityPatch{
		Name:   req.Name,
		Points: req.Points,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
