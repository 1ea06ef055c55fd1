package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/boardwalk-dev/boardwalk/pkg/authz"
)

// AuthorizeRequest is the decision endpoint's request body.
type AuthorizeRequest struct {
	Identity   authz.Identity  `json:"identity"`
	Permission string          `json:"permission"`
	Resource   *authz.Resource `json:"resource,omitempty"`
}

// AuthorizeResponse is the decision endpoint's response body.
type AuthorizeResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// ReloadRequest carries a full role table for the admin reload endpoint.
type ReloadRequest struct {
	Roles map[string][]string `json:"roles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// authorize handles POST /v1/authorize
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identity.UserID == "" || req.Identity.TenantID == "" {
		writeError(w, http.StatusBadRequest, "identity requires user_id and tenant_id")
		return
	}

	allowed, reason, err := s.engine.Authorize(r.Context(), req.Identity, req.Permission, req.Resource)
	if err != nil {
		if errors.Is(err, authz.ErrInvalidPermissionFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.WithError(err).Error("authorization failed")
		writeError(w, http.StatusInternalServerError, "authorization failed")
		return
	}

	writeJSON(w, http.StatusOK, AuthorizeResponse{Allowed: allowed, Reason: reason})
}

// reloadRoleTable handles POST /v1/admin/reload
func (s *Server) reloadRoleTable(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	table, err := authz.NewRoleTable(req.Roles)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.ReloadRoleTable(r.Context(), table); err != nil {
		s.logger.WithError(err).Error("role table reload failed")
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"roles": len(table.Roles())})
}

// invalidateUser handles POST /v1/admin/invalidate/{userID}
func (s *Server) invalidateUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	if err := s.engine.InvalidateUser(r.Context(), userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("cache invalidation failed")
		writeError(w, http.StatusInternalServerError, "invalidation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
