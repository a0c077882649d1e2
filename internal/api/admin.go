package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kelotduongvidainhat/ams/internal/audit"
	"github.com/kelotduongvidainhat/ams/internal/auth"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// queryInt parses an integer query parameter, ignoring malformed values.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// handleAdminListTransfers lists transfers from the authoritative store.
//
// Query parameters:
//   - status: PENDING, EXECUTED, REJECTED or EXPIRED
//   - asset_id: restrict to one asset
//   - party: initiator, current owner or new owner
//   - limit, offset: pagination (default 100, max 500)
func (s *Server) handleAdminListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := transfer.Filter{
		AssetID: q.Get("asset_id"),
		Party:   q.Get("party"),
		Limit:   queryInt(r, "limit"),
		Offset:  queryInt(r, "offset"),
	}
	if v := q.Get("status"); v != "" {
		status, err := transfer.ParseStatus(v)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		f.Status = status
	}

	transfers, err := s.queries.ListTransfers(r.Context(), f)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

// handleListAuditLogs returns paginated audit log entries.
//
// Query parameters:
//   - action: initiate, approve, execute, reject, expire, login, asset_lock, asset_unlock
//   - entity_type: transfer, user, asset
//   - entity_id: transfer ID or username
//   - user_id: acting identity
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	result, err := s.auditRepo.List(r.Context(), audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	})
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleSetUserActive locks or unlocks the account {id}. Admins cannot
// lock themselves out.
func (s *Server) handleSetUserActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		claims := claimsFromContext(r.Context())
		if !active && claims.UserID == id {
			writeBadRequest(w, "cannot lock own account")
			return
		}

		err := s.users.SetActive(r.Context(), id, active)
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		if err != nil {
			s.logger.Error("set user active failed", "user_id", id, "error", err)
			writeInternalError(w, "failed to update user")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": active})
	}
}

// handleSetAssetLocked freezes or releases the ledger asset {id}. A locked
// asset cannot be initiated and a pending transfer on it cannot execute.
func (s *Server) handleSetAssetLocked(locked bool) http.HandlerFunc {
	action := audit.ActionAssetUnlock
	if locked {
		action = audit.ActionAssetLock
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := actorFromContext(r.Context())

		asset, err := s.transfers.SetAssetLocked(r.Context(), id, actor, locked)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}

		s.recordAudit(&audit.AuditLog{
			Action:     action,
			EntityType: audit.EntityAsset,
			EntityID:   id,
			UserID:     actor.ID,
		})
		writeJSON(w, http.StatusOK, asset)
	}
}
