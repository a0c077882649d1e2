package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type initiateRequest struct {
	AssetID  string `json:"asset_id"`
	NewOwner string `json:"new_owner"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// handleInitiate opens a PENDING transfer of an asset.
// A conflicting PENDING transfer yields 409 with "already exists".
func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.AssetID == "" || req.NewOwner == "" {
		writeBadRequest(w, "asset_id and new_owner are required")
		return
	}

	t, err := s.transfers.Initiate(r.Context(), req.AssetID, req.NewOwner, actorFromContext(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleApprove signs the pending transfer of {asset_id} as the caller.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	t, err := s.transfers.Approve(r.Context(), assetID, actorFromContext(r.Context()).ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleReject cancels the pending transfer of {asset_id}. The body is optional.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	var req rejectRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	t, err := s.transfers.Reject(r.Context(), assetID, actorFromContext(r.Context()), req.Reason)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handlePending lists the PENDING transfers the caller is a party to.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	views, err := s.queries.PendingFor(r.Context(), actorFromContext(r.Context()).ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// handleGetTransfer returns the current (or latest) transfer of {asset_id}.
// Non-admin callers only see transfers they are a party to.
func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := s.queries.GetTransfer(r.Context(), chi.URLParam(r, "asset_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	actor := actorFromContext(r.Context())
	if !actor.Admin && !t.IsParty(actor.ID) {
		writeNotFound(w, "no transfer for asset "+t.AssetID)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
