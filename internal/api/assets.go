package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleGetAsset returns the ledger record of {id}.
func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.ledger.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// handleAssetHistory returns every ownership change of {id}, oldest first.
func (s *Server) handleAssetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.ledger.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// handleAssetProvenance returns the ownership chain of {id} from the
// provenance graph.
func (s *Server) handleAssetProvenance(w http.ResponseWriter, r *http.Request) {
	if s.lineage == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "provenance graph not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.ledger.GetOwner(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	hops, err := s.lineage.Lineage(r.Context(), id)
	if err != nil {
		s.logger.Error("provenance read failed", "asset_id", id, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "provenance graph unavailable")
		return
	}
	writeJSON(w, http.StatusOK, hops)
}
