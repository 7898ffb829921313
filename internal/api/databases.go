package api

import (
	"net/http"

	"github.com/featureboard/featureboard/internal/registry"
)

type healthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.engine.Store().SchemaVersion(r.Context())
	if err != nil {
		WriteJSONError(w, http.StatusServiceUnavailable, "store unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", SchemaVersion: version})
}

// handleDatabases lists the registered stores. The registry is re-read on
// every request so edits made by `fb stores` show up without a restart.
func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	reg, err := registry.Load(s.storesFile)
	if err != nil {
		s.logger.Error("load store registry", "path", s.storesFile, "error", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to read store registry", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reg.Statuses(r.Context(), s.engine.Store().Path()))
}
