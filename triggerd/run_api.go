package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/flowlane-labs/flowlane-go/internal/repo"
)

func (api *triggerAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request", "run id is required")
		return
	}

	rec, err := api.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found", "run not found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	api.writeJSON(w, http.StatusOK, rec.Handle())
}
