package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/platform/auditlog"
	"github.com/flowlane-labs/flowlane-go/internal/trigger"
)

type triggerRequest struct {
	TemplateID string                                      `json:"templateId,omitempty"`
	RunName    string                                      `json:"runName,omitempty"`
	Overrides  map[string]map[string]domain.ParameterValue `json:"overrides,omitempty"`
}

func (api *triggerAPI) handleTrigger(w http.ResponseWriter, r *http.Request) {
	pipeline := strings.TrimSpace(r.PathValue("pipeline_name"))
	if pipeline == "" {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request", "pipeline name is required")
		return
	}

	var req triggerRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	actor := actorFromRequest(r)
	handle, err := api.facade.Trigger(r.Context(), trigger.Request{
		PipelineName: pipeline,
		TemplateID:   strings.TrimSpace(req.TemplateID),
		Config: domain.RunConfiguration{
			RunName:   strings.TrimSpace(req.RunName),
			Overrides: req.Overrides,
		},
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		Actor:          actor,
	})
	if err != nil {
		api.recordAudit(r.Context(), auditlog.Event{
			OccurredAt:   time.Now().UTC(),
			Actor:        orUnknown(actor),
			Action:       auditlog.ActionRunRejected,
			ResourceType: "pipeline",
			ResourceID:   pipeline,
			RequestID:    r.Header.Get("X-Request-Id"),
			IP:           requestIP(r.RemoteAddr),
			UserAgent:    r.UserAgent(),
			Payload: map[string]any{
				"kind":  string(trigger.KindOf(err)),
				"error": err.Error(),
			},
		})
		api.writeTriggerError(w, r, err)
		return
	}

	api.recordAudit(r.Context(), auditlog.Event{
		OccurredAt:   time.Now().UTC(),
		Actor:        orUnknown(actor),
		Action:       auditlog.ActionRunTriggered,
		ResourceType: "run",
		ResourceID:   handle.RunID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload: map[string]any{
			"pipeline":    handle.PipelineName,
			"template_id": handle.TemplateID,
			"run_name":    handle.RunName,
			"status":      string(handle.Status),
		},
	})

	w.Header().Set("Location", "/runs/"+handle.RunID)
	api.writeJSON(w, http.StatusAccepted, handle)
}

func orUnknown(actor string) string {
	if actor == "" {
		return "unknown"
	}
	return actor
}
